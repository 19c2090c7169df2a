// Package iptrack records per-lecture network-address activity: which
// students successfully claimed presence from each address, and the last
// calendar day a privileged action ran from an address. The multi-student
// map is an audit signal for shared-device or proxy abuse, never a block,
// since shared classroom NAT puts many students behind one address.
package iptrack

import (
	"sync"
	"time"

	"github.com/Krugou/Attenddotmetropoliadotfi-sub002/pkg/types"
)

// Tracker is safe for concurrent use.
type Tracker struct {
	mu    sync.RWMutex
	usage map[string]map[string]*types.AddressUsage // lectureID -> address -> usage
	daily map[string]map[string]string              // lectureID -> address -> YYYY-MM-DD
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		usage: make(map[string]map[string]*types.AddressUsage),
		daily: make(map[string]map[string]string),
	}
}

// RecordArrival appends a student to the address's usage set after a
// successful claim and returns a copy of the updated usage. DuplicateFound
// flips to true once a second distinct student claims from the address and
// never resets for the session.
func (t *Tracker) RecordArrival(lectureID, address, studentNumber, userAgent string, now time.Time) types.AddressUsage {
	t.mu.Lock()
	defer t.mu.Unlock()

	byAddress, exists := t.usage[lectureID]
	if !exists {
		byAddress = make(map[string]*types.AddressUsage)
		t.usage[lectureID] = byAddress
	}

	usage, exists := byAddress[address]
	if !exists {
		usage = &types.AddressUsage{}
		byAddress[address] = usage
	}

	known := false
	for _, n := range usage.StudentNumbers {
		if n == studentNumber {
			known = true
			break
		}
	}
	if !known {
		usage.StudentNumbers = append(usage.StudentNumbers, studentNumber)
	}
	usage.DuplicateFound = len(usage.StudentNumbers) > 1
	usage.Timestamp = now
	usage.UserAgent = userAgent

	return copyUsage(usage)
}

// UsageSnapshot returns a copy of the full per-address usage map for a
// lecture, for teacher-side visibility broadcasts.
func (t *Tracker) UsageSnapshot(lectureID string) map[string]types.AddressUsage {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]types.AddressUsage, len(t.usage[lectureID]))
	for address, usage := range t.usage[lectureID] {
		out[address] = copyUsage(usage)
	}
	return out
}

// SameDayRepeat reports whether a privileged action already ran from this
// address for this lecture on the same calendar day.
func (t *Tracker) SameDayRepeat(lectureID, address string, now time.Time) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.daily[lectureID][address] == dayKey(now)
}

// MarkPrivilegedAction records today as the last privileged-action day for
// the address.
func (t *Tracker) MarkPrivilegedAction(lectureID, address string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.daily[lectureID] == nil {
		t.daily[lectureID] = make(map[string]string)
	}
	t.daily[lectureID][address] = dayKey(now)
}

// Clear drops the multi-student usage map for a lecture; called on session
// teardown. Daily privileged-action marks survive teardown on purpose: the
// same-day guard must still reject a repeat finalize/cancel after the first
// one tore the session down. A mark is one date per address and is
// overwritten by the next action, so retention stays bounded.
func (t *Tracker) Clear(lectureID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.usage, lectureID)
}

func copyUsage(usage *types.AddressUsage) types.AddressUsage {
	numbers := make([]string, len(usage.StudentNumbers))
	copy(numbers, usage.StudentNumbers)
	return types.AddressUsage{
		StudentNumbers: numbers,
		DuplicateFound: usage.DuplicateFound,
		Timestamp:      usage.Timestamp,
		UserAgent:      usage.UserAgent,
	}
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
