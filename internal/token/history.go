// Package token implements the rolling proof-of-presence credential for a
// live attendance session: a fresh opaque hash on every rotation, with a
// bounded FIFO history so a hash that rotated between broadcast and
// redemption is still accepted inside the leeway window.
package token

import (
	"time"

	"github.com/google/uuid"

	"github.com/Krugou/Attenddotmetropoliadotfi-sub002/pkg/types"
)

// Stamp is one issued credential with its validity window.
type Stamp struct {
	Hash       string    `json:"hash"`
	ValidFrom  time.Time `json:"start"`
	ValidUntil time.Time `json:"end"`
}

// History holds a session's issued tokens, oldest first, bounded to the
// configured leeway depth. It is owned by a single session and is not safe
// for concurrent use; the session registry serializes access.
type History struct {
	cadence time.Duration
	depth   int
	stamps  []Stamp
}

// NewHistory creates an empty history sized from the session timings.
func NewHistory(timings types.SessionTimings) *History {
	return &History{
		cadence: timings.Cadence,
		depth:   timings.HistoryDepth(),
		stamps:  make([]Stamp, 0, timings.HistoryDepth()),
	}
}

// Issue generates a new token valid for one rotation period from now,
// appends it and evicts the oldest entry once the window is full.
func (h *History) Issue(now time.Time) Stamp {
	stamp := Stamp{
		Hash:       uuid.New().String(),
		ValidFrom:  now,
		ValidUntil: now.Add(h.cadence),
	}
	h.stamps = append(h.stamps, stamp)
	if len(h.stamps) > h.depth {
		h.stamps = h.stamps[1:]
	}
	return stamp
}

// Current returns the most recently issued hash, or "" before first issue.
func (h *History) Current() string {
	if len(h.stamps) == 0 {
		return ""
	}
	return h.stamps[len(h.stamps)-1].Hash
}

// Redeemable reports whether a hash matches any retained entry with the
// claimed time inside that entry's [ValidFrom, ValidUntil) window. Matching
// against every retained entry, not only the latest, is deliberate: it
// tolerates a rotation racing the client's submission.
func (h *History) Redeemable(hash string, claimed time.Time) bool {
	for _, s := range h.stamps {
		if s.Hash != hash {
			continue
		}
		if !claimed.Before(s.ValidFrom) && claimed.Before(s.ValidUntil) {
			return true
		}
	}
	return false
}

// Len returns the number of retained entries.
func (h *History) Len() int {
	return len(h.stamps)
}
