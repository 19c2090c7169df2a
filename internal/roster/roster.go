// Package roster maintains the present / not-yet-present partition of the
// enrolled population for one active lecture session. The partition is the
// in-memory cache of attendance; the persisted records remain the source
// of truth.
package roster

import (
	"github.com/Krugou/Attenddotmetropoliadotfi-sub002/pkg/types"
)

// Roster partitions enrolled students into two order-preserving,
// duplicate-free sequences. A student is in exactly one partition at all
// times while the session is active. Not safe for concurrent use; the
// session registry serializes access.
type Roster struct {
	notYetPresent []types.Student
	present       []types.Student
}

// Seed builds a roster with the full enrolled population not yet present.
// Duplicate student numbers in the input are dropped, keeping first
// occurrence order.
func Seed(enrolled []types.Student) *Roster {
	seen := make(map[string]bool, len(enrolled))
	r := &Roster{
		notYetPresent: make([]types.Student, 0, len(enrolled)),
		present:       []types.Student{},
	}
	for _, s := range enrolled {
		if seen[s.StudentNumber] {
			continue
		}
		seen[s.StudentNumber] = true
		r.notYetPresent = append(r.notYetPresent, s)
	}
	return r
}

// MarkPresent moves a student from notYetPresent to present. Returns
// ErrAlreadyPresent if the student already moved, ErrNotInRoster if the
// student is in neither partition.
func (r *Roster) MarkPresent(studentNumber string) (types.Student, error) {
	if _, ok := find(r.present, studentNumber); ok {
		return types.Student{}, ErrAlreadyPresent
	}
	i, ok := find(r.notYetPresent, studentNumber)
	if !ok {
		return types.Student{}, ErrNotInRoster
	}
	student := r.notYetPresent[i]
	r.notYetPresent = append(r.notYetPresent[:i], r.notYetPresent[i+1:]...)
	r.present = append(r.present, student)
	return student, nil
}

// MarkAbsent is the mirror move, present to notYetPresent. Returns
// ErrNotInRoster if the student is not in the present partition.
func (r *Roster) MarkAbsent(studentNumber string) (types.Student, error) {
	i, ok := find(r.present, studentNumber)
	if !ok {
		return types.Student{}, ErrNotInRoster
	}
	student := r.present[i]
	r.present = append(r.present[:i], r.present[i+1:]...)
	r.notYetPresent = append(r.notYetPresent, student)
	return student, nil
}

// IsPresent reports whether the student is in the present partition.
func (r *Roster) IsPresent(studentNumber string) bool {
	_, ok := find(r.present, studentNumber)
	return ok
}

// Lookup returns the student record from either partition.
func (r *Roster) Lookup(studentNumber string) (types.Student, bool) {
	if i, ok := find(r.present, studentNumber); ok {
		return r.present[i], true
	}
	if i, ok := find(r.notYetPresent, studentNumber); ok {
		return r.notYetPresent[i], true
	}
	return types.Student{}, false
}

// Remaining returns a copy of the not-yet-present partition; finalization
// persists these as absent.
func (r *Roster) Remaining() []types.Student {
	out := make([]types.Student, len(r.notYetPresent))
	copy(out, r.notYetPresent)
	return out
}

// Snapshot returns copies of both partitions for broadcasting.
func (r *Roster) Snapshot(lectureID string) types.RosterSnapshot {
	present := make([]types.Student, len(r.present))
	copy(present, r.present)
	notYet := make([]types.Student, len(r.notYetPresent))
	copy(notYet, r.notYetPresent)
	return types.RosterSnapshot{
		LectureID:     lectureID,
		Present:       present,
		NotYetPresent: notYet,
	}
}

// Size returns the total enrolled population captured at session start.
func (r *Roster) Size() int {
	return len(r.present) + len(r.notYetPresent)
}

func find(students []types.Student, studentNumber string) (int, bool) {
	for i, s := range students {
		if s.StudentNumber == studentNumber {
			return i, true
		}
	}
	return 0, false
}
