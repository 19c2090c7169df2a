package token

import (
	"testing"
	"time"

	"github.com/Krugou/Attenddotmetropoliadotfi-sub002/pkg/types"
)

var testTimings = types.SessionTimings{
	Cadence:          10 * time.Second,
	LeewayMultiplier: 3,
	Timeout:          time.Hour,
}

func TestIssueSetsCurrent(t *testing.T) {
	h := NewHistory(testTimings)
	if h.Current() != "" {
		t.Fatalf("expected empty current before first issue, got %q", h.Current())
	}

	now := time.Now()
	stamp := h.Issue(now)

	if stamp.Hash == "" {
		t.Fatal("issued hash should not be empty")
	}
	if h.Current() != stamp.Hash {
		t.Fatalf("current = %q, want %q", h.Current(), stamp.Hash)
	}
	if !stamp.ValidUntil.Equal(now.Add(testTimings.Cadence)) {
		t.Fatalf("validUntil = %v, want %v", stamp.ValidUntil, now.Add(testTimings.Cadence))
	}
}

func TestIssuedHashesAreUnique(t *testing.T) {
	h := NewHistory(testTimings)
	now := time.Now()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		stamp := h.Issue(now)
		if seen[stamp.Hash] {
			t.Fatalf("hash %q issued twice", stamp.Hash)
		}
		seen[stamp.Hash] = true
	}
}

func TestRedeemableWithinWindow(t *testing.T) {
	h := NewHistory(testTimings)
	now := time.Now()
	stamp := h.Issue(now)

	tests := []struct {
		name    string
		claimed time.Time
		want    bool
	}{
		{"at validFrom", now, true},
		{"mid window", now.Add(5 * time.Second), true},
		{"just before validUntil", now.Add(testTimings.Cadence - time.Millisecond), true},
		{"at validUntil", now.Add(testTimings.Cadence), false},
		{"before validFrom", now.Add(-time.Second), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := h.Redeemable(stamp.Hash, tc.claimed); got != tc.want {
				t.Fatalf("Redeemable(%s) = %v, want %v", tc.name, got, tc.want)
			}
		})
	}
}

func TestUnknownHashNotRedeemable(t *testing.T) {
	h := NewHistory(testTimings)
	now := time.Now()
	h.Issue(now)

	if h.Redeemable("not-a-real-hash", now) {
		t.Fatal("unknown hash should not be redeemable")
	}
}

func TestHistoricalEntryStillRedeemable(t *testing.T) {
	// A token that rotated out of "current" but is still inside the leeway
	// window must be accepted for its own validity window.
	h := NewHistory(testTimings)
	base := time.Now()

	first := h.Issue(base)
	h.Issue(base.Add(testTimings.Cadence))

	if h.Current() == first.Hash {
		t.Fatal("first hash should no longer be current")
	}
	if !h.Redeemable(first.Hash, base.Add(5*time.Second)) {
		t.Fatal("historical entry inside its window should be redeemable")
	}
}

func TestSlidingWindowEviction(t *testing.T) {
	// After N+1 issues with depth N, the oldest token is gone.
	h := NewHistory(testTimings)
	base := time.Now()

	first := h.Issue(base)
	for i := 1; i <= testTimings.LeewayMultiplier; i++ {
		h.Issue(base.Add(time.Duration(i) * testTimings.Cadence))
	}

	if h.Len() != testTimings.LeewayMultiplier {
		t.Fatalf("history length = %d, want %d", h.Len(), testTimings.LeewayMultiplier)
	}
	if h.Redeemable(first.Hash, base.Add(time.Second)) {
		t.Fatal("evicted token should not be redeemable even inside its original window")
	}
}
