package types

import "time"

// SessionTimings are the timing parameters fixed at session start. Changes
// to global settings do not affect sessions already running.
type SessionTimings struct {
	// Cadence drives token rotation, the periodic republish and the
	// heartbeat ping.
	Cadence time.Duration
	// LeewayMultiplier sets how many rotation periods a historical token
	// stays redeemable: leeway window = Cadence * LeewayMultiplier.
	LeewayMultiplier int
	// Timeout is the absolute session length after which the session
	// auto-finalizes regardless of roster completeness.
	Timeout time.Duration
}

// HistoryDepth is the number of token history entries retained.
func (t SessionTimings) HistoryDepth() int {
	if t.LeewayMultiplier < 1 {
		return 1
	}
	return t.LeewayMultiplier
}
