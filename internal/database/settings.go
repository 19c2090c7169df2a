package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/Krugou/Attenddotmetropoliadotfi-sub002/pkg/types"
)

// Settings table keys for session timing overrides.
const (
	settingCadence          = "attendance_cadence"
	settingLeewayMultiplier = "attendance_leeway_multiplier"
	settingTimeout          = "attendance_timeout"
)

// SettingsProvider reads session timings from the settings table, falling
// back to the supplied defaults for absent or unparsable keys. A query
// failure is returned to the caller, who falls back to defaults entirely.
type SettingsProvider struct {
	db       *sql.DB
	defaults types.SessionTimings
}

// NewSettingsProvider creates a provider over an open manager.
func NewSettingsProvider(m *Manager, defaults types.SessionTimings) *SettingsProvider {
	return &SettingsProvider{db: m.db, defaults: defaults}
}

// SessionTimings implements interfaces.SettingsProvider.
func (p *SettingsProvider) SessionTimings(ctx context.Context) (types.SessionTimings, error) {
	timings := p.defaults

	if raw, err := p.lookup(ctx, settingCadence); err != nil {
		return timings, err
	} else if raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			timings.Cadence = d
		} else {
			log.Printf("Ignoring unparsable setting %s=%q", settingCadence, raw)
		}
	}

	if raw, err := p.lookup(ctx, settingLeewayMultiplier); err != nil {
		return timings, err
	} else if raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			timings.LeewayMultiplier = n
		} else {
			log.Printf("Ignoring unparsable setting %s=%q", settingLeewayMultiplier, raw)
		}
	}

	if raw, err := p.lookup(ctx, settingTimeout); err != nil {
		return timings, err
	} else if raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			timings.Timeout = d
		} else {
			log.Printf("Ignoring unparsable setting %s=%q", settingTimeout, raw)
		}
	}

	return timings, nil
}

func (p *SettingsProvider) lookup(ctx context.Context, key string) (string, error) {
	var value string
	err := p.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return value, nil
}
