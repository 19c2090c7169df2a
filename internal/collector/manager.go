// Package collector owns the live attendance-collection sessions: one
// registry entry per lecture bundling the roster partitions, the rolling
// token history and the timer handles, so teardown is a single registry
// removal. State transitions return caller-scoped outcomes; group fan-out
// goes through the injected Broadcaster.
package collector

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Krugou/Attenddotmetropoliadotfi-sub002/internal/iptrack"
	"github.com/Krugou/Attenddotmetropoliadotfi-sub002/internal/roster"
	"github.com/Krugou/Attenddotmetropoliadotfi-sub002/internal/token"
	"github.com/Krugou/Attenddotmetropoliadotfi-sub002/pkg/interfaces"
	"github.com/Krugou/Attenddotmetropoliadotfi-sub002/pkg/types"
)

// DefaultTimings are the fallback session parameters used when the
// settings provider cannot be reached at session start.
var DefaultTimings = types.SessionTimings{
	Cadence:          10 * time.Second,
	LeewayMultiplier: 5,
	Timeout:          time.Hour,
}

// liveSession is one registry entry. Timers are split across two done
// channels: ownerDone stops the rotation and heartbeat loop tied to the
// creating connection, sessionDone stops the republish loop and the
// absolute timeout. Teardown closes both.
type liveSession struct {
	lectureID   string
	timings     types.SessionTimings
	roster      *roster.Roster
	tokens      *token.History
	ownerConn   string
	ownerDone   chan struct{}
	sessionDone chan struct{}
	startedAt   time.Time
}

// Manager is the session lifecycle controller. Safe for concurrent use;
// all in-memory mutation happens under the registry mutex, and the mutex
// is never held across a persistence call.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*liveSession

	store       interfaces.AttendanceStore
	settings    interfaces.SettingsProvider
	broadcaster interfaces.Broadcaster
	ips         *iptrack.Tracker

	defaults types.SessionTimings
	now      func() time.Time
}

// NewManager creates a collector wired to its collaborators.
func NewManager(store interfaces.AttendanceStore, settings interfaces.SettingsProvider, broadcaster interfaces.Broadcaster, ips *iptrack.Tracker) *Manager {
	return &Manager{
		sessions:    make(map[string]*liveSession),
		store:       store,
		settings:    settings,
		broadcaster: broadcaster,
		ips:         ips,
		defaults:    DefaultTimings,
		now:         time.Now,
	}
}

// Create opens a session for a lecture, or re-enters an existing one.
// Only privileged roles may call it. Re-entrant creates replace the prior
// timers rather than stacking new ones, re-broadcast the current roster
// and reset the session timer.
func (m *Manager) Create(ctx context.Context, lectureID, role, connID string) *Outcome {
	if !types.IsPrivilegedRole(role) {
		log.Printf("Rejected session create: lecture=%s role=%s conn=%s", lectureID, role, connID)
		return errorOutcome(CodeUnauthorizedRole, "role may not open attendance collection")
	}
	if !types.IsValidLectureID(lectureID) {
		return errorOutcome(CodeInvalidInput, "invalid lecture id")
	}

	m.mu.Lock()
	if s, exists := m.sessions[lectureID]; exists {
		m.rearmLocked(s, connID)
		snapshot := s.roster.Snapshot(lectureID)
		started := types.LectureStarted{LectureID: lectureID, TimeoutMS: s.timings.Timeout.Milliseconds()}
		m.mu.Unlock()

		m.broadcaster.Broadcast(lectureID, types.EventLectureStarted, started)
		m.broadcaster.Broadcast(lectureID, types.EventAllStudents, snapshot)
		m.broadcaster.Broadcast(lectureID, types.EventTimerReset, started)
		log.Printf("Re-entered session: lecture=%s conn=%s", lectureID, connID)
		return nil
	}
	m.mu.Unlock()

	timings, err := m.settings.SessionTimings(ctx)
	if err != nil {
		log.Printf("Settings fetch failed for lecture %s, using defaults: %v", lectureID, err)
		timings = m.defaults
	}

	enrolled, err := m.store.EnrolledStudents(ctx, lectureID)
	if err != nil {
		log.Printf("Roster fetch failed: lecture=%s: %v", lectureID, err)
		return errorOutcome(CodePersistenceFailure, "could not load enrolled students")
	}

	m.mu.Lock()
	if s, exists := m.sessions[lectureID]; exists {
		// A concurrent create won the race while we were fetching.
		m.rearmLocked(s, connID)
		snapshot := s.roster.Snapshot(lectureID)
		started := types.LectureStarted{LectureID: lectureID, TimeoutMS: s.timings.Timeout.Milliseconds()}
		m.mu.Unlock()

		m.broadcaster.Broadcast(lectureID, types.EventLectureStarted, started)
		m.broadcaster.Broadcast(lectureID, types.EventAllStudents, snapshot)
		m.broadcaster.Broadcast(lectureID, types.EventTimerReset, started)
		return nil
	}

	s := &liveSession{
		lectureID:   lectureID,
		timings:     timings,
		roster:      roster.Seed(enrolled),
		tokens:      token.NewHistory(timings),
		ownerConn:   connID,
		ownerDone:   make(chan struct{}),
		sessionDone: make(chan struct{}),
		startedAt:   m.now(),
	}
	s.tokens.Issue(m.now())
	m.sessions[lectureID] = s
	snapshot := s.roster.Snapshot(lectureID)
	started := types.LectureStarted{LectureID: lectureID, TimeoutMS: timings.Timeout.Milliseconds()}
	m.mu.Unlock()

	go m.runOwnerTimers(s, s.ownerDone, s.sessionDone)
	go m.runSessionTimers(s, s.sessionDone)

	m.broadcaster.Broadcast(lectureID, types.EventLectureStarted, started)
	m.broadcaster.Broadcast(lectureID, types.EventAllStudents, snapshot)
	log.Printf("Started session: lecture=%s students=%d cadence=%s timeout=%s",
		lectureID, s.roster.Size(), timings.Cadence, timings.Timeout)
	return nil
}

// rearmLocked replaces a session's timers and owner registration. Caller
// holds the registry mutex. The fresh loops receive their done channels
// as arguments; the displaced loops hold the closed ones and exit on
// their next select, so re-arming never stacks timers.
func (m *Manager) rearmLocked(s *liveSession, connID string) {
	close(s.ownerDone)
	close(s.sessionDone)
	s.ownerConn = connID
	s.ownerDone = make(chan struct{})
	s.sessionDone = make(chan struct{})
	s.startedAt = m.now()
	go m.runOwnerTimers(s, s.ownerDone, s.sessionDone)
	go m.runSessionTimers(s, s.sessionDone)
}

// runOwnerTimers drives token rotation and the heartbeat ping. It stops
// when the owning connection disconnects or the session tears down. The
// done channels are captured at spawn; reading them off the session
// struct would race with re-arming.
func (m *Manager) runOwnerTimers(s *liveSession, ownerDone, sessionDone <-chan struct{}) {
	rotate := time.NewTicker(s.timings.Cadence)
	heartbeat := time.NewTicker(s.timings.Cadence)
	defer rotate.Stop()
	defer heartbeat.Stop()

	for {
		select {
		case <-rotate.C:
			m.rotateToken(s.lectureID)
		case <-heartbeat.C:
			m.broadcaster.Broadcast(s.lectureID, types.EventPing, types.PongPayload{
				LectureID:  s.lectureID,
				UnixTimeMS: m.now().UnixMilli(),
			})
		case <-ownerDone:
			return
		case <-sessionDone:
			return
		}
	}
}

// runSessionTimers drives the periodic republish and the absolute session
// timeout. It survives owner disconnects and stops only on teardown. A
// timeout whose finalize fails re-arms itself so the republish keeps
// flowing and the finalize is retried.
func (m *Manager) runSessionTimers(s *liveSession, sessionDone <-chan struct{}) {
	republish := time.NewTicker(s.timings.Cadence)
	timeout := time.NewTimer(s.timings.Timeout)
	defer republish.Stop()
	defer timeout.Stop()

	for {
		select {
		case <-republish.C:
			m.republish(s.lectureID)
		case <-timeout.C:
			log.Printf("Session timeout fired: lecture=%s", s.lectureID)
			if m.autoFinalize(s.lectureID) {
				return
			}
			timeout.Reset(s.timings.Timeout)
		case <-sessionDone:
			return
		}
	}
}

// rotateToken issues a fresh token. A tick that fires after teardown finds
// no session and is a no-op.
func (m *Manager) rotateToken(lectureID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, exists := m.sessions[lectureID]
	if !exists {
		return
	}
	s.tokens.Issue(m.now())
}

// republish pushes the current token and roster split to the group; this
// is the channel clients watch for roster changes.
func (m *Manager) republish(lectureID string) {
	m.mu.Lock()
	s, exists := m.sessions[lectureID]
	if !exists {
		m.mu.Unlock()
		return
	}
	snapshot := s.roster.Snapshot(lectureID)
	data := types.CollectionData{
		LectureID:     lectureID,
		Hash:          s.tokens.Current(),
		Present:       snapshot.Present,
		NotYetPresent: snapshot.NotYetPresent,
	}
	m.mu.Unlock()

	m.broadcaster.Broadcast(lectureID, types.EventCollectionData, data)
}

// HandleDisconnect stops the rotation and heartbeat loops owned by a
// connection's session registrations. Sessions stay alive for the other
// connected clients.
func (m *Manager) HandleDisconnect(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.sessions {
		if s.ownerConn != connID {
			continue
		}
		select {
		case <-s.ownerDone:
		default:
			close(s.ownerDone)
		}
		log.Printf("Owner disconnected, rotation and heartbeat stopped: lecture=%s conn=%s", s.lectureID, connID)
	}
}

// ActiveLectures lists lecture ids with a live session, newest-agnostic.
func (m *Manager) ActiveLectures() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		out = append(out, id)
	}
	return out
}

// teardownLocked removes the registry entry, stops every timer and clears
// the lecture's address usage map. Caller holds the registry mutex. Every
// exit path (finalize, cancel) funnels through here.
func (m *Manager) teardownLocked(s *liveSession) {
	select {
	case <-s.ownerDone:
	default:
		close(s.ownerDone)
	}
	select {
	case <-s.sessionDone:
	default:
		close(s.sessionDone)
	}
	delete(m.sessions, s.lectureID)
	m.ips.Clear(s.lectureID)
}
