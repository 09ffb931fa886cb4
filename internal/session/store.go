package session

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

// maxGaps bounds the inter-arrival ring used for interval statistics.
const maxGaps = 10

// Diff is the analyzer's computed change for one request. All collection
// fields merge commutatively (set union, boolean OR, max score), so
// concurrent applies against the same session converge to the same state.
type Diff struct {
	Endpoints []string
	Methods   []string
	Reasons   []string
	Flags     Flags

	Score             int
	Classification    Classification
	LastActivity      time.Time
	IncrementRequests int
}

type key struct {
	ip string
	ua string
}

type entry struct {
	s           Session
	lastArrival time.Time
	gaps        []float64 // inter-arrival gaps, milliseconds
}

// Store keeps active sessions keyed by (ip, user_agent) with a sliding
// inactivity timeout. All access is serialized on one mutex; callers only
// ever see snapshots, so no session state escapes the lock.
type Store struct {
	mu      sync.Mutex
	timeout time.Duration
	byKey   map[key]*entry
	byID    map[string]*entry
}

func NewStore(timeout time.Duration) *Store {
	return &Store{
		timeout: timeout,
		byKey:   make(map[key]*entry),
		byID:    make(map[string]*entry),
	}
}

// GetOrCreate returns a snapshot of the live session for (ip, ua), creating
// a fresh one when none exists or the previous one has been idle for the
// full timeout. The arrival at now is folded into the interval statistics;
// counters and last_activity only move when the analyzer applies its diff.
func (st *Store) GetOrCreate(ip, ua string, now time.Time) Session {
	k := key{ip: ip, ua: ua}

	st.mu.Lock()
	defer st.mu.Unlock()

	e, ok := st.byKey[k]
	if ok && now.Sub(e.lastArrival) < st.timeout {
		gap := float64(now.Sub(e.lastArrival)) / float64(time.Millisecond)
		e.gaps = append(e.gaps, gap)
		if len(e.gaps) > maxGaps {
			e.gaps = e.gaps[len(e.gaps)-maxGaps:]
		}
		e.lastArrival = now
		e.refreshIntervalStats()
		return e.s.clone()
	}

	if ok {
		// Idle past the window: close out the old session and start over.
		ended := e.lastArrival
		e.s.EndTime = &ended
	}

	fresh := &entry{
		s: Session{
			ID:                    uuid.New().String(),
			IP:                    ip,
			UserAgent:             ua,
			StartTime:             now,
			LastActivity:          now,
			EndpointsCalled:       make(map[string]bool),
			MethodsUsed:           make(map[string]bool),
			ClassificationReasons: make(map[string]bool),
			Classification:        Unknown,
		},
		lastArrival: now,
	}
	st.byKey[k] = fresh
	st.byID[fresh.s.ID] = fresh
	return fresh.s.clone()
}

// Get returns a snapshot of the session with the given id.
func (st *Store) Get(id string) (Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	e, ok := st.byID[id]
	if !ok {
		return Session{}, false
	}
	return e.s.clone(), true
}

// Apply merges a diff into the stored session and returns the merged
// snapshot. Scores only move up, flags only latch on, and set fields only
// grow, so the merge is safe under concurrent analyses of the same key.
func (st *Store) Apply(id string, d Diff) (Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	e, ok := st.byID[id]
	if !ok {
		return Session{}, false
	}
	s := &e.s

	for _, p := range d.Endpoints {
		s.EndpointsCalled[p] = true
	}
	for _, m := range d.Methods {
		s.MethodsUsed[m] = true
	}
	for _, tag := range d.Reasons {
		s.ClassificationReasons[tag] = true
	}
	s.Flags = s.Flags.or(d.Flags)
	if len(s.EndpointsCalled) > 5 {
		s.Flags.SystematicProbing = true
	}

	if d.Score > s.AgentLikenessScore {
		s.AgentLikenessScore = d.Score
	}
	if d.Classification != "" {
		s.Classification = d.Classification
	}
	if !d.LastActivity.IsZero() && d.LastActivity.After(s.LastActivity) {
		s.LastActivity = d.LastActivity
	}
	s.RequestCount += d.IncrementRequests

	return s.clone(), true
}

// refreshIntervalStats recomputes mean and coefficient of variation over
// the gap ring. The mean needs one gap (two requests); the CV needs four
// (five requests) before it is considered meaningful.
func (e *entry) refreshIntervalStats() {
	if len(e.gaps) == 0 {
		return
	}
	sum := 0.0
	for _, g := range e.gaps {
		sum += g
	}
	mean := sum / float64(len(e.gaps))
	e.s.IntervalMean = &mean

	if len(e.gaps) < 4 {
		return
	}
	variance := 0.0
	for _, g := range e.gaps {
		variance += (g - mean) * (g - mean)
	}
	variance /= float64(len(e.gaps))
	cv := 0.0
	if mean > 0 {
		cv = math.Sqrt(variance) / mean
	}
	e.s.IntervalCV = &cv
}
