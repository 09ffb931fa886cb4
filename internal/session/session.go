// Package session reconstructs behavioral sessions from individual
// requests, keyed by (ip, user_agent) under a sliding inactivity window.
package session

import (
	"sort"
	"time"
)

// Classification buckets a session by its agent-likeness score.
type Classification string

const (
	Unknown Classification = "unknown"
	Human   Classification = "human"
	Scraper Classification = "scraper"
	AIAgent Classification = "ai_agent"
)

// Flags are the latching booleans on a session. Once a flag is true it
// never reverts for the session's lifetime.
type Flags struct {
	LookedAtDocs          bool
	TriedOpenAPI          bool
	TriedAdmin            bool
	TriedInternal         bool
	SystematicProbing     bool
	SQLInjectionAttempted bool
	UsedHoneyToken        bool
}

func (f Flags) or(other Flags) Flags {
	return Flags{
		LookedAtDocs:          f.LookedAtDocs || other.LookedAtDocs,
		TriedOpenAPI:          f.TriedOpenAPI || other.TriedOpenAPI,
		TriedAdmin:            f.TriedAdmin || other.TriedAdmin,
		TriedInternal:         f.TriedInternal || other.TriedInternal,
		SystematicProbing:     f.SystematicProbing || other.SystematicProbing,
		SQLInjectionAttempted: f.SQLInjectionAttempted || other.SQLInjectionAttempted,
		UsedHoneyToken:        f.UsedHoneyToken || other.UsedHoneyToken,
	}
}

// Session is one visitor's activity window. Values handed out by the store
// are snapshots; mutation goes through Store.Apply.
type Session struct {
	ID        string
	IP        string
	UserAgent string

	StartTime    time.Time
	LastActivity time.Time
	EndTime      *time.Time

	RequestCount    int
	EndpointsCalled map[string]bool
	MethodsUsed     map[string]bool

	Flags Flags

	AgentLikenessScore    int
	Classification        Classification
	ClassificationReasons map[string]bool

	// Inter-arrival statistics over the last few gaps. Mean is available
	// from 2 requests, the coefficient of variation from 5.
	IntervalMean *float64 // milliseconds
	IntervalCV   *float64
}

// HasReason reports whether a scoring tag has already been awarded.
func (s *Session) HasReason(tag string) bool {
	return s.ClassificationReasons[tag]
}

// Reasons returns the awarded tags in sorted order.
func (s *Session) Reasons() []string {
	out := make([]string, 0, len(s.ClassificationReasons))
	for tag := range s.ClassificationReasons {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// Endpoints returns the observed paths in sorted order.
func (s *Session) Endpoints() []string {
	out := make([]string, 0, len(s.EndpointsCalled))
	for p := range s.EndpointsCalled {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Methods returns the observed HTTP verbs in sorted order.
func (s *Session) Methods() []string {
	out := make([]string, 0, len(s.MethodsUsed))
	for m := range s.MethodsUsed {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

func (s *Session) clone() Session {
	out := *s
	out.EndpointsCalled = cloneSet(s.EndpointsCalled)
	out.MethodsUsed = cloneSet(s.MethodsUsed)
	out.ClassificationReasons = cloneSet(s.ClassificationReasons)
	if s.IntervalMean != nil {
		v := *s.IntervalMean
		out.IntervalMean = &v
	}
	if s.IntervalCV != nil {
		v := *s.IntervalCV
		out.IntervalCV = &v
	}
	if s.EndTime != nil {
		t := *s.EndTime
		out.EndTime = &t
	}
	return out
}

func cloneSet(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k := range in {
		out[k] = true
	}
	return out
}
