// Package score composes detector verdicts with prior session state into
// the additive agent-likeness score and its classification.
package score

import (
	"github.com/decoyhq/agenttrap/internal/request"
	"github.com/decoyhq/agenttrap/internal/session"
)

// Reason tags. Each tag awards its points at most once per session.
const (
	ReasonDocsFirst         = "docs_first"
	ReasonSystematicProbing = "systematic_probing"
	ReasonAdminProbing      = "admin_probing"
	ReasonSQLInjection      = "sql_injection"
	ReasonBotUserAgent      = "bot_user_agent"
	ReasonMultipleMethods   = "multiple_methods"
	ReasonHoneyToken        = "honey_token"
	ReasonHighDiversity     = "high_diversity"
	ReasonRegularIntervals  = "regular_intervals"
)

const maxScore = 100

// Verdicts carries the detector outputs for the current request.
type Verdicts struct {
	SQLInjection bool
	BotUserAgent bool
	HoneyToken   bool
	Docs         bool
	OpenAPI      bool
	Admin        bool
	Internal     bool
}

// Evaluate runs the scoring rules in fixed order against the prior session
// and the current request. It returns the new score (clamped to 100) and
// the tags newly awarded by this request. Tags already on the session are
// skipped, which is what keeps the score monotonic and idempotent.
func Evaluate(prior session.Session, meta request.Metadata, v Verdicts) (int, []string) {
	score := prior.AgentLikenessScore
	var awarded []string

	award := func(tag string, points int) {
		if prior.HasReason(tag) {
			return
		}
		for _, a := range awarded {
			if a == tag {
				return
			}
		}
		score += points
		awarded = append(awarded, tag)
	}

	endpointCount := len(prior.EndpointsCalled)
	if !prior.EndpointsCalled[meta.Path] {
		endpointCount++
	}
	methodCount := len(prior.MethodsUsed)
	if !prior.MethodsUsed[meta.Method] {
		methodCount++
	}
	requestCount := prior.RequestCount + 1

	// Rule 1: reading the docs within the first requests of a session.
	if (v.Docs || v.OpenAPI) && prior.RequestCount < 3 {
		award(ReasonDocsFirst, 20)
	}
	// Rule 2: enumerating many distinct endpoints.
	if endpointCount > 5 {
		award(ReasonSystematicProbing, 25)
	}
	// Rule 3: going for admin or internal surfaces.
	if v.Admin || v.Internal {
		award(ReasonAdminProbing, 15)
	}
	// Rule 4: injection payloads.
	if v.SQLInjection {
		award(ReasonSQLInjection, 25)
	}
	// Rule 5: automation user agent.
	if v.BotUserAgent {
		award(ReasonBotUserAgent, 15)
	}
	// Rule 6: spreading across HTTP verbs.
	if methodCount > 2 {
		award(ReasonMultipleMethods, 15)
	}
	// Rule 7: using a planted credential.
	if v.HoneyToken {
		award(ReasonHoneyToken, 30)
	}
	// Rule 8: nearly every request hits a new endpoint.
	if requestCount > 3 && float64(endpointCount)/float64(requestCount) > 0.7 {
		award(ReasonHighDiversity, 10)
	}
	// Rule 9: machine-regular pacing.
	if prior.IntervalCV != nil && *prior.IntervalCV < 0.3 && requestCount >= 5 {
		award(ReasonRegularIntervals, 25)
	}

	if score > maxScore {
		score = maxScore
	}
	return score, awarded
}

// Classify maps a score to its classification bucket.
func Classify(score int) session.Classification {
	switch {
	case score >= 70:
		return session.AIAgent
	case score >= 40:
		return session.Scraper
	default:
		return session.Human
	}
}
