package score

import (
	"fmt"
	"testing"

	"github.com/decoyhq/agenttrap/internal/request"
	"github.com/decoyhq/agenttrap/internal/session"
)

func freshSession() session.Session {
	return session.Session{
		EndpointsCalled:       map[string]bool{},
		MethodsUsed:           map[string]bool{},
		ClassificationReasons: map[string]bool{},
		Classification:        session.Unknown,
	}
}

func TestColdStartDocsProbe(t *testing.T) {
	// First request: GET /api/docs from curl.
	prior := freshSession()
	meta := request.Metadata{Method: "GET", Path: "/api/docs"}
	v := Verdicts{Docs: true, BotUserAgent: true}

	score, reasons := Evaluate(prior, meta, v)

	if score != 35 {
		t.Errorf("score = %d, want 35 (docs_first + bot_user_agent)", score)
	}
	if len(reasons) != 2 {
		t.Errorf("reasons = %v, want 2", reasons)
	}
	if Classify(score) != session.Human {
		t.Errorf("classification = %v, want human", Classify(score))
	}
}

func TestDocsFirstOnlyEarlyInSession(t *testing.T) {
	prior := freshSession()
	prior.RequestCount = 3
	meta := request.Metadata{Method: "GET", Path: "/api/docs"}

	score, _ := Evaluate(prior, meta, Verdicts{Docs: true})
	if score != 0 {
		t.Errorf("score = %d, docs_first must not fire after the first requests", score)
	}
}

func TestSystematicProbingCountsCurrentPath(t *testing.T) {
	prior := freshSession()
	for i := 0; i < 5; i++ {
		prior.EndpointsCalled[fmt.Sprintf("/api/%d", i)] = true
	}
	prior.RequestCount = 5

	// Sixth distinct endpoint pushes the union over 5.
	meta := request.Metadata{Method: "GET", Path: "/api/new"}
	score, reasons := Evaluate(prior, meta, Verdicts{})

	found := false
	for _, r := range reasons {
		if r == ReasonSystematicProbing {
			found = true
		}
	}
	if !found {
		t.Errorf("reasons = %v, want systematic_probing", reasons)
	}
	if score < 25 {
		t.Errorf("score = %d, want at least 25", score)
	}
}

func TestSystematicEnumerationScenario(t *testing.T) {
	// Session five requests in: docs probe then four distinct admin paths.
	// The sixth distinct endpoint tips the enumeration rule.
	prior := freshSession()
	prior.AgentLikenessScore = 60
	prior.ClassificationReasons[ReasonDocsFirst] = true
	prior.ClassificationReasons[ReasonBotUserAgent] = true
	prior.ClassificationReasons[ReasonAdminProbing] = true
	prior.ClassificationReasons[ReasonHighDiversity] = true
	prior.EndpointsCalled["/api/docs"] = true
	for i := 1; i <= 4; i++ {
		prior.EndpointsCalled[fmt.Sprintf("/api/admin/%d", i)] = true
	}
	prior.MethodsUsed["GET"] = true
	prior.RequestCount = 5

	meta := request.Metadata{Method: "GET", Path: "/api/admin/5"}
	v := Verdicts{Admin: true, BotUserAgent: true}

	score, reasons := Evaluate(prior, meta, v)

	if score != 85 {
		t.Errorf("score = %d, want 85 (60 + systematic_probing 25)", score)
	}
	if len(reasons) != 1 || reasons[0] != ReasonSystematicProbing {
		t.Errorf("reasons = %v, want only systematic_probing", reasons)
	}
	if Classify(score) != session.AIAgent {
		t.Errorf("classification = %v, want ai_agent", Classify(score))
	}
}

func TestReasonIdempotence(t *testing.T) {
	prior := freshSession()
	meta := request.Metadata{Method: "GET", Path: "/api/users"}

	score1, reasons1 := Evaluate(prior, meta, Verdicts{SQLInjection: true})
	if score1 != 25 || len(reasons1) != 1 {
		t.Fatalf("first pass: score=%d reasons=%v", score1, reasons1)
	}

	prior.AgentLikenessScore = score1
	prior.ClassificationReasons[ReasonSQLInjection] = true
	prior.RequestCount = 1

	score2, reasons2 := Evaluate(prior, meta, Verdicts{SQLInjection: true})
	if score2 != 25 {
		t.Errorf("score = %d, a tag must not contribute twice", score2)
	}
	if len(reasons2) != 0 {
		t.Errorf("reasons = %v, want none on repeat", reasons2)
	}
}

func TestHoneyTokenPoints(t *testing.T) {
	prior := freshSession()
	meta := request.Metadata{Method: "POST", Path: "/api/x"}

	score, reasons := Evaluate(prior, meta, Verdicts{HoneyToken: true})
	if score != 30 {
		t.Errorf("score = %d, want 30", score)
	}
	if len(reasons) != 1 || reasons[0] != ReasonHoneyToken {
		t.Errorf("reasons = %v", reasons)
	}
}

func TestMultipleMethods(t *testing.T) {
	prior := freshSession()
	prior.MethodsUsed["GET"] = true
	prior.MethodsUsed["POST"] = true
	prior.RequestCount = 2

	meta := request.Metadata{Method: "DELETE", Path: "/api/x"}
	score, reasons := Evaluate(prior, meta, Verdicts{})

	if score != 15 || len(reasons) != 1 || reasons[0] != ReasonMultipleMethods {
		t.Errorf("score=%d reasons=%v, want multiple_methods +15", score, reasons)
	}
}

func TestHighDiversity(t *testing.T) {
	prior := freshSession()
	prior.EndpointsCalled["/a"] = true
	prior.EndpointsCalled["/b"] = true
	prior.EndpointsCalled["/c"] = true
	prior.RequestCount = 3

	// 4th request, 4th distinct endpoint: 4/4 > 0.7.
	meta := request.Metadata{Method: "GET", Path: "/d"}
	score, reasons := Evaluate(prior, meta, Verdicts{})

	if score != 10 || len(reasons) != 1 || reasons[0] != ReasonHighDiversity {
		t.Errorf("score=%d reasons=%v, want high_diversity +10", score, reasons)
	}
}

func TestRegularIntervals(t *testing.T) {
	cv := 0.1
	prior := freshSession()
	prior.IntervalCV = &cv
	prior.RequestCount = 4 // becomes 5 with this request

	meta := request.Metadata{Method: "GET", Path: "/api/x"}
	score, reasons := Evaluate(prior, meta, Verdicts{})

	if score != 25 || len(reasons) != 1 || reasons[0] != ReasonRegularIntervals {
		t.Errorf("score=%d reasons=%v, want regular_intervals +25", score, reasons)
	}

	t.Run("needs low variance", func(t *testing.T) {
		high := 0.9
		prior.IntervalCV = &high
		score, _ := Evaluate(prior, meta, Verdicts{})
		if score != 0 {
			t.Errorf("score = %d, want 0 for irregular intervals", score)
		}
	})

	t.Run("needs enough requests", func(t *testing.T) {
		low := 0.1
		prior.IntervalCV = &low
		prior.RequestCount = 2
		score, _ := Evaluate(prior, meta, Verdicts{})
		if score != 0 {
			t.Errorf("score = %d, want 0 below five requests", score)
		}
	})
}

func TestScoreClampedAt100(t *testing.T) {
	prior := freshSession()
	prior.AgentLikenessScore = 95
	meta := request.Metadata{Method: "POST", Path: "/api/admin/x"}
	v := Verdicts{SQLInjection: true, HoneyToken: true, Admin: true, BotUserAgent: true}

	score, _ := Evaluate(prior, meta, v)
	if score != 100 {
		t.Errorf("score = %d, want clamp at 100", score)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		score int
		want  session.Classification
	}{
		{0, session.Human},
		{39, session.Human},
		{40, session.Scraper},
		{69, session.Scraper},
		{70, session.AIAgent},
		{100, session.AIAgent},
	}
	for _, tt := range tests {
		if got := Classify(tt.score); got != tt.want {
			t.Errorf("Classify(%d) = %v, want %v", tt.score, got, tt.want)
		}
	}
}
