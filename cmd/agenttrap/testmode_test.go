package main

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/decoyhq/agenttrap/internal/analyzer"
	"github.com/decoyhq/agenttrap/internal/session"
	"github.com/decoyhq/agenttrap/internal/token"
)

func TestTestTrafficShape(t *testing.T) {
	steps := testTraffic()
	if len(steps) != 8 {
		t.Fatalf("scripted traffic has %d steps, want 8", len(steps))
	}
	for i, step := range steps {
		if step.meta.IP == "" || step.meta.UserAgent == "" || step.meta.Path == "" {
			t.Errorf("step %d (%s) has incomplete metadata", i, step.label)
		}
	}
	last := steps[len(steps)-1]
	if last.label != "honey token use" {
		t.Errorf("last step = %q, want honey token use", last.label)
	}
}

func TestScriptedTrafficTripsEveryDetector(t *testing.T) {
	reg, err := token.NewRegistry(token.DefaultSeeds("sk_live_51HoneypotBaitKey2024"))
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	a := analyzer.New(analyzer.Config{
		Sessions: session.NewStore(10 * time.Minute),
		Tokens:   reg,
		Logger:   zerolog.Nop(),
	})

	now := time.Now()
	var last analyzer.Result
	for i, step := range testTraffic() {
		last = a.Analyze(context.Background(), step.meta, now.Add(time.Duration(i)*3*time.Second), 401, 2*time.Millisecond)
	}

	if last.Score != 100 {
		t.Errorf("final score = %d, want 100", last.Score)
	}
	if last.Classification != session.AIAgent {
		t.Errorf("classification = %s, want ai_agent", last.Classification)
	}
	if !last.HoneyTokenTriggered {
		t.Error("final step should trigger the planted AWS key")
	}
	if last.TechniqueID != "T1552" {
		t.Errorf("technique = %s, want T1552", last.TechniqueID)
	}

	want := []string{
		"admin_probing", "bot_user_agent", "docs_first", "high_diversity",
		"honey_token", "regular_intervals", "sql_injection", "systematic_probing",
	}
	got := append([]string(nil), last.Reasons...)
	sort.Strings(got)
	if len(got) != len(want) {
		t.Fatalf("reasons = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("reasons = %v, want %v", got, want)
		}
	}
}
