package budgetwindow

import (
	"context"
	"errors"
	"testing"

	"github.com/joelkehle/budgetwindow/internal/enrich"
	"github.com/joelkehle/budgetwindow/internal/signals"
)

type fakeEnricher struct {
	record enrich.CompanyRecord
	err    error
	calls  int
}

func (f *fakeEnricher) Fetch(context.Context, string) (enrich.CompanyRecord, error) {
	f.calls++
	return f.record, f.err
}

type fakeGatherer struct {
	bundle signals.Bundle
	err    error
	calls  int
}

func (f *fakeGatherer) Gather(context.Context, string) (signals.Bundle, error) {
	f.calls++
	return f.bundle, f.err
}

type fakeEngineCaller struct {
	resp  string
	calls int
}

func (f *fakeEngineCaller) GenerateJSON(context.Context, GenerateRequest) (string, error) {
	f.calls++
	return f.resp, nil
}

func (f *fakeEngineCaller) ModelName() string { return "fake-model" }

type harness struct {
	enricher    *fakeEnricher
	gatherer    *fakeGatherer
	caller      *fakeEngineCaller
	constructed int
}

func newHarness() *harness {
	return &harness{
		enricher: &fakeEnricher{record: enrich.CompanyRecord{"name": "Acme", "employees": 300.0}},
		gatherer: &fakeGatherer{bundle: signals.Bundle{signals.TopicFunding: []signals.Result{{Title: "Series B"}}}},
		caller:   &fakeEngineCaller{resp: simpleValidJSON},
	}
}

func (h *harness) orchestrator() *Orchestrator {
	return NewOrchestratorWith(Collaborators{
		NewEnricher: func(string) (Enricher, error) { h.constructed++; return h.enricher, nil },
		NewGatherer: func(string) (SignalGatherer, error) { h.constructed++; return h.gatherer, nil },
		NewCaller:   func(string, string) (LLMCaller, error) { h.constructed++; return h.caller, nil },
	})
}

func validRequest() AnalysisRequest {
	return AnalysisRequest{
		Domain:   "acme.com",
		Strategy: StrategySimple,
		Credentials: Credentials{
			EnrichmentKey: "e-key",
			SearchKey:     "s-key",
			GenerationKey: "g-key",
		},
	}
}

func TestAnalyzeMissingCredentialSubsets(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Credentials)
		missing []string
	}{
		{"enrichment", func(c *Credentials) { c.EnrichmentKey = "" }, []string{"enrichment"}},
		{"search", func(c *Credentials) { c.SearchKey = "" }, []string{"search"}},
		{"generation", func(c *Credentials) { c.GenerationKey = "" }, []string{"generation"}},
		{"enrichment+search", func(c *Credentials) { c.EnrichmentKey, c.SearchKey = "", "" }, []string{"enrichment", "search"}},
		{"all", func(c *Credentials) { *c = Credentials{} }, []string{"enrichment", "search", "generation"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness()
			req := validRequest()
			tc.mutate(&req.Credentials)
			_, err := h.orchestrator().Analyze(context.Background(), req)
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("expected *ConfigError, got %v", err)
			}
			if len(ce.MissingCredentials) != len(tc.missing) {
				t.Fatalf("missing = %v, want %v", ce.MissingCredentials, tc.missing)
			}
			for i, want := range tc.missing {
				if ce.MissingCredentials[i] != want {
					t.Errorf("missing[%d] = %q, want %q", i, ce.MissingCredentials[i], want)
				}
			}
			if h.constructed != 0 || h.enricher.calls != 0 || h.gatherer.calls != 0 || h.caller.calls != 0 {
				t.Error("no client may be constructed or called before credentials validate")
			}
		})
	}
}

func TestAnalyzeEmptyDomain(t *testing.T) {
	h := newHarness()
	req := validRequest()
	req.Domain = "   "
	_, err := h.orchestrator().Analyze(context.Background(), req)
	var ce *ConfigError
	if !errors.As(err, &ce) || !ce.EmptyDomain {
		t.Fatalf("expected empty-domain ConfigError, got %v", err)
	}
	if h.enricher.calls != 0 || h.gatherer.calls != 0 {
		t.Error("no network calls expected")
	}
}

func TestAnalyzeEnrichmentFailureDegrades(t *testing.T) {
	h := newHarness()
	h.enricher.record = nil
	h.enricher.err = &enrich.UnavailableError{StatusCode: 503}
	env, err := h.orchestrator().Analyze(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if env.Metadata.CompanyAvailable {
		t.Error("company should be marked unavailable")
	}
	if !env.Metadata.SignalsAvailable {
		t.Error("signals should be available")
	}
	if h.caller.calls != 1 {
		t.Errorf("scoring engine calls = %d, want 1", h.caller.calls)
	}
	if len(env.Metadata.UpstreamWarnings) != 1 {
		t.Errorf("warnings = %v", env.Metadata.UpstreamWarnings)
	}
}

func TestAnalyzeSignalFailureDegrades(t *testing.T) {
	h := newHarness()
	h.gatherer.bundle = nil
	h.gatherer.err = errors.New("all signal queries failed")
	env, err := h.orchestrator().Analyze(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if env.Metadata.SignalsAvailable || !env.Metadata.CompanyAvailable {
		t.Errorf("availability = company:%v signals:%v", env.Metadata.CompanyAvailable, env.Metadata.SignalsAvailable)
	}
	if h.caller.calls != 1 {
		t.Errorf("scoring engine calls = %d, want 1", h.caller.calls)
	}
}

func TestAnalyzeBothUpstreamsFail(t *testing.T) {
	h := newHarness()
	h.enricher.record, h.enricher.err = nil, &enrich.UnavailableError{StatusCode: 500}
	h.gatherer.bundle, h.gatherer.err = nil, errors.New("all signal queries failed")
	_, err := h.orchestrator().Analyze(context.Background(), validRequest())
	var de *DataAvailabilityError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DataAvailabilityError, got %v", err)
	}
	if h.caller.calls != 0 {
		t.Error("scoring engine must not be invoked without upstream data")
	}
}

func TestAnalyzeScoringFailurePropagates(t *testing.T) {
	h := newHarness()
	h.caller.resp = "not json at all"
	_, err := h.orchestrator().Analyze(context.Background(), validRequest())
	var se *StageError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StageError, got %v", err)
	}
}

func TestAnalyzeAdvancedStrategyPassedThrough(t *testing.T) {
	h := newHarness()
	// Advanced extraction runs first; a non-JSON response must fail with the
	// extraction stage named, proving the strategy selection reached the
	// engine unchanged.
	h.caller.resp = "nope"
	req := validRequest()
	req.Strategy = StrategyAdvanced
	_, err := h.orchestrator().Analyze(context.Background(), req)
	var se *StageError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StageError, got %v", err)
	}
	if se.Stage != stageExtraction {
		t.Errorf("stage = %q, want %q", se.Stage, stageExtraction)
	}
	if h.caller.calls != 1 {
		t.Errorf("calls = %d, want 1 (no later stages)", h.caller.calls)
	}
}

func TestAnalyzeUnknownStrategy(t *testing.T) {
	h := newHarness()
	req := validRequest()
	req.Strategy = "clever"
	if _, err := h.orchestrator().Analyze(context.Background(), req); err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}

func TestAnalyzeEnvelope(t *testing.T) {
	h := newHarness()
	env, err := h.orchestrator().Analyze(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if env.Domain != "acme.com" || env.Strategy != StrategySimple {
		t.Errorf("envelope header %s/%s", env.Domain, env.Strategy)
	}
	if env.Result.Score != 55 {
		t.Errorf("score = %d", env.Result.Score)
	}
	if env.Metadata.LLMCalls != 1 {
		t.Errorf("llm calls = %d", env.Metadata.LLMCalls)
	}
	if _, ok := env.Metadata.StageDurationsMS["simple_scoring"]; !ok {
		t.Errorf("stage durations = %v", env.Metadata.StageDurationsMS)
	}
	if env.ReportMarkdown == "" || env.Disclaimer == "" {
		t.Error("report markdown and disclaimer expected")
	}
}
