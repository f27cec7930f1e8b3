package budgetwindow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/joelkehle/budgetwindow/internal/enrich"
	"github.com/joelkehle/budgetwindow/internal/signals"
)

type fakeRunner struct {
	insights ExtractedInsights
	scoring  ScoringOutput
	synth    SynthesisOutput
	err      map[string]error
	calls    map[string]int
	synthIn  SynthesisInput
}

func newFakeRunner() *fakeRunner {
	months := 2
	return &fakeRunner{
		insights: ExtractedInsights{
			FundingRecencyMonths: &months,
			HiringSignal:         HiringExpanding,
			SalesHiring:          true,
			ExpansionSignals:     true,
			TechModernity:        TechModern,
		},
		scoring: ScoringOutput{
			Scores: DimensionScores{
				Timing:             80,
				Growth:             70,
				TechModernization:  90,
				CompanySize:        100,
				BudgetAvailability: 70,
			},
			ReportedWeightedScore: 12.0, // deliberately wrong; must be ignored
			Confidence:            ConfidenceHigh,
		},
		synth: SynthesisOutput{
			Status:         StatusRed, // deliberately inconsistent; thresholds win
			Reasoning:      "Strong timing and growth.",
			PrimaryTrigger: TriggerFunding,
			ApproachAngle:  "Lead with the funding round.",
			Evidence:       []string{"funding 2 months ago", "sales hiring", "modern stack"},
			Recommendation: "Reach out this week.",
			EmailDraft:     "Hi ...",
		},
		err:   map[string]error{},
		calls: map[string]int{},
	}
}

func (f *fakeRunner) RunExtraction(context.Context, signals.Bundle, string) (ExtractedInsights, error) {
	f.calls[stageExtraction]++
	return f.insights, f.err[stageExtraction]
}

func (f *fakeRunner) RunScoring(context.Context, enrich.CompanyRecord, ExtractedInsights) (ScoringOutput, error) {
	f.calls[stageScoring]++
	return f.scoring, f.err[stageScoring]
}

func (f *fakeRunner) RunSynthesis(_ context.Context, in SynthesisInput) (SynthesisOutput, error) {
	f.calls[stageSynthesis]++
	f.synthIn = in
	return f.synth, f.err[stageSynthesis]
}

func TestAdvancedRecomputesWeightedScoreServerSide(t *testing.T) {
	r := newFakeRunner()
	res, err := NewAdvancedStrategy(r).Score(context.Background(), enrich.CompanyRecord{"employees": 300.0}, signals.Bundle{}, "acme.com")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if res.Score != 82 {
		t.Errorf("score = %d, want 82 (recomputed, not the model's 12)", res.Score)
	}
	if res.Status != StatusGreen {
		t.Errorf("status = %s, want GREEN (forced consistent with score)", res.Status)
	}
	if res.DetailedScores == nil || res.DetailedScores.WeightedScore != 81.5 {
		t.Errorf("detailed scores = %+v", res.DetailedScores)
	}
	if res.Confidence != ConfidenceHigh || res.PrimaryTrigger != TriggerFunding {
		t.Errorf("confidence/trigger = %s/%s", res.Confidence, res.PrimaryTrigger)
	}
}

func TestAdvancedSynthesisSeesComputedScore(t *testing.T) {
	r := newFakeRunner()
	if _, err := NewAdvancedStrategy(r).Score(context.Background(), nil, nil, "acme.com"); err != nil {
		t.Fatalf("Score: %v", err)
	}
	if r.synthIn.WeightedScore != 82 || r.synthIn.Status != StatusGreen {
		t.Errorf("synthesis input = %d/%s", r.synthIn.WeightedScore, r.synthIn.Status)
	}
}

func TestAdvancedExtractionFailureStopsPipeline(t *testing.T) {
	r := newFakeRunner()
	r.err[stageExtraction] = &StageError{Stage: stageExtraction, Err: errors.New("response contained no JSON object")}
	_, err := NewAdvancedStrategy(r).Score(context.Background(), nil, nil, "acme.com")
	var se *StageError
	if !errors.As(err, &se) || se.Stage != stageExtraction {
		t.Fatalf("expected extraction StageError, got %v", err)
	}
	if r.calls[stageScoring] != 0 || r.calls[stageSynthesis] != 0 {
		t.Error("scoring/synthesis must not run after extraction failure")
	}
}

func TestAdvancedScoringFailureStopsPipeline(t *testing.T) {
	r := newFakeRunner()
	r.err[stageScoring] = &StageError{Stage: stageScoring, Err: errors.New("boom")}
	_, err := NewAdvancedStrategy(r).Score(context.Background(), nil, nil, "acme.com")
	var se *StageError
	if !errors.As(err, &se) || se.Stage != stageScoring {
		t.Fatalf("expected scoring StageError, got %v", err)
	}
	if r.calls[stageSynthesis] != 0 {
		t.Error("synthesis must not run after scoring failure")
	}
}

func TestLLMStageRunnerStagesAndParams(t *testing.T) {
	months := 4
	responses := map[string]string{
		stageExtraction: mustJSON(ExtractedInsights{FundingRecencyMonths: &months, HiringSignal: HiringStable, TechModernity: TechMixed}),
		stageScoring:    `{"scores":{"timing":60,"growth":50,"tech_modernization":50,"company_size":40,"budget_availability":50},"weighted_score":51.5,"confidence":"medium"}`,
		stageSynthesis:  `{"status":"YELLOW","reasoning":"r","primary_trigger":"hiring","approach_angle":"a","evidence":["a","b","c"],"recommendation":"x","email_draft":"y"}`,
	}
	caller := &stagedCaller{responses: responses}
	exec := NewStageExecutor(caller)
	runner := NewLLMStageRunner(exec)

	res, err := NewAdvancedStrategy(runner).Score(context.Background(), enrich.CompanyRecord{"name": "Acme"}, signals.Bundle{signals.TopicFunding: nil}, "acme.com")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	// 60*0.30+50*0.25+50*0.20+40*0.15+50*0.10 = 51.5 -> 52 YELLOW
	if res.Score != 52 || res.Status != StatusYellow {
		t.Errorf("result = %d/%s", res.Score, res.Status)
	}
	if exec.Calls() != 3 {
		t.Errorf("expected 3 generation calls, got %d", exec.Calls())
	}
	wantTemps := map[string]float64{stageExtraction: 0.1, stageScoring: 0.1, stageSynthesis: 0.4}
	for stage, temp := range wantTemps {
		got, ok := caller.params[stage]
		if !ok {
			t.Fatalf("stage %s never called", stage)
		}
		if got.Temperature != temp {
			t.Errorf("stage %s temperature = %v, want %v", stage, got.Temperature, temp)
		}
	}
	if caller.params[stageExtraction].MaxTokens != 800 || caller.params[stageSynthesis].MaxTokens != 2000 {
		t.Error("unexpected max token budgets")
	}
}

// stagedCaller routes responses by the rubric/schema text present in each
// stage's prompt.
type stagedCaller struct {
	responses map[string]string
	params    map[string]GenerateRequest
}

func (c *stagedCaller) GenerateJSON(_ context.Context, req GenerateRequest) (string, error) {
	if c.params == nil {
		c.params = map[string]GenerateRequest{}
	}
	stage := stageSynthesis
	switch {
	case strings.Contains(req.Prompt, "Stage 1: Signal Extraction"):
		stage = stageExtraction
	case strings.Contains(req.Prompt, "Stage 2: Dimension Scoring"):
		stage = stageScoring
	}
	c.params[stage] = req
	return c.responses[stage], nil
}

func (c *stagedCaller) ModelName() string { return "fake-model" }

func TestScoringValidation(t *testing.T) {
	bad := ScoringOutput{Scores: DimensionScores{Timing: 120}, Confidence: ConfidenceLow}
	if err := validateScoring(bad); err == nil {
		t.Error("expected range error")
	}
	bad = ScoringOutput{Confidence: "certain"}
	if err := validateScoring(bad); err == nil {
		t.Error("expected confidence error")
	}
}

func TestInsightsValidation(t *testing.T) {
	if err := validateInsights(ExtractedInsights{HiringSignal: "booming", TechModernity: TechModern}); err == nil {
		t.Error("expected hiring_signal error")
	}
	neg := -1
	if err := validateInsights(ExtractedInsights{HiringSignal: HiringStable, TechModernity: TechModern, FundingRecencyMonths: &neg}); err == nil {
		t.Error("expected negative recency error")
	}
}
