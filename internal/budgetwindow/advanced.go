package budgetwindow

import (
	"context"
	"fmt"
	"strings"

	"github.com/joelkehle/budgetwindow/internal/enrich"
	"github.com/joelkehle/budgetwindow/internal/signals"
)

// StageRunner abstracts the Advanced strategy's three chained generation
// stages so tests can substitute deterministic doubles.
type StageRunner interface {
	RunExtraction(ctx context.Context, bundle signals.Bundle, domain string) (ExtractedInsights, error)
	RunScoring(ctx context.Context, company enrich.CompanyRecord, insights ExtractedInsights) (ScoringOutput, error)
	RunSynthesis(ctx context.Context, in SynthesisInput) (SynthesisOutput, error)
}

// ScoringOutput is the scoring stage's raw response. ReportedWeightedScore is
// the model's own arithmetic; the final score is always recomputed from the
// five dimension scores and the fixed weights.
type ScoringOutput struct {
	Scores                DimensionScores `json:"scores"`
	ReportedWeightedScore float64         `json:"weighted_score"`
	Confidence            ConfidenceLevel `json:"confidence"`
}

type SynthesisInput struct {
	Domain        string
	Company       enrich.CompanyRecord
	Scores        DimensionScores
	WeightedScore int
	Status        Status
	Confidence    ConfidenceLevel
}

type SynthesisOutput struct {
	Status         Status         `json:"status"`
	Reasoning      string         `json:"reasoning"`
	PrimaryTrigger PrimaryTrigger `json:"primary_trigger"`
	ApproachAngle  string         `json:"approach_angle"`
	Evidence       []string       `json:"evidence"`
	Recommendation string         `json:"recommendation"`
	EmailDraft     string         `json:"email_draft"`
}

const (
	stageExtraction = "extraction"
	stageScoring    = "scoring"
	stageSynthesis  = "synthesis"
)

// AdvancedStrategy chains extraction, scoring, and synthesis. The stages are
// strictly sequential; any stage's failure aborts the analysis with no
// partial result and no fallback to the Simple strategy.
type AdvancedStrategy struct {
	runner StageRunner
}

func NewAdvancedStrategy(runner StageRunner) *AdvancedStrategy {
	return &AdvancedStrategy{runner: runner}
}

func (a *AdvancedStrategy) Score(ctx context.Context, company enrich.CompanyRecord, bundle signals.Bundle, domain string) (AnalysisResult, error) {
	insights, err := a.runner.RunExtraction(ctx, bundle, domain)
	if err != nil {
		return AnalysisResult{}, err
	}

	scoring, err := a.runner.RunScoring(ctx, company, insights)
	if err != nil {
		return AnalysisResult{}, err
	}
	scores := scoring.Scores
	scores.WeightedScore = scores.Weighted()
	finalScore := scores.RoundedWeighted()
	status := StatusForScore(finalScore)

	synth, err := a.runner.RunSynthesis(ctx, SynthesisInput{
		Domain:        domain,
		Company:       company,
		Scores:        scores,
		WeightedScore: finalScore,
		Status:        status,
		Confidence:    scoring.Confidence,
	})
	if err != nil {
		return AnalysisResult{}, err
	}

	// The narrative status must agree with the numeric score; the thresholds
	// win over whatever the model wrote.
	return AnalysisResult{
		Score:          finalScore,
		Status:         status,
		Reasoning:      synth.Reasoning,
		Evidence:       synth.Evidence,
		Recommendation: synth.Recommendation,
		EmailDraft:     synth.EmailDraft,
		DetailedScores: &scores,
		Confidence:     scoring.Confidence,
		PrimaryTrigger: synth.PrimaryTrigger,
		ApproachAngle:  synth.ApproachAngle,
	}, nil
}

// LLMStageRunner is the production StageRunner built on the shared executor.
type LLMStageRunner struct {
	exec *StageExecutor
}

func NewLLMStageRunner(exec *StageExecutor) *LLMStageRunner {
	return &LLMStageRunner{exec: exec}
}

const advancedSystemPrompt = "You are a sales intelligence analyst. You produce conservative, structured outputs and do not invent facts. Return strict JSON only."

const extractionSchemaPrompt = `Required JSON schema:
{
  "funding_recency_months": "int|null (months since the most recent funding round; null if unknown)",
  "hiring_signal": "expanding|stable|contracting",
  "sales_hiring": "boolean (true if actively hiring for sales roles)",
  "expansion_signals": "boolean (new markets, offices, products)",
  "tech_modernity": "recent_change|modern|mixed|legacy_heavy"
}`

const scoringRubricPrompt = `Score each dimension 0-100 using exactly these thresholds:

TIMING (weight 0.30)
  Funding <3 months ago: 100. 3-6 months: 80. 6-12 months: 60.
  More than 12 months: 30. Unknown: 50.

GROWTH (weight 0.25)
  Active sales hiring plus expansion signals: 100. Active non-sales hiring: 70.
  Stable: 50. Contracting: 20.

TECH_MODERNIZATION (weight 0.20)
  Recent stack change: 90. Modern stack: 70. Mixed: 50. Legacy-heavy: 30.

COMPANY_SIZE (weight 0.15)
  50-500 employees: 100. 500-2000: 80. 2000-5000: 60. Otherwise: 40.

BUDGET_AVAILABILITY (weight 0.10)
  Recent funding AND hiring: 100. Funding OR hiring: 70.
  Stable revenue only: 50. No signal: 30.`

const scoringSchemaPrompt = `Required JSON schema:
{
  "scores": {
    "timing": "int 0-100",
    "growth": "int 0-100",
    "tech_modernization": "int 0-100",
    "company_size": "int 0-100",
    "budget_availability": "int 0-100"
  },
  "weighted_score": "float (sum of score*weight)",
  "confidence": "high|medium|low"
}`

const synthesisSchemaPrompt = `Required JSON schema:
{
  "status": "GREEN|YELLOW|RED",
  "reasoning": "string (2-3 sentences)",
  "primary_trigger": "funding|hiring|tech_debt|expansion",
  "approach_angle": "string (how to open the conversation)",
  "evidence": ["string", "string", "string"],
  "recommendation": "string (action to take)",
  "email_draft": "string (personalized outreach email)"
}`

func (r *LLMStageRunner) RunExtraction(ctx context.Context, bundle signals.Bundle, domain string) (ExtractedInsights, error) {
	out := ExtractedInsights{}
	prompt := fmt.Sprintf(
		"Stage 1: Signal Extraction.\nDistill the raw market-signal search results for %s into the typed fields below. Base every field on the search results; when the results do not answer a question, use the unknown/stable/mixed value rather than guessing.\n\n%s\n\nRaw market signals:\n%s",
		domain,
		extractionSchemaPrompt,
		mustJSON(bundle),
	)
	err := r.exec.Run(ctx, stageExtraction, GenerateRequest{
		System:      advancedSystemPrompt,
		Prompt:      prompt,
		Temperature: 0.1,
		MaxTokens:   800,
	}, &out, func() error { return validateInsights(out) })
	return out, err
}

func (r *LLMStageRunner) RunScoring(ctx context.Context, company enrich.CompanyRecord, insights ExtractedInsights) (ScoringOutput, error) {
	out := ScoringOutput{}
	prompt := fmt.Sprintf(
		"Stage 2: Dimension Scoring.\n%s\n\n%s\n\nCompany record:\n%s\n\nExtracted insights:\n%s",
		scoringRubricPrompt,
		scoringSchemaPrompt,
		mustJSON(company),
		mustJSON(insights),
	)
	err := r.exec.Run(ctx, stageScoring, GenerateRequest{
		System:      advancedSystemPrompt,
		Prompt:      prompt,
		Temperature: 0.1,
		MaxTokens:   1000,
	}, &out, func() error { return validateScoring(out) })
	return out, err
}

func (r *LLMStageRunner) RunSynthesis(ctx context.Context, in SynthesisInput) (SynthesisOutput, error) {
	out := SynthesisOutput{}
	prompt := fmt.Sprintf(
		"Stage 3: Strategic Synthesis.\nWrite the narrative for the budget-window analysis of %s. The weighted score is %d and the status is %s (GREEN >= 70, YELLOW 40-69, RED < 40); your status field must match it. Ground every claim in the dimension scores and company snapshot below.\n\n%s\n\nDimension scores:\n%s\n\nConfidence: %s\n\nCompany snapshot:\n%s",
		in.Domain,
		in.WeightedScore,
		in.Status,
		synthesisSchemaPrompt,
		mustJSON(in.Scores),
		in.Confidence,
		truncatedJSON(in.Company, 2000),
	)
	err := r.exec.Run(ctx, stageSynthesis, GenerateRequest{
		System:      advancedSystemPrompt,
		Prompt:      prompt,
		Temperature: 0.4,
		MaxTokens:   2000,
	}, &out, func() error { return validateSynthesis(out) })
	return out, err
}

func validateInsights(in ExtractedInsights) error {
	if !ValidHiringSignal(in.HiringSignal) {
		return fmt.Errorf("invalid hiring_signal %q", in.HiringSignal)
	}
	if !ValidTechModernity(in.TechModernity) {
		return fmt.Errorf("invalid tech_modernity %q", in.TechModernity)
	}
	if in.FundingRecencyMonths != nil && *in.FundingRecencyMonths < 0 {
		return fmt.Errorf("funding_recency_months must be >= 0")
	}
	return nil
}

func validateScoring(out ScoringOutput) error {
	for name, v := range map[string]int{
		"timing":              out.Scores.Timing,
		"growth":              out.Scores.Growth,
		"tech_modernization":  out.Scores.TechModernization,
		"company_size":        out.Scores.CompanySize,
		"budget_availability": out.Scores.BudgetAvailability,
	} {
		if v < 0 || v > 100 {
			return fmt.Errorf("%s score %d out of range", name, v)
		}
	}
	if !ValidConfidence(out.Confidence) {
		return fmt.Errorf("invalid confidence %q", out.Confidence)
	}
	return nil
}

func validateSynthesis(out SynthesisOutput) error {
	if !ValidStatus(out.Status) {
		return fmt.Errorf("invalid status %q", out.Status)
	}
	if strings.TrimSpace(out.Reasoning) == "" {
		return fmt.Errorf("reasoning required")
	}
	if !ValidTrigger(out.PrimaryTrigger) {
		return fmt.Errorf("invalid primary_trigger %q", out.PrimaryTrigger)
	}
	if len(out.Evidence) != 3 {
		return fmt.Errorf("evidence must have 3 entries, got %d", len(out.Evidence))
	}
	if strings.TrimSpace(out.Recommendation) == "" {
		return fmt.Errorf("recommendation required")
	}
	if strings.TrimSpace(out.EmailDraft) == "" {
		return fmt.Errorf("email_draft required")
	}
	return nil
}
