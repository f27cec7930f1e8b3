// Package budgetwindow scores a prospective customer's near-term purchasing
// budget. It orchestrates the enrichment and market-signal clients, feeds
// their combined output through an LLM scoring strategy, and normalizes the
// outcome into one AnalysisResult contract.
package budgetwindow

import (
	"math"
	"time"

	"github.com/joelkehle/budgetwindow/internal/enrich"
	"github.com/joelkehle/budgetwindow/internal/signals"
)

const Disclaimer = "This is an automated sales-intelligence estimate based on public signals and third-party " +
	"enrichment data. It is not financial information about the analyzed company."

const DefaultLLMModel = "claude-sonnet-4-20250514"

type Strategy string

const (
	StrategySimple   Strategy = "simple"
	StrategyAdvanced Strategy = "advanced"
)

func ValidStrategy(s Strategy) bool { return s == StrategySimple || s == StrategyAdvanced }

type Status string

const (
	StatusGreen  Status = "GREEN"
	StatusYellow Status = "YELLOW"
	StatusRed    Status = "RED"
)

func ValidStatus(s Status) bool { return s == StatusGreen || s == StatusYellow || s == StatusRed }

// StatusForScore applies the fixed thresholds: GREEN >= 70, YELLOW 40-69,
// RED < 40.
func StatusForScore(score int) Status {
	switch {
	case score >= 70:
		return StatusGreen
	case score >= 40:
		return StatusYellow
	default:
		return StatusRed
	}
}

type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

func ValidConfidence(c ConfidenceLevel) bool {
	return c == ConfidenceHigh || c == ConfidenceMedium || c == ConfidenceLow
}

type PrimaryTrigger string

const (
	TriggerFunding   PrimaryTrigger = "funding"
	TriggerHiring    PrimaryTrigger = "hiring"
	TriggerTechDebt  PrimaryTrigger = "tech_debt"
	TriggerExpansion PrimaryTrigger = "expansion"
)

func ValidTrigger(t PrimaryTrigger) bool {
	return t == TriggerFunding || t == TriggerHiring || t == TriggerTechDebt || t == TriggerExpansion
}

type HiringSignal string

const (
	HiringExpanding   HiringSignal = "expanding"
	HiringStable      HiringSignal = "stable"
	HiringContracting HiringSignal = "contracting"
)

func ValidHiringSignal(h HiringSignal) bool {
	return h == HiringExpanding || h == HiringStable || h == HiringContracting
}

type TechModernity string

const (
	TechRecentChange TechModernity = "recent_change"
	TechModern       TechModernity = "modern"
	TechMixed        TechModernity = "mixed"
	TechLegacyHeavy  TechModernity = "legacy_heavy"
)

func ValidTechModernity(t TechModernity) bool {
	return t == TechRecentChange || t == TechModern || t == TechMixed || t == TechLegacyHeavy
}

// ExtractedInsights is the Advanced extraction stage's distillation of the
// raw signal bundle. Produced once per analysis, consumed only by the scoring
// stage.
type ExtractedInsights struct {
	FundingRecencyMonths *int          `json:"funding_recency_months"`
	HiringSignal         HiringSignal  `json:"hiring_signal"`
	SalesHiring          bool          `json:"sales_hiring"`
	ExpansionSignals     bool          `json:"expansion_signals"`
	TechModernity        TechModernity `json:"tech_modernity"`
}

// Fixed dimension weights. Invariant: they sum to 1.0.
const (
	WeightTiming             = 0.30
	WeightGrowth             = 0.25
	WeightTechModernization  = 0.20
	WeightCompanySize        = 0.15
	WeightBudgetAvailability = 0.10
)

// DimensionScores holds the Advanced scoring stage's five 0-100 dimension
// scores. WeightedScore is recomputed server-side from the five scores and
// the fixed weights; the model's self-reported arithmetic is discarded.
type DimensionScores struct {
	Timing             int     `json:"timing"`
	Growth             int     `json:"growth"`
	TechModernization  int     `json:"tech_modernization"`
	CompanySize        int     `json:"company_size"`
	BudgetAvailability int     `json:"budget_availability"`
	WeightedScore      float64 `json:"weighted_score"`
}

// Weighted computes the weighted score from the five dimension scores.
func (d DimensionScores) Weighted() float64 {
	return float64(d.Timing)*WeightTiming +
		float64(d.Growth)*WeightGrowth +
		float64(d.TechModernization)*WeightTechModernization +
		float64(d.CompanySize)*WeightCompanySize +
		float64(d.BudgetAvailability)*WeightBudgetAvailability
}

// RoundedWeighted rounds the weighted score to the nearest integer; this is
// the final Advanced analysis score.
func (d DimensionScores) RoundedWeighted() int {
	return int(math.Round(d.Weighted()))
}

// AnalysisResult is the system's terminal artifact. DetailedScores,
// Confidence, PrimaryTrigger, and ApproachAngle are only set by the Advanced
// strategy.
type AnalysisResult struct {
	Score          int      `json:"score"`
	Status         Status   `json:"status"`
	Reasoning      string   `json:"reasoning"`
	Evidence       []string `json:"evidence"`
	Recommendation string   `json:"recommendation"`
	EmailDraft     string   `json:"email_draft"`

	DetailedScores *DimensionScores `json:"detailed_scores,omitempty"`
	Confidence     ConfidenceLevel  `json:"confidence,omitempty"`
	PrimaryTrigger PrimaryTrigger   `json:"primary_trigger,omitempty"`
	ApproachAngle  string           `json:"approach_angle,omitempty"`
}

// Credentials are caller-supplied per invocation and held only for the
// duration of the calls that use them.
type Credentials struct {
	EnrichmentKey string
	SearchKey     string
	GenerationKey string
}

type AnalysisRequest struct {
	Domain      string
	Strategy    Strategy
	Credentials Credentials
	// Model overrides the text-generation model; empty means DefaultLLMModel.
	Model string
}

type RunMetadata struct {
	StartedAt        time.Time        `json:"started_at"`
	CompletedAt      time.Time        `json:"completed_at"`
	CompanyAvailable bool             `json:"company_data_available"`
	SignalsAvailable bool             `json:"signals_available"`
	UpstreamWarnings []string         `json:"upstream_warnings,omitempty"`
	LLMCalls         int              `json:"llm_calls"`
	StageDurationsMS map[string]int64 `json:"stage_durations_ms,omitempty"`
}

// ResponseEnvelope is what the orchestrator hands to the presentation layer.
type ResponseEnvelope struct {
	Domain         string               `json:"domain"`
	Strategy       Strategy             `json:"strategy"`
	Result         AnalysisResult       `json:"result"`
	CompanyRecord  enrich.CompanyRecord `json:"company_record,omitempty"`
	Signals        signals.Bundle       `json:"signals,omitempty"`
	ReportMarkdown string               `json:"report_markdown"`
	Metadata       RunMetadata          `json:"metadata"`
	Disclaimer     string               `json:"disclaimer"`
}
