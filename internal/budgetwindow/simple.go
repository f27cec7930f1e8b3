package budgetwindow

import (
	"context"
	"fmt"
	"strings"

	"github.com/joelkehle/budgetwindow/internal/enrich"
	"github.com/joelkehle/budgetwindow/internal/signals"
)

// ScoringStrategy is the scoring engine contract. Strategy selection is a
// caller configuration choice, never a runtime auto-decision, and there is no
// fallback from one strategy to the other.
type ScoringStrategy interface {
	Score(ctx context.Context, company enrich.CompanyRecord, bundle signals.Bundle, domain string) (AnalysisResult, error)
}

const simpleSystemPrompt = "You are a sales intelligence expert. Always respond with valid JSON only."

// The scoring policy is an authoritative business rule embedded verbatim in
// the prompt. It is delegated to the model's judgment; the system does not
// independently verify that the model honored it.
const simpleScoringPolicy = `SCORING LOGIC:
- GREEN (70-100): Recent funding (<6 months) OR active hiring OR expansion signals
- YELLOW (40-69): Stable company, potential tech renewal, moderate signals
- RED (0-39): No recent activity, risk signals, or stagnant`

const simpleSchemaPrompt = `{
    "score": <number 0-100>,
    "status": "<GREEN|YELLOW|RED>",
    "reasoning": "<2-3 sentence explanation>",
    "evidence": ["<bullet point 1>", "<bullet point 2>", "<bullet point 3>"],
    "recommendation": "<action to take>",
    "email_draft": "<personalized outreach email>"
}`

// SimpleStrategy produces the final verdict in a single generation pass.
type SimpleStrategy struct {
	exec *StageExecutor
}

func NewSimpleStrategy(exec *StageExecutor) *SimpleStrategy {
	return &SimpleStrategy{exec: exec}
}

func (s *SimpleStrategy) Score(ctx context.Context, company enrich.CompanyRecord, bundle signals.Bundle, domain string) (AnalysisResult, error) {
	contextBlob := mustJSON(map[string]any{
		"domain":         domain,
		"company_info":   company,
		"market_signals": bundle,
	})
	prompt := fmt.Sprintf(
		"You are a sales intelligence AI. Analyze this company data and return ONLY a JSON object with this exact structure:\n\n%s\n\n%s\n\nCOMPANY DATA:\n%s\n\nReturn ONLY the JSON object, no other text.",
		simpleSchemaPrompt,
		simpleScoringPolicy,
		contextBlob,
	)

	out := AnalysisResult{}
	err := s.exec.Run(ctx, "simple_scoring", GenerateRequest{
		System:      simpleSystemPrompt,
		Prompt:      prompt,
		Temperature: 0.3,
		MaxTokens:   2000,
	}, &out, func() error { return validateResultShape(out) })
	if err != nil {
		return AnalysisResult{}, err
	}
	return out, nil
}

func validateResultShape(r AnalysisResult) error {
	if r.Score < 0 || r.Score > 100 {
		return fmt.Errorf("score %d out of range", r.Score)
	}
	if !ValidStatus(r.Status) {
		return fmt.Errorf("invalid status %q", r.Status)
	}
	if strings.TrimSpace(r.Reasoning) == "" {
		return fmt.Errorf("reasoning required")
	}
	if len(r.Evidence) != 3 {
		return fmt.Errorf("evidence must have 3 entries, got %d", len(r.Evidence))
	}
	if strings.TrimSpace(r.Recommendation) == "" {
		return fmt.Errorf("recommendation required")
	}
	if strings.TrimSpace(r.EmailDraft) == "" {
		return fmt.Errorf("email_draft required")
	}
	return nil
}
