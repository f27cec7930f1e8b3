package budgetwindow

import (
	"fmt"
	"strings"
	"time"

	"github.com/joelkehle/budgetwindow/internal/signals"
)

// RebuildResponseFromEnvelope regenerates the markdown report from a saved
// envelope, so stored analyses can be re-rendered after report format changes.
func RebuildResponseFromEnvelope(env ResponseEnvelope) ResponseEnvelope {
	env.ReportMarkdown = buildMarkdown(env)
	return env
}

func buildMarkdown(env ResponseEnvelope) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Budget Window Report\n\n")
	fmt.Fprintf(&b, "- Domain: %s\n", sanitize(env.Domain))
	fmt.Fprintf(&b, "- Strategy: %s\n", env.Strategy)
	fmt.Fprintf(&b, "- Date: %s\n\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&b, "%s\n\n", Disclaimer)

	fmt.Fprintf(&b, "## Budget Window Score\n\n")
	fmt.Fprintf(&b, "| Score | Status |\n|-------|--------|\n")
	fmt.Fprintf(&b, "| **%d** | `%s` |\n\n", env.Result.Score, env.Result.Status)

	if env.Result.DetailedScores != nil {
		s := env.Result.DetailedScores
		fmt.Fprintf(&b, "### Dimension Scores\n\n")
		fmt.Fprintf(&b, "| Dimension | Score | Weight |\n|-----------|-------|--------|\n")
		fmt.Fprintf(&b, "| Timing | %d | %.2f |\n", s.Timing, WeightTiming)
		fmt.Fprintf(&b, "| Growth | %d | %.2f |\n", s.Growth, WeightGrowth)
		fmt.Fprintf(&b, "| Tech Modernization | %d | %.2f |\n", s.TechModernization, WeightTechModernization)
		fmt.Fprintf(&b, "| Company Size | %d | %.2f |\n", s.CompanySize, WeightCompanySize)
		fmt.Fprintf(&b, "| Budget Availability | %d | %.2f |\n", s.BudgetAvailability, WeightBudgetAvailability)
		fmt.Fprintf(&b, "\nWeighted score: %.1f. Confidence: `%s`.\n\n", s.WeightedScore, env.Result.Confidence)
		if env.Result.PrimaryTrigger != "" {
			fmt.Fprintf(&b, "- Primary trigger: `%s`\n", env.Result.PrimaryTrigger)
		}
		if strings.TrimSpace(env.Result.ApproachAngle) != "" {
			fmt.Fprintf(&b, "- Approach angle: %s\n", sanitize(env.Result.ApproachAngle))
		}
		fmt.Fprintf(&b, "\n")
	}

	fmt.Fprintf(&b, "## Reasoning\n\n%s\n\n", sanitize(env.Result.Reasoning))

	fmt.Fprintf(&b, "## Key Evidence\n\n")
	for _, item := range env.Result.Evidence {
		fmt.Fprintf(&b, "- %s\n", sanitize(item))
	}
	fmt.Fprintf(&b, "\n## Recommended Action\n\n%s\n\n", sanitize(env.Result.Recommendation))

	fmt.Fprintf(&b, "## Outreach Email Draft\n\n```\n%s\n```\n\n", strings.TrimSpace(env.Result.EmailDraft))

	fmt.Fprintf(&b, "## Data Availability\n\n")
	fmt.Fprintf(&b, "- Company record: %s\n", availability(env.Metadata.CompanyAvailable))
	fmt.Fprintf(&b, "- Market signals: %s\n", availability(env.Metadata.SignalsAvailable))
	for _, w := range env.Metadata.UpstreamWarnings {
		fmt.Fprintf(&b, "- [!] %s\n", sanitize(w))
	}
	fmt.Fprintf(&b, "\n")

	if len(env.Signals) > 0 {
		fmt.Fprintf(&b, "## Raw Market Signals\n\n")
		for _, topic := range signals.Topics() {
			results := env.Signals[topic]
			fmt.Fprintf(&b, "### %s\n\n", topic)
			if len(results) == 0 {
				fmt.Fprintf(&b, "No results.\n\n")
				continue
			}
			for _, r := range results {
				fmt.Fprintf(&b, "- [%s](%s): %s\n", sanitize(r.Title), r.URL, sanitize(snippet(r.Content, 240)))
			}
			fmt.Fprintf(&b, "\n")
		}
	}
	return b.String()
}

func availability(ok bool) string {
	if ok {
		return "available"
	}
	return "unavailable"
}

func snippet(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func sanitize(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}
