package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joelkehle/budgetwindow/internal/budgetwindow"
)

func main() {
	domain := flag.String("domain", "", "Company domain to analyze (e.g. acme.com)")
	strategy := flag.String("strategy", "simple", "Scoring strategy: simple or advanced")
	model := flag.String("model", "", "Text-generation model override")
	jsonOutputPath := flag.String("json-output", "", "Optional path to write the full response envelope JSON")
	markdownPath := flag.String("output", "", "Path to write the markdown report (defaults to stdout)")
	flag.Parse()

	if strings.TrimSpace(*domain) == "" {
		log.Fatal("missing required -domain")
	}

	creds := budgetwindow.Credentials{
		EnrichmentKey: requiredEnv("FULLENRICH_API_KEY"),
		SearchKey:     requiredEnv("TAVILY_API_KEY"),
		GenerationKey: requiredEnv("ANTHROPIC_API_KEY"),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	orc := budgetwindow.NewOrchestrator()
	env, err := orc.Analyze(ctx, budgetwindow.AnalysisRequest{
		Domain:      strings.TrimSpace(*domain),
		Strategy:    budgetwindow.Strategy(*strategy),
		Credentials: creds,
		Model:       *model,
	})
	if err != nil {
		log.Fatalf("analysis failed: %v", err)
	}

	if err := writeMarkdown(*markdownPath, env.ReportMarkdown); err != nil {
		log.Fatalf("write markdown: %v", err)
	}
	if *jsonOutputPath != "" {
		if err := writeEnvelopeJSON(*jsonOutputPath, env); err != nil {
			log.Fatalf("write json output: %v", err)
		}
	}
	log.Printf("budget-window done domain=%s strategy=%s score=%d status=%s llm_calls=%d",
		env.Domain, env.Strategy, env.Result.Score, env.Result.Status, env.Metadata.LLMCalls)
}

func writeMarkdown(outputPath, markdown string) error {
	if outputPath == "" {
		_, err := fmt.Print(markdown)
		return err
	}
	return os.WriteFile(outputPath, []byte(markdown), 0o644)
}

func writeEnvelopeJSON(path string, env budgetwindow.ResponseEnvelope) error {
	b, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func requiredEnv(key string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		log.Fatalf("missing required env var %s", key)
	}
	return v
}
