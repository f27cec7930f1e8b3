package budgetwindow

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/joelkehle/budgetwindow/internal/enrich"
	"github.com/joelkehle/budgetwindow/internal/signals"
)

type Enricher interface {
	Fetch(ctx context.Context, domain string) (enrich.CompanyRecord, error)
}

type SignalGatherer interface {
	Gather(ctx context.Context, domain string) (signals.Bundle, error)
}

type (
	EnricherCreator func(apiKey string) (Enricher, error)
	GathererCreator func(apiKey string) (SignalGatherer, error)
	CallerCreator   func(apiKey, model string) (LLMCaller, error)
)

// Collaborators supplies the upstream client constructors. Clients are built
// per analysis from the request's credentials, which are dropped when the run
// completes. Tests substitute deterministic doubles here.
type Collaborators struct {
	NewEnricher EnricherCreator
	NewGatherer GathererCreator
	NewCaller   CallerCreator
}

func defaultCollaborators() Collaborators {
	return Collaborators{
		NewEnricher: func(apiKey string) (Enricher, error) {
			return enrich.NewClient(enrich.Config{APIKey: apiKey})
		},
		NewGatherer: func(apiKey string) (SignalGatherer, error) {
			return signals.NewClient(signals.Config{APIKey: apiKey})
		},
		NewCaller: func(apiKey, model string) (LLMCaller, error) {
			return NewAnthropicCaller(apiKey, model)
		},
	}
}

type Orchestrator struct {
	collab Collaborators
}

func NewOrchestrator() *Orchestrator {
	return NewOrchestratorWith(defaultCollaborators())
}

func NewOrchestratorWith(collab Collaborators) *Orchestrator {
	def := defaultCollaborators()
	if collab.NewEnricher == nil {
		collab.NewEnricher = def.NewEnricher
	}
	if collab.NewGatherer == nil {
		collab.NewGatherer = def.NewGatherer
	}
	if collab.NewCaller == nil {
		collab.NewCaller = def.NewCaller
	}
	return &Orchestrator{collab: collab}
}

// Analyze runs one budget-window analysis end to end: credential pre-flight,
// the two upstream fetches (issued concurrently, no data dependency), then
// the caller-selected scoring strategy. A single upstream failure degrades to
// an absent record; both failing aborts before any generation call.
func (o *Orchestrator) Analyze(ctx context.Context, req AnalysisRequest) (ResponseEnvelope, error) {
	if req.Strategy == "" {
		req.Strategy = StrategySimple
	}
	if err := validateRequest(req); err != nil {
		return ResponseEnvelope{}, err
	}

	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "analyze", trace.WithAttributes(
		attribute.String("domain", req.Domain),
		attribute.String("strategy", string(req.Strategy)),
	))
	defer span.End()

	enricher, err := o.collab.NewEnricher(req.Credentials.EnrichmentKey)
	if err != nil {
		return ResponseEnvelope{}, fmt.Errorf("enrichment client: %w", err)
	}
	gatherer, err := o.collab.NewGatherer(req.Credentials.SearchKey)
	if err != nil {
		return ResponseEnvelope{}, fmt.Errorf("signal client: %w", err)
	}
	caller, err := o.collab.NewCaller(req.Credentials.GenerationKey, req.Model)
	if err != nil {
		return ResponseEnvelope{}, fmt.Errorf("generation client: %w", err)
	}

	meta := RunMetadata{StartedAt: time.Now()}

	var (
		company    enrich.CompanyRecord
		bundle     signals.Bundle
		enrichErr  error
		signalsErr error
		wg         sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		company, enrichErr = enricher.Fetch(ctx, req.Domain)
	}()
	go func() {
		defer wg.Done()
		bundle, signalsErr = gatherer.Gather(ctx, req.Domain)
	}()
	wg.Wait()

	if enrichErr != nil {
		log.Printf("budget-window enrichment unavailable domain=%s err=%v", req.Domain, enrichErr)
		meta.UpstreamWarnings = append(meta.UpstreamWarnings, fmt.Sprintf("enrichment unavailable: %v", enrichErr))
		company = nil
	}
	if signalsErr != nil {
		log.Printf("budget-window signals unavailable domain=%s err=%v", req.Domain, signalsErr)
		meta.UpstreamWarnings = append(meta.UpstreamWarnings, fmt.Sprintf("signals unavailable: %v", signalsErr))
		bundle = nil
	}
	meta.CompanyAvailable = company != nil
	meta.SignalsAvailable = bundle != nil

	if company == nil && bundle == nil {
		return ResponseEnvelope{}, &DataAvailabilityError{EnrichmentErr: enrichErr, SignalsErr: signalsErr}
	}

	exec := NewStageExecutor(caller)
	var engine ScoringStrategy
	switch req.Strategy {
	case StrategyAdvanced:
		engine = NewAdvancedStrategy(NewLLMStageRunner(exec))
	default:
		engine = NewSimpleStrategy(exec)
	}

	result, err := engine.Score(ctx, company, bundle, req.Domain)
	meta.LLMCalls = exec.Calls()
	meta.StageDurationsMS = exec.StageDurationsMS()
	if err != nil {
		span.RecordError(err)
		return ResponseEnvelope{}, err
	}
	meta.CompletedAt = time.Now()

	env := ResponseEnvelope{
		Domain:        req.Domain,
		Strategy:      req.Strategy,
		Result:        result,
		CompanyRecord: company,
		Signals:       bundle,
		Metadata:      meta,
		Disclaimer:    Disclaimer,
	}
	env.ReportMarkdown = buildMarkdown(env)
	return env, nil
}

func validateRequest(req AnalysisRequest) error {
	cfgErr := &ConfigError{}
	if strings.TrimSpace(req.Credentials.EnrichmentKey) == "" {
		cfgErr.MissingCredentials = append(cfgErr.MissingCredentials, "enrichment")
	}
	if strings.TrimSpace(req.Credentials.SearchKey) == "" {
		cfgErr.MissingCredentials = append(cfgErr.MissingCredentials, "search")
	}
	if strings.TrimSpace(req.Credentials.GenerationKey) == "" {
		cfgErr.MissingCredentials = append(cfgErr.MissingCredentials, "generation")
	}
	if strings.TrimSpace(req.Domain) == "" {
		cfgErr.EmptyDomain = true
	}
	if len(cfgErr.MissingCredentials) > 0 || cfgErr.EmptyDomain {
		return cfgErr
	}
	if !ValidStrategy(req.Strategy) {
		return fmt.Errorf("unknown strategy %q", req.Strategy)
	}
	return nil
}
