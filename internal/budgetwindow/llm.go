package budgetwindow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/joelkehle/budgetwindow/internal/budgetwindow"

// GenerateRequest carries the per-stage generation parameters. Extraction and
// scoring stages run deterministic-leaning (0.1); narrative stages run more
// creative (0.3-0.4).
type GenerateRequest struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int64
}

type LLMCaller interface {
	GenerateJSON(ctx context.Context, req GenerateRequest) (string, error)
	ModelName() string
}

type AnthropicMessager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

type AnthropicCaller struct {
	messages AnthropicMessager
	model    string
}

type AnthropicClientCreator func(apiKey string) AnthropicMessager

func defaultAnthropicCreator(apiKey string) AnthropicMessager {
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &c.Messages
}

var newAnthropicClient AnthropicClientCreator = defaultAnthropicCreator

func NewAnthropicCaller(apiKey, model string) (*AnthropicCaller, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("generation API key not configured")
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultLLMModel
	}
	return &AnthropicCaller{messages: newAnthropicClient(apiKey), model: model}, nil
}

func (a *AnthropicCaller) ModelName() string { return a.model }

func (a *AnthropicCaller) GenerateJSON(ctx context.Context, req GenerateRequest) (string, error) {
	resp, err := a.messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   req.MaxTokens,
		System:      []anthropic.TextBlockParam{{Text: req.System}},
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt))},
		Temperature: anthropic.Float(req.Temperature),
	})
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String(), nil
}

// StageExecutor runs one text-generation stage: a single attempt, JSON
// envelope extraction, strict unmarshal, then schema validation. Any failure
// is fatal for the analysis and surfaces as a *StageError naming the stage.
// There are no retries and no fallback between strategies.
type StageExecutor struct {
	caller  LLMCaller
	calls   int
	timings map[string]int64
}

func NewStageExecutor(caller LLMCaller) *StageExecutor {
	return &StageExecutor{caller: caller, timings: map[string]int64{}}
}

func (e *StageExecutor) ModelName() string {
	if e == nil || e.caller == nil {
		return DefaultLLMModel
	}
	return e.caller.ModelName()
}

// Calls reports how many generation requests were issued. Stages within one
// analysis are strictly sequential, so no locking is needed.
func (e *StageExecutor) Calls() int { return e.calls }

// StageDurationsMS reports wall-clock milliseconds per executed stage,
// including failed ones.
func (e *StageExecutor) StageDurationsMS() map[string]int64 { return e.timings }

func (e *StageExecutor) Run(ctx context.Context, stageName string, req GenerateRequest, out any, validate func() error) error {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "llm."+stageName, trace.WithAttributes(
		attribute.String("stage", stageName),
		attribute.String("model", e.ModelName()),
		attribute.Float64("temperature", req.Temperature),
	))
	defer span.End()

	start := time.Now()
	defer func() { e.timings[stageName] = time.Since(start).Milliseconds() }()
	e.calls++
	raw, err := e.caller.GenerateJSON(ctx, req)
	if err != nil {
		log.Printf("budget-window llm_transport_error stage=%s class=%s elapsed_ms=%d err=%q", stageName, classifyTransportError(err), time.Since(start).Milliseconds(), err.Error())
		span.RecordError(err)
		return &StageError{Stage: stageName, Err: fmt.Errorf("transport failure: %w", err)}
	}
	if strings.TrimSpace(raw) == "" {
		log.Printf("budget-window llm_empty_response stage=%s elapsed_ms=%d", stageName, time.Since(start).Milliseconds())
		return &StageError{Stage: stageName, Err: errors.New("empty response")}
	}
	if err := DecodeJSONObject(raw, out); err != nil {
		log.Printf("budget-window llm_contract_error stage=%s elapsed_ms=%d err=%q", stageName, time.Since(start).Milliseconds(), err.Error())
		span.RecordError(err)
		return &StageError{Stage: stageName, Err: err}
	}
	if err := validate(); err != nil {
		log.Printf("budget-window llm_validation_error stage=%s elapsed_ms=%d err=%q", stageName, time.Since(start).Milliseconds(), err.Error())
		span.RecordError(err)
		return &StageError{Stage: stageName, Err: fmt.Errorf("validation: %w", err)}
	}
	log.Printf("budget-window llm_stage_success stage=%s elapsed_ms=%d response_chars=%d", stageName, time.Since(start).Milliseconds(), len(raw))
	return nil
}

func classifyTransportError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return "timeout"
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"), strings.Contains(msg, "rate limit"):
		return "rate_limit"
	case strings.Contains(msg, "status code: 5"), strings.Contains(msg, "server error"):
		return "server"
	case strings.Contains(msg, "status code: 4"):
		return "client"
	default:
		return "server"
	}
}
