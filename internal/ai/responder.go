package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hookscope/hookscope/internal/ai/anthropic"
	"github.com/hookscope/hookscope/internal/ratelimit"
	"github.com/hookscope/hookscope/internal/usage"
)

// messageCreator is the slice of the Anthropic client the responder
// needs; tests substitute a stub.
type messageCreator interface {
	CreateMessage(ctx context.Context, req *anthropic.MessagesRequest) (*anthropic.MessagesResponse, error)
}

// Options configures a Responder.
type Options struct {
	Enabled                 bool
	Model                   string
	MaxTokens               int
	Timeout                 time.Duration
	CallsPerEndpointPerHour int
	CallsPerIPPerHour       int
}

// Responder produces AI mock responses for captured requests, gated by
// per-endpoint and per-IP sliding-window limits. Every outcome is a
// Result; Generate never returns an error.
type Responder struct {
	client          messageCreator
	endpointLimiter *ratelimit.Limiter
	ipLimiter       *ratelimit.Limiter
	meter           *usage.Meter
	logger          *slog.Logger
	opts            Options
}

// NewResponder wires a responder from its collaborators. client may be
// nil when opts.Enabled is false.
func NewResponder(client *anthropic.Client, endpointLimiter, ipLimiter *ratelimit.Limiter, meter *usage.Meter, logger *slog.Logger, opts Options) *Responder {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 512
	}
	r := &Responder{
		endpointLimiter: endpointLimiter,
		ipLimiter:       ipLimiter,
		meter:           meter,
		logger:          logger,
		opts:            opts,
	}
	if client != nil {
		r.client = client
	}
	return r
}

// Generate attempts to produce a mock response for one captured call.
// method and bodyRaw come from the capture; ip may be empty, in which
// case the IP-scoped limit is not evaluated.
func (r *Responder) Generate(ctx context.Context, method, bodyRaw, endpointID, ip string) Result {
	if !r.opts.Enabled || r.client == nil {
		return Result{Kind: Disabled}
	}

	if !r.endpointLimiter.Allow(endpointID, r.opts.CallsPerEndpointPerHour, time.Hour) {
		remaining := r.endpointLimiter.Remaining(endpointID, r.opts.CallsPerEndpointPerHour, time.Hour)
		r.logger.Warn("AI rate limit exceeded for endpoint",
			slog.String("endpoint_id", endpointID),
			slog.Int("limit", r.opts.CallsPerEndpointPerHour),
		)
		return Result{
			Kind:      RateLimited,
			Scope:     ScopeEndpoint,
			Limit:     r.opts.CallsPerEndpointPerHour,
			Remaining: remaining,
		}
	}

	if ip != "" && !r.ipLimiter.Allow(ip, r.opts.CallsPerIPPerHour, time.Hour) {
		r.logger.Warn("AI rate limit exceeded for IP", slog.String("ip", ip))
		return Result{
			Kind:  RateLimited,
			Scope: ScopeIP,
			Limit: r.opts.CallsPerIPPerHour,
		}
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	resp, err := r.client.CreateMessage(ctx, &anthropic.MessagesRequest{
		Model:     r.opts.Model,
		MaxTokens: r.opts.MaxTokens,
		Messages: []anthropic.Message{
			{Role: "user", Content: buildPrompt(method, bodyRaw)},
		},
	})
	if err != nil {
		r.logger.Error("AI generation failed", slog.String("error", err.Error()))
		return Result{Kind: Failed, Message: err.Error()}
	}

	text := resp.Text()
	mock := extractJSON(text)

	tokensUsed := resp.Usage.OutputTokens
	if tokensUsed == 0 {
		// Rough estimate when the usage block is missing.
		tokensUsed = len(text) / 4
	}
	r.meter.Track(tokensUsed)

	return Result{
		Kind:         Succeeded,
		MockResponse: mock,
		Model:        r.opts.Model,
		GeneratedAt:  time.Now(),
		TokensUsed:   tokensUsed,
	}
}

func buildPrompt(method, body string) string {
	if body == "" {
		body = "Empty"
	}
	return fmt.Sprintf(`You are an API mock response generator. Analyze this webhook request and generate an appropriate JSON response.

REQUEST METHOD: %s
REQUEST BODY: %s

Generate a realistic mock response that:
1. Matches the request context (e.g., payment webhooks get payment confirmations)
2. Includes appropriate status codes and messages
3. Contains realistic IDs, timestamps, and data
4. Follows REST API best practices
5. Is CONCISE - keep response under 200 characters when possible

Respond ONLY with valid JSON. No explanations, no markdown, just the JSON object.

Example for payment webhook:
{
  "status": "success",
  "transaction_id": "tx_abc123",
  "amount": 100.00,
  "currency": "USD",
  "message": "Payment processed successfully"
}

Now generate a mock response for the above request:`, method, body)
}

// extractJSON parses model output as JSON, tolerating markdown code
// fences. Unparseable text is wrapped rather than dropped.
func extractJSON(text string) interface{} {
	text = strings.TrimSpace(text)

	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var v interface{}
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return map[string]interface{}{"message": text, "raw": true}
	}
	return v
}
