package ai

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/hookscope/hookscope/internal/ai/anthropic"
	"github.com/hookscope/hookscope/internal/ratelimit"
	"github.com/hookscope/hookscope/internal/usage"
)

type stubClient struct {
	resp  *anthropic.MessagesResponse
	err   error
	calls int
}

func (s *stubClient) CreateMessage(ctx context.Context, req *anthropic.MessagesRequest) (*anthropic.MessagesResponse, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func textResponse(text string, outputTokens int) *anthropic.MessagesResponse {
	return &anthropic.MessagesResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
		Usage:   anthropic.Usage{OutputTokens: outputTokens},
	}
}

func newTestResponder(client messageCreator, opts Options) (*Responder, *usage.Meter) {
	meter := usage.NewMeter(slog.Default(), 0.000003, 0)
	r := &Responder{
		client:          client,
		endpointLimiter: ratelimit.New(),
		ipLimiter:       ratelimit.New(),
		meter:           meter,
		logger:          slog.Default(),
		opts:            opts,
	}
	if r.opts.Timeout <= 0 {
		r.opts.Timeout = time.Second
	}
	return r, meter
}

func enabledOptions() Options {
	return Options{
		Enabled:                 true,
		Model:                   "claude-sonnet-4-5-20250929",
		MaxTokens:               512,
		CallsPerEndpointPerHour: 10,
		CallsPerIPPerHour:       20,
	}
}

func TestGenerate_Disabled(t *testing.T) {
	r, _ := newTestResponder(&stubClient{}, Options{Enabled: false})

	result := r.Generate(context.Background(), "POST", "{}", "ep-1", "1.2.3.4")
	if result.Kind != Disabled {
		t.Errorf("Kind = %v, want Disabled", result.Kind)
	}
	if result.Present() {
		t.Error("disabled result should not be present")
	}
}

func TestGenerate_Success(t *testing.T) {
	client := &stubClient{resp: textResponse(`{"status":"success"}`, 42)}
	r, meter := newTestResponder(client, enabledOptions())

	result := r.Generate(context.Background(), "POST", `{"event":"pay"}`, "ep-1", "1.2.3.4")

	if result.Kind != Succeeded {
		t.Fatalf("Kind = %v, want Succeeded", result.Kind)
	}
	mock, ok := result.MockResponse.(map[string]interface{})
	if !ok || mock["status"] != "success" {
		t.Errorf("MockResponse = %v, want parsed JSON object", result.MockResponse)
	}
	if result.TokensUsed != 42 {
		t.Errorf("TokensUsed = %d, want 42 (from API usage)", result.TokensUsed)
	}
	if meter.Snapshot().TotalCalls != 1 {
		t.Errorf("meter TotalCalls = %d, want 1", meter.Snapshot().TotalCalls)
	}
}

func TestGenerate_TokenFallback(t *testing.T) {
	text := `{"ok":true}`
	client := &stubClient{resp: textResponse(text, 0)}
	r, _ := newTestResponder(client, enabledOptions())

	result := r.Generate(context.Background(), "POST", "", "ep-1", "")
	if result.TokensUsed != len(text)/4 {
		t.Errorf("TokensUsed = %d, want len/4 fallback %d", result.TokensUsed, len(text)/4)
	}
}

func TestGenerate_EndpointRateLimited(t *testing.T) {
	client := &stubClient{resp: textResponse(`{}`, 1)}
	opts := enabledOptions()
	opts.CallsPerEndpointPerHour = 2
	r, meter := newTestResponder(client, opts)

	for i := 0; i < 2; i++ {
		if got := r.Generate(context.Background(), "POST", "", "ep-1", ""); got.Kind != Succeeded {
			t.Fatalf("call %d Kind = %v, want Succeeded", i+1, got.Kind)
		}
	}

	result := r.Generate(context.Background(), "POST", "", "ep-1", "")
	if result.Kind != RateLimited {
		t.Fatalf("Kind = %v, want RateLimited", result.Kind)
	}
	if result.Scope != ScopeEndpoint {
		t.Errorf("Scope = %v, want endpoint", result.Scope)
	}
	if result.Limit != 2 {
		t.Errorf("Limit = %d, want 2", result.Limit)
	}
	if client.calls != 2 {
		t.Errorf("model called %d times, want 2 (rate-limited path must not call)", client.calls)
	}
	if meter.Snapshot().TotalCalls != 2 {
		t.Errorf("meter TotalCalls = %d, want 2 (not tracked when limited)", meter.Snapshot().TotalCalls)
	}
}

func TestGenerate_IPRateLimited(t *testing.T) {
	client := &stubClient{resp: textResponse(`{}`, 1)}
	opts := enabledOptions()
	opts.CallsPerIPPerHour = 1
	r, _ := newTestResponder(client, opts)

	if got := r.Generate(context.Background(), "POST", "", "ep-1", "9.9.9.9"); got.Kind != Succeeded {
		t.Fatalf("first call Kind = %v, want Succeeded", got.Kind)
	}

	// Different endpoint, same IP.
	result := r.Generate(context.Background(), "POST", "", "ep-2", "9.9.9.9")
	if result.Kind != RateLimited || result.Scope != ScopeIP {
		t.Errorf("got Kind=%v Scope=%v, want RateLimited/ip", result.Kind, result.Scope)
	}
}

func TestGenerate_NoIPSkipsIPLimit(t *testing.T) {
	client := &stubClient{resp: textResponse(`{}`, 1)}
	opts := enabledOptions()
	opts.CallsPerIPPerHour = 0
	r, _ := newTestResponder(client, opts)

	if got := r.Generate(context.Background(), "POST", "", "ep-1", ""); got.Kind != Succeeded {
		t.Errorf("Kind = %v, want Succeeded when no IP is known", got.Kind)
	}
}

func TestGenerate_Failure(t *testing.T) {
	client := &stubClient{err: errors.New("connection refused")}
	r, meter := newTestResponder(client, enabledOptions())

	result := r.Generate(context.Background(), "POST", "", "ep-1", "")
	if result.Kind != Failed {
		t.Fatalf("Kind = %v, want Failed", result.Kind)
	}
	if result.Message != "connection refused" {
		t.Errorf("Message = %q, want the transport error", result.Message)
	}
	if meter.Snapshot().TotalCalls != 0 {
		t.Error("failed call must not be tracked")
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantKey string
		wantVal interface{}
		wantRaw bool
	}{
		{"plain json", `{"status":"ok"}`, "status", "ok", false},
		{"json fence", "```json\n{\"status\":\"ok\"}\n```", "status", "ok", false},
		{"bare fence", "```\n{\"status\":\"ok\"}\n```", "status", "ok", false},
		{"prose", "Sure! Here is the response.", "message", "Sure! Here is the response.", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractJSON(tt.text)
			obj, ok := got.(map[string]interface{})
			if !ok {
				t.Fatalf("extractJSON() = %T, want map", got)
			}
			if obj[tt.wantKey] != tt.wantVal {
				t.Errorf("obj[%q] = %v, want %v", tt.wantKey, obj[tt.wantKey], tt.wantVal)
			}
			if tt.wantRaw && obj["raw"] != true {
				t.Error("unparseable text should be wrapped with raw:true")
			}
		})
	}
}

func TestResult_MarshalJSON(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		data, err := json.Marshal(Result{Kind: Disabled})
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "null" {
			t.Errorf("Disabled marshals to %s, want null", data)
		}
	})

	t.Run("rate limited", func(t *testing.T) {
		data, err := json.Marshal(Result{Kind: RateLimited, Scope: ScopeEndpoint, Limit: 10, Remaining: 0})
		if err != nil {
			t.Fatal(err)
		}
		var got map[string]interface{}
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatal(err)
		}
		if got["rate_limited"] != true {
			t.Error("missing rate_limited:true")
		}
		if got["limit"] != float64(10) {
			t.Errorf("limit = %v, want 10", got["limit"])
		}
		if got["error"] != "AI rate limit exceeded" {
			t.Errorf("error = %v", got["error"])
		}
		if _, ok := got["remaining"]; !ok {
			t.Error("endpoint-scoped payload should carry remaining")
		}
	})

	t.Run("rate limited by ip", func(t *testing.T) {
		data, err := json.Marshal(Result{Kind: RateLimited, Scope: ScopeIP, Limit: 20})
		if err != nil {
			t.Fatal(err)
		}
		var got map[string]interface{}
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatal(err)
		}
		if got["rate_limited"] != true || got["limit"] != float64(20) {
			t.Errorf("got %v", got)
		}
		if _, ok := got["remaining"]; ok {
			t.Errorf("ip-scoped payload should omit remaining, got %v", got["remaining"])
		}
	})

	t.Run("failed", func(t *testing.T) {
		data, err := json.Marshal(Result{Kind: Failed, Message: "boom"})
		if err != nil {
			t.Fatal(err)
		}
		var got map[string]interface{}
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatal(err)
		}
		if got["error"] != "AI generation failed" || got["message"] != "boom" {
			t.Errorf("got %v", got)
		}
	})

	t.Run("succeeded", func(t *testing.T) {
		data, err := json.Marshal(Result{
			Kind:         Succeeded,
			MockResponse: map[string]interface{}{"status": "ok"},
			Model:        "claude-sonnet-4-5-20250929",
			GeneratedAt:  time.Now(),
			TokensUsed:   7,
		})
		if err != nil {
			t.Fatal(err)
		}
		var got map[string]interface{}
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatal(err)
		}
		if got["ai_model"] != "claude-sonnet-4-5-20250929" {
			t.Errorf("ai_model = %v", got["ai_model"])
		}
		if got["tokens_used"] != float64(7) {
			t.Errorf("tokens_used = %v, want 7", got["tokens_used"])
		}
		if _, ok := got["mock_response"]; !ok {
			t.Error("missing mock_response")
		}
	})
}
