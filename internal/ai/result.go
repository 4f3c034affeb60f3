package ai

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind discriminates enrichment outcomes. Every outcome is terminal:
// the pipeline attaches whatever it gets and carries on.
type Kind int

const (
	// Disabled means enrichment is off (no credential or flag off).
	// It serializes to nothing at all.
	Disabled Kind = iota
	// RateLimited means a sliding-window limit blocked the call.
	RateLimited
	// Failed means the model call or transport failed.
	Failed
	// Succeeded means a mock response was generated.
	Succeeded
)

// Scope names which limit produced a RateLimited result.
type Scope string

const (
	ScopeEndpoint Scope = "endpoint"
	ScopeIP       Scope = "ip"
)

// Result is the tagged outcome of one enrichment attempt.
type Result struct {
	Kind Kind

	// RateLimited
	Scope     Scope
	Limit     int
	Remaining int

	// Failed
	Message string

	// Succeeded
	MockResponse interface{}
	Model        string
	GeneratedAt  time.Time
	TokensUsed   int
}

// Present reports whether the result carries a serializable payload.
// Disabled results are absent, not empty objects.
func (r Result) Present() bool {
	return r.Kind != Disabled
}

// MarshalJSON renders the wire shapes consumed by dashboards:
//
//	Succeeded:   {"mock_response":…,"ai_model":…,"generated_at":…,"tokens_used":n}
//	RateLimited: {"error":…,"message":…,"rate_limited":true,"limit":N,"remaining":M}
//	             (remaining only when the endpoint limit tripped)
//	Failed:      {"error":…,"message":…}
//	Disabled:    null
func (r Result) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case Disabled:
		return []byte("null"), nil
	case RateLimited:
		payload := map[string]interface{}{
			"error":        "AI rate limit exceeded",
			"rate_limited": true,
			"limit":        r.Limit,
		}
		// The IP-scoped shape carries no remaining count.
		if r.Scope == ScopeIP {
			payload["message"] = fmt.Sprintf("Too many AI requests from your IP (%d/hour). Try again later.", r.Limit)
		} else {
			payload["message"] = fmt.Sprintf("This endpoint has reached its AI generation limit (%d/hour). Remaining: %d", r.Limit, r.Remaining)
			payload["remaining"] = r.Remaining
		}
		return json.Marshal(payload)
	case Failed:
		return json.Marshal(map[string]interface{}{
			"error":   "AI generation failed",
			"message": r.Message,
		})
	case Succeeded:
		return json.Marshal(map[string]interface{}{
			"mock_response": r.MockResponse,
			"ai_model":      r.Model,
			"generated_at":  r.GeneratedAt.Format(time.RFC3339),
			"tokens_used":   r.TokensUsed,
		})
	}
	return nil, fmt.Errorf("unknown result kind %d", r.Kind)
}
