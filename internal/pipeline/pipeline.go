package pipeline

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hookscope/hookscope/internal/ai"
	"github.com/hookscope/hookscope/internal/hub"
	"github.com/hookscope/hookscope/internal/store"
)

// Receipt acknowledges one ingested webhook call. The sender gets it
// with a 200 regardless of enrichment outcome.
type Receipt struct {
	Status        string          `json:"status"`
	EndpointID    string          `json:"endpoint_id"`
	RequestID     string          `json:"request_id"`
	Timestamp     time.Time       `json:"timestamp"`
	TotalRequests int64           `json:"total_requests"`
	MockResponse  json.RawMessage `json:"ai_mock_response,omitempty"`
}

// Pipeline runs capture, enrichment, persistence, and notification for
// one inbound call. Stages are linear; only an unknown endpoint id is
// an error, everything downstream degrades in place.
type Pipeline struct {
	store     *store.EndpointStore
	archive   *store.Archive
	responder *ai.Responder
	hub       *hub.Hub
	logger    *slog.Logger
}

// New wires a pipeline. archive may be nil (archiving disabled).
func New(s *store.EndpointStore, archive *store.Archive, responder *ai.Responder, h *hub.Hub, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:     s,
		archive:   archive,
		responder: responder,
		hub:       h,
		logger:    logger,
	}
}

// Ingest processes one inbound webhook call for endpointID. It returns
// store.ErrNotFound if the endpoint does not exist; every other
// degradation (bad JSON, enrichment failure, dead observers) is
// absorbed and the call still acknowledges.
func (p *Pipeline) Ingest(ctx context.Context, endpointID string, r *http.Request) (*Receipt, error) {
	if _, ok := p.store.RequestCount(endpointID); !ok {
		return nil, store.ErrNotFound
	}

	captured := p.decode(r)

	// Enrichment runs outside any store or hub lock; the responder
	// bounds the call with its own timeout and never errors.
	result := p.responder.Generate(ctx, captured.Method, captured.BodyRaw, endpointID, captured.IPAddress)
	if result.Present() {
		if raw, err := json.Marshal(result); err == nil {
			captured.MockResponse = raw
		}
	}

	if !p.store.AppendRequest(endpointID, captured) {
		// Endpoint vanished between the existence check and the
		// append (retention sweep). Treat as unknown.
		return nil, store.ErrNotFound
	}
	total, _ := p.store.RequestCount(endpointID)

	if p.archive != nil {
		if err := p.archive.SaveRequest(ctx, endpointID, &captured); err != nil {
			p.logger.Error("archive write failed",
				slog.String("endpoint_id", endpointID),
				slog.String("request_id", captured.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	p.hub.Publish(endpointID, hub.Event{Type: "new_request", Data: captured})

	return &Receipt{
		Status:        "received",
		EndpointID:    endpointID,
		RequestID:     captured.ID,
		Timestamp:     time.Now(),
		TotalRequests: total,
		MockResponse:  captured.MockResponse,
	}, nil
}

// decode materializes a CapturedRequest from the raw HTTP request.
// Body read failures and malformed JSON degrade to empty/unparsed.
func (p *Pipeline) decode(r *http.Request) store.CapturedRequest {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		p.logger.Warn("failed to read webhook body", slog.String("error", err.Error()))
		body = nil
	}
	defer r.Body.Close()

	body = decompress(body, r.Header.Get("Content-Encoding"))

	headers := make(map[string]string, len(r.Header))
	for name, values := range r.Header {
		if len(values) > 0 {
			headers[name] = values[len(values)-1]
		}
	}

	var query map[string]string
	if raw := r.URL.Query(); len(raw) > 0 {
		query = make(map[string]string, len(raw))
		for name, values := range raw {
			if len(values) > 0 {
				query[name] = values[0]
			}
		}
	}

	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}

	bodyRaw := string(body)
	return store.CapturedRequest{
		ID:            uuid.New().String(),
		Timestamp:     time.Now(),
		Method:        r.Method,
		Headers:       headers,
		BodyRaw:       bodyRaw,
		BodyJSON:      store.ParseJSONBody(bodyRaw),
		ContentType:   r.Header.Get("Content-Type"),
		ContentLength: int64(len(body)),
		IPAddress:     ip,
		QueryParams:   query,
	}
}

// decompress transparently unwraps gzip and deflate bodies, falling
// back to the raw bytes when decoding fails.
func decompress(body []byte, encoding string) []byte {
	if len(body) == 0 {
		return body
	}
	switch encoding {
	case "gzip":
		gr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return body
		}
		defer gr.Close()
		if decoded, err := io.ReadAll(gr); err == nil {
			return decoded
		}
	case "deflate":
		zr, err := zlib.NewReader(bytes.NewReader(body))
		if err != nil {
			return body
		}
		defer zr.Close()
		if decoded, err := io.ReadAll(zr); err == nil {
			return decoded
		}
	}
	return body
}
