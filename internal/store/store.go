package store

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when an endpoint id is unknown.
var ErrNotFound = errors.New("endpoint not found")

// DefaultMaxRequests bounds the per-endpoint history unless overridden.
const DefaultMaxRequests = 100

// Endpoint is a disposable webhook target. Instances returned by the
// store are snapshots; mutating them has no effect on stored state.
type Endpoint struct {
	ID           string            `json:"id"`
	Name         string            `json:"name,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	RequestCount int64             `json:"request_count"`
	Requests     []CapturedRequest `json:"requests"`
}

// CapturedRequest is one recorded inbound call. Once appended it is
// immutable; it only leaves the history as the oldest entry when the
// bound is exceeded.
type CapturedRequest struct {
	ID            string            `json:"id"`
	Timestamp     time.Time         `json:"timestamp"`
	Method        string            `json:"method"`
	Headers       map[string]string `json:"headers"`
	BodyRaw       string            `json:"body_raw"`
	BodyJSON      JSONBody          `json:"body_json"`
	ContentType   string            `json:"content_type,omitempty"`
	ContentLength int64             `json:"content_length"`
	IPAddress     string            `json:"ip_address,omitempty"`
	QueryParams   map[string]string `json:"query_params,omitempty"`
	MockResponse  json.RawMessage   `json:"ai_mock_response,omitempty"`
}

// JSONBody is the parsed form of a request body. Valid distinguishes
// "body was well-formed JSON" from "body was not", instead of leaning
// on a nil value for both.
type JSONBody struct {
	Valid bool
	Value interface{}
}

// ParseJSONBody attempts to decode raw as JSON. Failure is not an
// error; it yields an invalid JSONBody.
func ParseJSONBody(raw string) JSONBody {
	if raw == "" {
		return JSONBody{}
	}
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return JSONBody{}
	}
	return JSONBody{Valid: true, Value: v}
}

func (b JSONBody) MarshalJSON() ([]byte, error) {
	if !b.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(b.Value)
}

func (b *JSONBody) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*b = JSONBody{}
		return nil
	}
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*b = JSONBody{Valid: true, Value: v}
	return nil
}

type endpointState struct {
	mu           sync.Mutex
	id           string
	name         string
	createdAt    time.Time
	requestCount int64
	requests     []CapturedRequest
}

// EndpointStore is the in-memory registry of endpoints and their
// bounded request histories. It is the single source of truth;
// everything else (archive, notifications) hangs off it.
type EndpointStore struct {
	mu          sync.RWMutex
	endpoints   map[string]*endpointState
	maxRequests int
}

// NewEndpointStore creates a store bounding each endpoint's history to
// maxRequests entries. maxRequests <= 0 selects DefaultMaxRequests.
func NewEndpointStore(maxRequests int) *EndpointStore {
	if maxRequests <= 0 {
		maxRequests = DefaultMaxRequests
	}
	return &EndpointStore{
		endpoints:   make(map[string]*endpointState),
		maxRequests: maxRequests,
	}
}

// Create allocates a fresh endpoint. name may be empty.
func (s *EndpointStore) Create(name string) (*Endpoint, error) {
	id := uuid.New().String()
	st := &endpointState{
		id:        id,
		name:      name,
		createdAt: time.Now(),
	}

	s.mu.Lock()
	s.endpoints[id] = st
	s.mu.Unlock()

	return &Endpoint{ID: id, Name: name, CreatedAt: st.createdAt, Requests: []CapturedRequest{}}, nil
}

// Get returns a snapshot of the endpoint, or false if the id is
// unknown. The snapshot reflects either the pre- or post-state of any
// concurrent append, never a partial one.
func (s *EndpointStore) Get(id string) (*Endpoint, bool) {
	s.mu.RLock()
	st, ok := s.endpoints[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	snap := &Endpoint{
		ID:           st.id,
		Name:         st.name,
		CreatedAt:    st.createdAt,
		RequestCount: st.requestCount,
		Requests:     make([]CapturedRequest, len(st.requests)),
	}
	copy(snap.Requests, st.requests)
	return snap, true
}

// AppendRequest records req against the endpoint. Returns false and
// mutates nothing if the id is unknown. The all-time RequestCount is
// incremented even when the bounded history evicts its oldest entry.
func (s *EndpointStore) AppendRequest(id string, req CapturedRequest) bool {
	s.mu.RLock()
	st, ok := s.endpoints[id]
	s.mu.RUnlock()
	if !ok {
		return false
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	st.requestCount++
	if len(st.requests) >= s.maxRequests {
		// Shift rather than reslice so the backing array does not
		// pin evicted entries.
		copy(st.requests, st.requests[1:])
		st.requests = st.requests[:len(st.requests)-1]
	}
	st.requests = append(st.requests, req)
	return true
}

// RequestCount returns the endpoint's all-time request total, or false
// if the id is unknown.
func (s *EndpointStore) RequestCount(id string) (int64, bool) {
	s.mu.RLock()
	st, ok := s.endpoints[id]
	s.mu.RUnlock()
	if !ok {
		return 0, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.requestCount, true
}

// ExpireBefore removes endpoints created before cutoff and reports how
// many were removed. Used by the optional retention sweep.
func (s *EndpointStore) ExpireBefore(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, st := range s.endpoints {
		if st.createdAt.Before(cutoff) {
			delete(s.endpoints, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of registered endpoints.
func (s *EndpointStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.endpoints)
}
