package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Archive is an optional append-only SQLite record of endpoints and
// captured requests. It is advisory: the in-memory EndpointStore stays
// authoritative, and archive write failures never fail ingestion.
type Archive struct {
	db *sql.DB
}

// OpenArchive opens (or creates) the archive database at dsn. Foreign-key
// enforcement is switched on per connection so the schema's cascade holds
// for ad-hoc deletes too.
func OpenArchive(dsn string) (*Archive, error) {
	if !strings.Contains(dsn, "_pragma") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=foreign_keys(1)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	a := &Archive{db: db}
	if err := a.init(); err != nil {
		return nil, err
	}

	return a, nil
}

func (a *Archive) init() error {
	query := `
	CREATE TABLE IF NOT EXISTS endpoints (
		id TEXT PRIMARY KEY,
		name TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS requests (
		id TEXT PRIMARY KEY,
		endpoint_id TEXT,
		method TEXT,
		ip_address TEXT,
		headers TEXT,
		body TEXT,
		mock_response TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(endpoint_id) REFERENCES endpoints(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_requests_endpoint_id ON requests(endpoint_id);
	`
	_, err := a.db.Exec(query)
	return err
}

// SaveEndpoint records a newly created endpoint.
func (a *Archive) SaveEndpoint(ctx context.Context, ep *Endpoint) error {
	_, err := a.db.ExecContext(ctx,
		"INSERT INTO endpoints (id, name, created_at) VALUES (?, ?, ?)",
		ep.ID, ep.Name, ep.CreatedAt)
	return err
}

// SaveRequest records a captured request after the in-memory append.
func (a *Archive) SaveRequest(ctx context.Context, endpointID string, req *CapturedRequest) error {
	headers, _ := json.Marshal(req.Headers)
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO requests (id, endpoint_id, method, ip_address, headers, body, mock_response, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, req.ID, endpointID, req.Method, req.IPAddress, string(headers), req.BodyRaw, string(req.MockResponse), req.Timestamp)
	return err
}

// GetRequest fetches one archived request by id.
func (a *Archive) GetRequest(ctx context.Context, id string) (*CapturedRequest, string, error) {
	var (
		req        CapturedRequest
		endpointID string
		headers    string
		mock       string
	)
	err := a.db.QueryRowContext(ctx, `
		SELECT id, endpoint_id, method, ip_address, headers, body, mock_response, created_at
		FROM requests
		WHERE id = ?
	`, id).Scan(&req.ID, &endpointID, &req.Method, &req.IPAddress, &headers, &req.BodyRaw, &mock, &req.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", err
	}
	if headers != "" {
		_ = json.Unmarshal([]byte(headers), &req.Headers)
	}
	if mock != "" {
		req.MockResponse = json.RawMessage(mock)
	}
	req.BodyJSON = ParseJSONBody(req.BodyRaw)
	return &req, endpointID, nil
}

// Cleanup deletes archived endpoints created before cutoff together with
// their requests. Driven by the retention sweep worker. Requests are removed
// explicitly rather than relying on cascade, which SQLite only honors when
// foreign-key enforcement is enabled on the connection.
func (a *Archive) Cleanup(ctx context.Context, cutoff time.Time) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM requests WHERE endpoint_id IN (SELECT id FROM endpoints WHERE created_at < ?)", cutoff); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM endpoints WHERE created_at < ?", cutoff); err != nil {
		return err
	}
	return tx.Commit()
}

// Close releases the underlying database handle.
func (a *Archive) Close() error {
	return a.db.Close()
}
