package trace

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/gobwas/glob"
)

// QueryParams defines filters for querying the capture log. All fields are
// optional; empty/zero values mean "no filter".
type QueryParams struct {
	Model      string // Glob over the request model, e.g. "claude-*".
	ErrorsOnly bool   // Only records with a non-empty error.
	Since      string // RFC 3339 timestamp or Go duration (e.g. "1h").
	Until      string // RFC 3339 timestamp or Go duration.
	Limit      int    // Maximum records to return (0 = all).
}

// Index is a transient SQLite projection of the capture log, built fresh
// per invocation for ad-hoc filtering. The JSONL file stays the only
// persistent store; the index lives in memory and dies with the process.
type Index struct {
	db *sql.DB
}

// NewIndex opens an in-memory SQLite database and creates the schema.
func NewIndex() (*Index, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening query index: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE records (
			id          TEXT PRIMARY KEY,
			ts          TEXT NOT NULL,
			model       TEXT NOT NULL DEFAULT '',
			error       TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL DEFAULT 0,
			body        TEXT NOT NULL
		);
		CREATE INDEX idx_ts ON records(ts);
		CREATE INDEX idx_model ON records(model);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating query index schema: %w", err)
	}

	return &Index{db: db}, nil
}

// Load reads the capture log at path and inserts every record.
// Returns the number of records indexed.
func (idx *Index) Load(path string) (int, error) {
	records, err := ReadRecords(path)
	if err != nil {
		return 0, err
	}
	for i := range records {
		idx.insert(&records[i])
	}
	return len(records), nil
}

// insert adds one record. Errors are logged, not returned: a record that
// fails to index is still present in the JSONL file.
func (idx *Index) insert(rec *Record) {
	body, err := json.Marshal(rec)
	if err != nil {
		slog.Error("query index: marshaling record", "id", rec.ID, "error", err)
		return
	}
	_, err = idx.db.Exec(
		`INSERT OR REPLACE INTO records (id, ts, model, error, duration_ms, body) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Timestamp, rec.Model(), rec.Error, rec.DurationMS, string(body),
	)
	if err != nil {
		slog.Error("query index: insert failed", "id", rec.ID, "error", err)
	}
}

// Query returns records matching params in file (timestamp) order.
// Time bounds and the error filter run in SQL; the model glob is matched in
// Go because SQLite knows nothing about glob syntax.
func (idx *Index) Query(params QueryParams) ([]Record, error) {
	query := "SELECT body, model FROM records WHERE 1=1"
	var args []any

	since, err := resolveTime(params.Since)
	if err != nil {
		return nil, fmt.Errorf("invalid since %q: %w", params.Since, err)
	}
	if since != "" {
		query += " AND ts >= ?"
		args = append(args, since)
	}

	until, err := resolveTime(params.Until)
	if err != nil {
		return nil, fmt.Errorf("invalid until %q: %w", params.Until, err)
	}
	if until != "" {
		query += " AND ts <= ?"
		args = append(args, until)
	}

	if params.ErrorsOnly {
		query += " AND error != ''"
	}

	query += " ORDER BY ts ASC, rowid ASC"

	var matcher glob.Glob
	if params.Model != "" {
		matcher, err = glob.Compile(params.Model)
		if err != nil {
			return nil, fmt.Errorf("invalid model pattern %q: %w", params.Model, err)
		}
	}

	rows, err := idx.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var body, model string
		if err := rows.Scan(&body, &model); err != nil {
			return nil, fmt.Errorf("scanning index row: %w", err)
		}
		if matcher != nil && !matcher.Match(model) {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(body), &rec); err != nil {
			slog.Warn("query index: unparsable stored record", "error", err)
			continue
		}
		records = append(records, rec)
		if params.Limit > 0 && len(records) >= params.Limit {
			break
		}
	}

	return records, rows.Err()
}

// Close releases the in-memory database.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// resolveTime accepts either an RFC 3339 timestamp (passed through) or a Go
// duration string, which is resolved to now minus the duration.
func resolveTime(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	if _, err := time.Parse(time.RFC3339, s); err == nil {
		return s, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return "", err
	}
	return time.Now().UTC().Add(-d).Format(time.RFC3339Nano), nil
}
