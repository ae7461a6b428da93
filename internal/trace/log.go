package trace

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Scanner sizing: a single record line carries every raw SSE line of a
// response, so lines run far beyond bufio's 64K default.
const (
	scanBufInitial = 1024 * 1024
	scanBufMax     = 10 * 1024 * 1024
)

// Log is the append-only capture log. One record per line, UTF-8 JSON,
// terminated by '\n'.
//
// Thread-safe: the proxy appends records concurrently from multiple HTTP
// handler goroutines. Each record is serialised completely before the lock
// is taken, so the lock covers exactly one write syscall plus the fsync.
type Log struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// Open opens or creates the capture log at path, creating parent
// directories as needed.
func Open(path string) (*Log, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating capture directory %s: %w", dir, err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening capture log %s: %w", path, err)
	}
	return &Log{path: path, file: f}, nil
}

// Path returns the file path the log appends to.
func (l *Log) Path() string { return l.path }

// Append writes one record as a single line. The record is marshalled in
// full first; the mutex is held only for the write itself, so concurrent
// completions queue around one syscall and lines never interleave.
func (l *Log) Append(rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling trace record: %w", err)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.file.Write(data); err != nil {
		return fmt.Errorf("appending trace record: %w", err)
	}
	// Flush immediately; records must survive a crash mid-session.
	return l.file.Sync()
}

// Close closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// ReadRecords reads every record from path. The file may be JSONL (one
// record per line) or, for compatibility with hand-assembled inputs, a
// single JSON array of records. Malformed JSONL lines are skipped with a
// diagnostic; one corrupt line never aborts the whole read.
func ReadRecords(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening capture log %s: %w", path, err)
	}
	defer f.Close()

	br := bufio.NewReaderSize(f, scanBufInitial)

	// Peek past leading whitespace: '[' means the whole file is one array.
	first, err := peekNonSpace(br)
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("reading capture log %s: %w", path, err)
	}
	if first == '[' {
		var records []Record
		dec := json.NewDecoder(br)
		if err := dec.Decode(&records); err != nil {
			return nil, fmt.Errorf("parsing capture log array %s: %w", path, err)
		}
		return records, nil
	}

	return scanRecords(br)
}

// peekNonSpace returns the first byte that is not JSON whitespace, without
// consuming it.
func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.Peek(1)
		if err != nil {
			return 0, err
		}
		switch b[0] {
		case ' ', '\t', '\r', '\n':
			br.Discard(1)
		default:
			return b[0], nil
		}
	}
}

// scanRecords reads JSONL records from r, skipping unparsable lines.
func scanRecords(r io.Reader) ([]Record, error) {
	var records []Record
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, scanBufInitial), scanBufMax)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			slog.Warn("skipping malformed trace record", "line", lineNo, "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records, scanner.Err()
}

// Follow tails the log file at path, invoking fn for each record appended
// after the call. Polls at the given interval until ctx is cancelled.
// Partial lines (an append still in flight) are left for the next poll.
func Follow(ctx context.Context, path string, interval time.Duration, fn func(Record)) error {
	offset := int64(0)
	if info, err := os.Stat(path); err == nil {
		offset = info.Size()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			next, err := readFrom(path, offset, fn)
			if err != nil {
				if os.IsNotExist(err) {
					continue
				}
				slog.Error("follow: reading capture log", "error", err)
				continue
			}
			offset = next
		}
	}
}

// readFrom reads complete lines starting at offset, calling fn per parsed
// record, and returns the offset just past the last complete line.
func readFrom(path string, offset int64, fn func(Record)) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return offset, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return offset, err
	}
	if info.Size() <= offset {
		return offset, nil
	}

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return offset, err
	}

	data := make([]byte, info.Size()-offset)
	if _, err := io.ReadFull(f, data); err != nil {
		return offset, err
	}

	// Only consume up to the final newline; anything after it is a record
	// still being written.
	end := bytes.LastIndexByte(data, '\n')
	if end < 0 {
		return offset, nil
	}

	for _, line := range bytes.Split(data[:end], []byte{'\n'}) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			slog.Warn("skipping malformed trace record", "error", err)
			continue
		}
		fn(rec)
	}
	return offset + int64(end) + 1, nil
}

// Summary is a one-line human description of a record, used by tail output.
func Summary(rec *Record) string {
	status := "ok"
	if rec.Error != "" {
		status = "error: " + rec.Error
	}
	model := rec.Model()
	if model == "" {
		model = "-"
	}
	return fmt.Sprintf("%s  %-28s  %6dms  %s", rec.Timestamp, truncate(model, 28), rec.DurationMS, status)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return strings.TrimSpace(s[:n-3]) + "..."
}
