// Package viewer serves the cooked artifact behind a small embedded UI.
//
// The viewer is mounted on its own port, separate from the proxy. It
// provides:
//
//   - Web UI:     GET /           single-page lineage viewer
//     GET /app.js     embedded script
//     GET /style.css  embedded stylesheet
//   - Artifact:   GET /data.json  the cooked {messages, tools, requests}
//   - Dev aid:    GET /_local     artifact for an arbitrary local file
//   - Live feed:  GET /ws         websocket pushing {"type":"reload"}
//
// The input may be a raw capture log, in which case the viewer keeps a
// cooked artifact next to it and rebuilds it when stale, or an
// already-cooked artifact, which is served as-is.
package viewer

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/llmpath/llmpath/internal/cook"
	"github.com/llmpath/llmpath/internal/lineage"
	"github.com/llmpath/llmpath/internal/trace"
)

// Viewer serves the derived artifact for one input file.
type Viewer struct {
	inputPath    string
	artifactPath string
	direct       bool // input is already an artifact, never re-cook

	cookMu sync.Mutex
	hub    *hub
}

// New prepares a viewer for the given input. A raw capture log gets a
// derived artifact path next to it (traces.jsonl becomes
// traces.cooked.json); a cooked JSON file is served directly.
func New(inputPath string) (*Viewer, error) {
	if _, err := os.Stat(inputPath); err != nil {
		return nil, fmt.Errorf("input %s: %w", inputPath, err)
	}

	v := &Viewer{inputPath: inputPath, hub: newHub()}
	if isArtifact(inputPath) {
		v.direct = true
		v.artifactPath = inputPath
	} else {
		v.artifactPath = derivedPath(inputPath)
	}

	go v.hub.run()
	return v, nil
}

// ArtifactPath returns the path of the artifact the viewer serves.
func (v *Viewer) ArtifactPath() string { return v.artifactPath }

// CookIfStale rebuilds the artifact when it is missing or older than the
// input. Reports whether a new artifact was written.
func (v *Viewer) CookIfStale() (bool, error) {
	if v.direct {
		return false, nil
	}
	v.cookMu.Lock()
	defer v.cookMu.Unlock()

	in, err := os.Stat(v.inputPath)
	if err != nil {
		return false, fmt.Errorf("input %s: %w", v.inputPath, err)
	}
	if out, err := os.Stat(v.artifactPath); err == nil && !out.ModTime().Before(in.ModTime()) {
		return false, nil
	}
	return true, v.recook()
}

// Recook unconditionally rebuilds the artifact from the input. No-op
// when the input is already a cooked artifact.
func (v *Viewer) Recook() error {
	if v.direct {
		return nil
	}
	v.cookMu.Lock()
	defer v.cookMu.Unlock()
	return v.recook()
}

// recook runs the full pipeline over the input and atomically replaces
// the artifact. Callers hold cookMu.
func (v *Viewer) recook() error {
	records, err := trace.ReadRecords(v.inputPath)
	if err != nil {
		return err
	}
	artifact := cook.Cook(records, cook.FormatAuto)
	lineage.Assign(artifact.Requests)
	if err := artifact.WriteFile(v.artifactPath); err != nil {
		return err
	}
	slog.Info("artifact cooked",
		"input", v.inputPath,
		"output", v.artifactPath,
		"requests", len(artifact.Requests),
	)
	return nil
}

// Handler returns the viewer's HTTP surface.
func (v *Viewer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", v.handleIndex)
	mux.HandleFunc("/app.js", assetHandler("text/javascript; charset=utf-8", appJS))
	mux.HandleFunc("/style.css", assetHandler("text/css; charset=utf-8", styleCSS))
	mux.HandleFunc("/data.json", v.handleData)
	mux.HandleFunc("/_local", v.handleLocal)
	mux.HandleFunc("/ws", v.handleWebSocket)
	return mux
}

// handleIndex serves the UI page. The root pattern catches every path
// without a more specific handler, so anything but "/" is a 404.
func (v *Viewer) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(indexHTML))
}

// handleData serves the artifact file as-is. One read per fetch; the
// file is replaced atomically by re-cooks, so a read never observes a
// half-written document.
func (v *Viewer) handleData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	data, err := os.ReadFile(v.artifactPath)
	if err != nil {
		slog.Error("reading artifact", "path", v.artifactPath, "error", err)
		http.Error(w, "artifact not available", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// handleLocal serves an artifact for an arbitrary local file, so a log
// can be inspected without restarting the viewer. Raw capture logs are
// cooked in memory; nothing is written next to them.
func (v *Viewer) handleLocal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		http.Error(w, "path parameter required", http.StatusBadRequest)
		return
	}

	if isArtifact(path) {
		data, err := os.ReadFile(path)
		if err != nil {
			http.Error(w, "cannot read "+path, http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
		return
	}

	records, err := trace.ReadRecords(path)
	if err != nil {
		slog.Warn("local artifact request failed", "path", path, "error", err)
		http.Error(w, "cannot read "+path, http.StatusNotFound)
		return
	}
	artifact := cook.Cook(records, cook.FormatAuto)
	lineage.Assign(artifact.Requests)
	writeJSON(w, http.StatusOK, artifact)
}

// assetHandler serves one embedded asset with its content type.
func assetHandler(contentType, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "GET only", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(body))
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

// isArtifact reports whether the file at path already is a cooked
// artifact. A single capture-log line also parses as a JSON object, so
// the document must actually carry the artifact's top-level lists.
func isArtifact(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var probe struct {
		Messages []json.RawMessage `json:"messages"`
		Requests []json.RawMessage `json:"requests"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return false
	}
	return probe.Messages != nil && probe.Requests != nil
}

// derivedPath places the cooked artifact next to the input:
// traces.jsonl becomes traces.cooked.json.
func derivedPath(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + ".cooked.json"
}
