// Package main is the CLI entry point for llmpath, a recording proxy
// and trace toolkit for LLM HTTP APIs.
//
// llmpath sits between an application and its LLM provider, captures
// every request/response pair into an append-only JSONL log, normalises
// the log into a deduplicated message/tool artifact ("cooking"),
// reconstructs the lineage forest across calls, and serves a viewer UI
// over the result.
//
// Pipeline overview:
//
//	client --> llmpath proxy (:8080) --> LLM provider (OpenAI/Claude)
//	              |
//	              +-- append record --> traces.jsonl
//	                                        |
//	                  llmpath cook ---------+--> output.json
//	                                                 |
//	                  llmpath viewer (:8000) --------+--> browser UI
//
// CLI commands (cobra):
//
//	llmpath proxy    - Start the capture proxy
//	llmpath cook     - Normalise a capture log into the derived artifact
//	llmpath viewer   - Cook (if stale) and serve the viewer UI
//	llmpath query    - Filter capture records via a transient index
//	llmpath tail     - Print record summaries, optionally following appends
//	llmpath config   - Manage the config file
//	llmpath version  - Show build information
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/llmpath/llmpath/internal/config"
	"github.com/llmpath/llmpath/internal/cook"
	"github.com/llmpath/llmpath/internal/lineage"
	"github.com/llmpath/llmpath/internal/proxy"
	"github.com/llmpath/llmpath/internal/trace"
	"github.com/llmpath/llmpath/internal/viewer"
)

// Build-time variables injected via ldflags:
//
//	go build -ldflags "-X main.version=0.3.0 -X main.commit=abc123 -X main.buildDate=2026-03-01"
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// Exit codes: 0 for a clean run or signal-driven shutdown, 1 for runtime
// failures (bind errors, unreadable input), 2 for invalid arguments.
const (
	exitFailure = 1
	exitUsage   = 2
)

// usageError marks argument and config validation failures so main can
// exit with status 2 instead of the generic 1.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func main() {
	if err := rootCmd.Execute(); err != nil {
		var uerr usageError
		if errors.As(err, &uerr) || strings.HasPrefix(err.Error(), "unknown command") {
			os.Exit(exitUsage)
		}
		os.Exit(exitFailure)
	}
}

// ============================================================================
// Root command
// ============================================================================

// configPath is shared by every subcommand. Flags always win over values
// from the file; the file fills in whatever the flags leave unset.
var configPath string

var rootCmd = &cobra.Command{
	Use:   "llmpath",
	Short: "Capture proxy and context-lineage viewer for LLM APIs",
	Long: `llmpath records the traffic between an application and an LLM HTTP API,
normalises the captured calls into a deduplicated message/tool model,
reconstructs how the context prefix evolved across calls, and serves an
interactive viewer over the result.

Typical session:

  llmpath proxy --target https://api.openai.com --output traces.jsonl
  llmpath cook traces.jsonl -o output.json
  llmpath viewer traces.jsonl --watch`,
	Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "llmpath.yaml", "Path to the llmpath config file")
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError{err}
	})
	rootCmd.AddCommand(proxyCmd, cookCmd, viewerCmd, queryCmd, tailCmd, configCmd, versionCmd)
}

// loadConfig reads the shared config file and points the default slog
// handler at its log section. Config problems are usage errors.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, usageError{err}
	}
	setupLogging(cfg.Log)
	return cfg, nil
}

// setupLogging wires the default slog handler. CLI-facing output stays
// on fmt.Printf; slog carries diagnostics from the library packages.
func setupLogging(lc config.LogConfig) {
	var level slog.Level
	switch lc.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if lc.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// exactArgs is cobra.ExactArgs with the usage exit code attached.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

// maxArgs is cobra.MaximumNArgs with the usage exit code attached.
func maxArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.MaximumNArgs(n)(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

// serve binds addr, serves handler, and blocks until SIGINT/SIGTERM or a
// server error, then drains in-flight requests. Binding happens before
// any traffic so a taken port fails fast instead of half-starting.
func serve(ctx context.Context, addr string, handler http.Handler) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("binding %s: %w", addr, err)
	}

	server := &http.Server{
		Handler: handler,
		// No read/write timeouts: streamed completions legitimately run
		// for minutes. Upstream stalls are handled per call instead.
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		fmt.Println("\n[llmpath] Shutting down...")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "[llmpath] Shutdown error: %v\n", err)
	}
	fmt.Println("[llmpath] Stopped")
	return nil
}

// ============================================================================
// llmpath proxy - Start the capture proxy
// ============================================================================

// Proxy flags. Zero values mean "not set"; the config file fills those in.
var (
	proxyHost   string
	proxyPort   int
	proxyTarget string
	proxyOutput string
)

var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Start the transparent capture proxy",
	Long: `Start the capture proxy. Requests to any path are forwarded to the
target URL with hop-by-hop headers stripped; responses stream back
unchanged (SSE line by line), and every completed upstream call is
appended to the output JSONL file.

The proxy never modifies bodies and never blocks traffic; capture
filters in the config file only decide what gets recorded.`,
	Args: exactArgs(0),
	RunE: runProxy,
}

func init() {
	proxyCmd.Flags().StringVar(&proxyHost, "host", "", "Bind address (default from config: 127.0.0.1)")
	proxyCmd.Flags().IntVar(&proxyPort, "port", 0, "Listen port (default from config: 8080)")
	proxyCmd.Flags().StringVar(&proxyTarget, "target", "", "Upstream API base URL, e.g. https://api.openai.com")
	proxyCmd.Flags().StringVar(&proxyOutput, "output", "", "Capture log path (JSONL, appended)")
}

func runProxy(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if proxyHost != "" {
		cfg.Proxy.Host = proxyHost
	}
	if proxyPort != 0 {
		cfg.Proxy.Port = proxyPort
	}
	if proxyTarget != "" {
		cfg.Proxy.Target = proxyTarget
	}
	if proxyOutput != "" {
		cfg.Proxy.Output = proxyOutput
	}

	log, err := trace.Open(cfg.Proxy.Output)
	if err != nil {
		return err
	}
	defer log.Close()

	filter, err := proxy.NewFilter(cfg.Capture.Include, cfg.Capture.Exclude)
	if err != nil {
		return usageError{err}
	}

	handler, err := proxy.New(proxy.Options{
		Target:         cfg.Proxy.Target,
		Log:            log,
		Filter:         filter,
		ConnectTimeout: cfg.Proxy.ConnectTimeout.Std(),
		IdleTimeout:    cfg.Proxy.IdleTimeout.Std(),
	})
	if err != nil {
		return usageError{err}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf("%s:%d", cfg.Proxy.Host, cfg.Proxy.Port)
	fmt.Printf("[llmpath] Proxy listening on http://%s\n", addr)
	fmt.Printf("[llmpath] Forwarding to %s\n", cfg.Proxy.Target)
	fmt.Printf("[llmpath] Capturing to %s\n", cfg.Proxy.Output)
	fmt.Println("[llmpath] Press Ctrl+C to stop")
	return serve(ctx, addr, handler)
}

// ============================================================================
// llmpath cook - Normalise a capture log
// ============================================================================

var (
	cookOutput string
	cookFormat string
)

var cookCmd = &cobra.Command{
	Use:   "cook INPUT",
	Short: "Normalise a capture log into the derived artifact",
	Long: `Read a capture log (JSONL, or a whole-file JSON array), reassemble
streamed responses, translate OpenAI and Claude calls into one canonical
message/tool model, deduplicate, reconstruct lineage, and atomically
write the {messages, tools, requests} artifact.

Records that cannot be cooked are skipped with a diagnostic and keep an
error-flagged slot in the artifact; a bad record never fails the run.`,
	Args: exactArgs(1),
	RunE: runCook,
}

func init() {
	cookCmd.Flags().StringVarP(&cookOutput, "output", "o", "./output.json", "Output JSON file path")
	cookCmd.Flags().StringVar(&cookFormat, "format", "auto", "API format of the input traces: auto, openai, or claude")
}

func runCook(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(); err != nil {
		return err
	}
	format, err := cook.ParseFormat(cookFormat)
	if err != nil {
		return usageError{err}
	}

	records, err := trace.ReadRecords(args[0])
	if err != nil {
		return err
	}

	artifact := cook.Cook(records, format)
	lineage.Assign(artifact.Requests)
	if err := artifact.WriteFile(cookOutput); err != nil {
		return err
	}

	errored := 0
	for i := range artifact.Requests {
		if artifact.Requests[i].Error != "" {
			errored++
		}
	}
	fmt.Printf("[llmpath] Processed %d records\n", len(records))
	fmt.Printf("  Messages: %d (deduplicated)\n", len(artifact.Messages))
	fmt.Printf("  Tools:    %d (deduplicated)\n", len(artifact.Tools))
	fmt.Printf("  Requests: %d\n", len(artifact.Requests))
	if errored > 0 {
		fmt.Printf("  Errors:   %d\n", errored)
	}
	fmt.Printf("[llmpath] Output written to %s\n", cookOutput)
	return nil
}

// ============================================================================
// llmpath viewer - Serve the artifact UI
// ============================================================================

var (
	viewerHost  string
	viewerPort  int
	viewerWatch bool
)

var viewerCmd = &cobra.Command{
	Use:   "viewer INPUT",
	Short: "Cook (if stale) and serve the trace viewer",
	Long: `Serve the viewer UI for a capture log. The derived artifact is rebuilt
first whenever it is missing or older than INPUT; pass a cooked JSON
file instead to serve it as-is.

With --watch, the input file is watched and every change re-cooks the
artifact and reloads connected browsers.`,
	Args: exactArgs(1),
	RunE: runViewer,
}

func init() {
	viewerCmd.Flags().StringVar(&viewerHost, "host", "", "Bind address (default from config: 127.0.0.1)")
	viewerCmd.Flags().IntVar(&viewerPort, "port", 0, "Listen port (default from config: 8000)")
	viewerCmd.Flags().BoolVar(&viewerWatch, "watch", false, "Re-cook and live-reload when INPUT changes")
}

func runViewer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if viewerHost != "" {
		cfg.Viewer.Host = viewerHost
	}
	if viewerPort != 0 {
		cfg.Viewer.Port = viewerPort
	}

	v, err := viewer.New(args[0])
	if err != nil {
		return err
	}
	recooked, err := v.CookIfStale()
	if err != nil {
		return err
	}
	if recooked {
		fmt.Printf("[llmpath] Cooked %s -> %s\n", args[0], v.ArtifactPath())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if viewerWatch {
		go func() {
			if err := v.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("watch stopped", "error", err)
			}
		}()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Viewer.Host, cfg.Viewer.Port)
	fmt.Printf("[llmpath] Viewer on http://%s\n", addr)
	fmt.Printf("[llmpath] Serving %s\n", v.ArtifactPath())
	if viewerWatch {
		fmt.Printf("[llmpath] Watching %s for changes\n", args[0])
	}
	fmt.Println("[llmpath] Press Ctrl+C to stop")
	return serve(ctx, addr, v.Handler())
}

// ============================================================================
// llmpath query - Filter capture records
// ============================================================================

var (
	queryModel  string
	queryErrors bool
	querySince  string
	queryUntil  string
	queryLimit  int
)

var queryCmd = &cobra.Command{
	Use:   "query INPUT",
	Short: "Filter capture records through a transient index",
	Long: `Load a capture log into an in-memory SQLite index and print the
matching records as JSONL on stdout. The index lives only for this
invocation; the log file stays the single source of truth.

Times accept RFC 3339 stamps or relative durations like 30m and 2h.

Examples:
  llmpath query traces.jsonl --model 'claude-*' --since 1h
  llmpath query traces.jsonl --errors --limit 10`,
	Args: exactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&queryModel, "model", "", "Glob pattern matched against the request model")
	queryCmd.Flags().BoolVar(&queryErrors, "errors", false, "Only records that carry an error")
	queryCmd.Flags().StringVar(&querySince, "since", "", "Only records at or after this time")
	queryCmd.Flags().StringVar(&queryUntil, "until", "", "Only records at or before this time")
	queryCmd.Flags().IntVar(&queryLimit, "limit", 0, "Stop after this many records (0 = all)")
}

func runQuery(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(); err != nil {
		return err
	}
	idx, err := trace.NewIndex()
	if err != nil {
		return err
	}
	defer idx.Close()

	total, err := idx.Load(args[0])
	if err != nil {
		return err
	}
	matches, err := idx.Query(trace.QueryParams{
		Model:      queryModel,
		ErrorsOnly: queryErrors,
		Since:      querySince,
		Until:      queryUntil,
		Limit:      queryLimit,
	})
	if err != nil {
		return usageError{err}
	}

	out := json.NewEncoder(os.Stdout)
	out.SetEscapeHTML(false)
	for i := range matches {
		if err := out.Encode(&matches[i]); err != nil {
			return fmt.Errorf("writing record: %w", err)
		}
	}
	fmt.Fprintf(os.Stderr, "[llmpath] %d of %d records matched\n", len(matches), total)
	return nil
}

// ============================================================================
// llmpath tail - Print record summaries
// ============================================================================

var (
	tailFollow bool
	tailLimit  int
)

var tailCmd = &cobra.Command{
	Use:   "tail INPUT",
	Short: "Print one summary line per captured record",
	Long: `Print a short summary line (timestamp, model, status, duration) for
the most recent records in a capture log. With --follow, keep polling
the file and print new records as the proxy appends them.`,
	Args: exactArgs(1),
	RunE: runTail,
}

func init() {
	tailCmd.Flags().BoolVarP(&tailFollow, "follow", "f", false, "Keep polling for appended records")
	tailCmd.Flags().IntVarP(&tailLimit, "limit", "n", 20, "Number of recent records to print (0 = all)")
}

func runTail(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(); err != nil {
		return err
	}
	records, err := trace.ReadRecords(args[0])
	if err != nil {
		return err
	}
	start := 0
	if tailLimit > 0 && len(records) > tailLimit {
		start = len(records) - tailLimit
	}
	for i := start; i < len(records); i++ {
		fmt.Println(trace.Summary(&records[i]))
	}
	if !tailFollow {
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = trace.Follow(ctx, args[0], time.Second, func(rec trace.Record) {
		fmt.Println(trace.Summary(&rec))
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// ============================================================================
// llmpath config - Manage the config file
// ============================================================================

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the llmpath config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [PATH]",
	Short: "Write a commented default config file",
	Args:  maxArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists; remove it or pass a different path", path)
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Printf("[llmpath] Wrote default config to %s\n", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
}

// ============================================================================
// llmpath version - Show build information
// ============================================================================

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("llmpath %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", buildDate)
	},
}
