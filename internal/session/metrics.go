package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// MetricsWriter appends one JSON line per finished turn to a metrics file.
// The stream is append-only and survives process restarts; downstream
// tooling tails it.
type MetricsWriter struct {
	mu   sync.Mutex
	file *os.File
	log  zerolog.Logger
}

// NewMetricsWriter opens (or creates) the JSONL metrics stream at path.
func NewMetricsWriter(path string) (*MetricsWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create metrics directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open metrics file: %w", err)
	}
	return &MetricsWriter{
		file: file,
		log:  zerolog.New(file).With().Timestamp().Logger(),
	}, nil
}

// RecordTurn writes the turn summary of a session.
func (w *MetricsWriter) RecordTurn(sess *Session) {
	if w == nil {
		return
	}
	snap := sess.Snapshot()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.log.Info().
		Str("session_id", snap.ID).
		Str("outcome", snap.Outcome).
		Int("llm_calls", snap.Metrics.LLMCalls).
		Int("tool_calls", snap.Metrics.ToolCalls).
		Int("tool_failures", snap.Metrics.ToolFailures).
		Int("input_tokens", snap.Metrics.InputTokens).
		Int("output_tokens", snap.Metrics.OutputTokens).
		Int64("duration_ms", snap.Metrics.DurationMS).
		Msg("turn")
}

// Close flushes and closes the stream.
func (w *MetricsWriter) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
