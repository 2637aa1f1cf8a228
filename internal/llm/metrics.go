package llm

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/scenecraft/scenecraft/internal/logging"
)

// MetricsProvider wraps an LLM provider with timing and counter collection.
// The orchestrator snapshots it at turn end for the session metrics stream.
type MetricsProvider struct {
	provider Provider
	log      *logging.Logger

	// Atomic counters
	totalCalls        int64
	totalErrors       int64
	totalTokens       int64
	totalInputTokens  int64
	totalOutputTokens int64

	// Protected by mutex
	mu           sync.RWMutex
	totalLatency time.Duration
	minLatency   time.Duration
	maxLatency   time.Duration
}

// MetricsSnapshot is a point-in-time copy of the collected counters.
type MetricsSnapshot struct {
	Provider     string        `json:"provider"`
	Calls        int64         `json:"calls"`
	Errors       int64         `json:"errors"`
	Tokens       int64         `json:"tokens"`
	InputTokens  int64         `json:"input_tokens"`
	OutputTokens int64         `json:"output_tokens"`
	AvgLatency   time.Duration `json:"avg_latency"`
	MinLatency   time.Duration `json:"min_latency"`
	MaxLatency   time.Duration `json:"max_latency"`
}

// NewMetricsProvider wraps a provider with metrics collection.
func NewMetricsProvider(provider Provider) *MetricsProvider {
	return &MetricsProvider{
		provider:   provider,
		log:        logging.Global().WithComponent("llm"),
		minLatency: time.Hour, // Replaced on first call
	}
}

// Chat implements Provider, recording latency and token counters.
func (m *MetricsProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	resp, err := m.provider.Chat(ctx, req)

	latency := time.Since(start)

	atomic.AddInt64(&m.totalCalls, 1)
	if err != nil {
		atomic.AddInt64(&m.totalErrors, 1)
	} else {
		atomic.AddInt64(&m.totalTokens, int64(resp.TokensUsed))
		atomic.AddInt64(&m.totalInputTokens, int64(resp.PromptTokens))
		atomic.AddInt64(&m.totalOutputTokens, int64(resp.CompletionTokens))
	}

	m.mu.Lock()
	m.totalLatency += latency
	if latency < m.minLatency {
		m.minLatency = latency
	}
	if latency > m.maxLatency {
		m.maxLatency = latency
	}
	m.mu.Unlock()

	m.log.Debug("%s call finished in %v (err=%v)", m.provider.Name(), latency, err != nil)

	return resp, err
}

// Name returns the wrapped provider's identifier.
func (m *MetricsProvider) Name() string {
	return m.provider.Name()
}

// Available delegates to the wrapped provider.
func (m *MetricsProvider) Available() bool {
	return m.provider.Available()
}

// FormatAssistantMessage delegates to the wrapped dialect.
func (m *MetricsProvider) FormatAssistantMessage(resp *ChatResponse) Message {
	return m.provider.FormatAssistantMessage(resp)
}

// FormatToolResultsAsMessages delegates to the wrapped dialect.
func (m *MetricsProvider) FormatToolResultsAsMessages(results []ToolResultPayload) []Message {
	return m.provider.FormatToolResultsAsMessages(results)
}

// Snapshot returns a copy of the collected counters.
func (m *MetricsProvider) Snapshot() MetricsSnapshot {
	calls := atomic.LoadInt64(&m.totalCalls)

	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := MetricsSnapshot{
		Provider:     m.provider.Name(),
		Calls:        calls,
		Errors:       atomic.LoadInt64(&m.totalErrors),
		Tokens:       atomic.LoadInt64(&m.totalTokens),
		InputTokens:  atomic.LoadInt64(&m.totalInputTokens),
		OutputTokens: atomic.LoadInt64(&m.totalOutputTokens),
		MaxLatency:   m.maxLatency,
	}
	if calls > 0 {
		snap.AvgLatency = m.totalLatency / time.Duration(calls)
		snap.MinLatency = m.minLatency
	}
	return snap
}
