package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestAnthropic builds a provider pointed at a test server with a
// zero-length backoff so retries do not slow the suite down.
func newTestAnthropic(t *testing.T, url string, maxRetries int) *AnthropicProvider {
	t.Helper()
	p := NewAnthropicProvider(&ProviderConfig{
		Endpoint:   url,
		APIKey:     "test-key",
		Model:      "claude-test",
		MaxRetries: maxRetries,
	})
	p.backoff = []time.Duration{0}
	return p
}

func anthropicOKBody(text string) []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"model":       "claude-test",
		"stop_reason": "end_turn",
		"content":     []map[string]interface{}{{"type": "text", "text": text}},
		"usage":       map[string]int{"input_tokens": 10, "output_tokens": 5},
	})
	return body
}

func TestRetrySucceedsWithinBudget(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write(anthropicOKBody("recovered"))
	}))
	defer srv.Close()

	p := newTestAnthropic(t, srv.URL, 3)
	resp, err := p.Chat(context.Background(), &ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Content)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRetryExhausted(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := newTestAnthropic(t, srv.URL, 3)
	_, err := p.Chat(context.Background(), &ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	require.Error(t, err)

	var exhausted *RetryExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestOverloadedStatusIsRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(529)
			return
		}
		w.Write(anthropicOKBody("ok"))
	}))
	defer srv.Close()

	p := newTestAnthropic(t, srv.URL, 3)
	_, err := p.Chat(context.Background(), &ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestPayloadTooLargeIsFatal(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusRequestEntityTooLarge)
	}))
	defer srv.Close()

	p := newTestAnthropic(t, srv.URL, 3)
	_, err := p.Chat(context.Background(), &ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPayloadTooLarge))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "413 must not be retried")
}

func TestPermanentMarkerIsFatal(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"message": "invalid x-api-key"}}`))
	}))
	defer srv.Close()

	p := newTestAnthropic(t, srv.URL, 3)
	_, err := p.Chat(context.Background(), &ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	require.Error(t, err)

	var perm *PermanentError
	require.ErrorAs(t, err, &perm)
	assert.Equal(t, http.StatusUnauthorized, perm.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "permanent errors must not be retried")
}

func TestUnexpectedStatusIsRetriedLikeTransport(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("odd"))
	}))
	defer srv.Close()

	p := newTestAnthropic(t, srv.URL, 2)
	_, err := p.Chat(context.Background(), &ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	require.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestHasPermanentMarker(t *testing.T) {
	assert.True(t, hasPermanentMarker("Your credit balance is too low"))
	assert.True(t, hasPermanentMarker("AUTHENTICATION failed"))
	assert.False(t, hasPermanentMarker("model overloaded, try again"))
	assert.False(t, hasPermanentMarker(""))
}
