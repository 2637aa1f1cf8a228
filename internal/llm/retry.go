package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/scenecraft/scenecraft/internal/logging"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ERROR TAXONOMY
// ═══════════════════════════════════════════════════════════════════════════════

// ErrPayloadTooLarge is returned for HTTP 413. It is fatal immediately and
// carries a distinct identity so callers can shrink their tool subset.
var ErrPayloadTooLarge = errors.New("payload too large: request exceeds the provider's size limit, reduce the tool subset or history")

// PermanentError marks failures that must never be retried
// (authentication, billing, policy refusals).
type PermanentError struct {
	Status int
	Body   string
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent provider error (status %d): %s", e.Status, e.Body)
}

// RetryExhaustedError is returned once all attempts for a retryable failure
// have been used up.
type RetryExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("request failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.Last
}

// retryBackoff is the fixed backoff schedule between attempts. The last
// entry repeats if the attempt budget exceeds the schedule length.
var retryBackoff = []time.Duration{5 * time.Second, 15 * time.Second, 30 * time.Second}

// permanentMarkers flag error bodies that indicate auth/balance/policy
// problems. Retrying these only burns the budget.
var permanentMarkers = []string{
	"credit balance",
	"invalid x-api-key",
	"incorrect api key",
	"authentication",
	"billing",
	"permission",
	"policy",
}

func hasPermanentMarker(body string) bool {
	lowered := strings.ToLower(body)
	for _, marker := range permanentMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

// httpStatusError is the internal carrier for a non-OK response during the
// retry loop.
type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("provider error (status %d): %s", e.status, e.body)
}

// ═══════════════════════════════════════════════════════════════════════════════
// RETRYING POST
// ═══════════════════════════════════════════════════════════════════════════════

// post sends body to url with the given headers, retrying transient
// failures with fixed backoff. Classification:
//   - 413 → ErrPayloadTooLarge, fatal
//   - body with a permanent marker → PermanentError, fatal
//   - everything else (transport errors, 5xx, unexpected statuses) →
//     retried, then wrapped in RetryExhaustedError
func (b *baseProvider) post(ctx context.Context, url string, headers map[string]string, body []byte) ([]byte, error) {
	log := logging.Global().WithComponent("llm")

	var lastErr error
	attempts := b.config.MaxRetries

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			wait := b.backoff[min(attempt-1, len(b.backoff)-1)]
			log.Warn("retrying %s in %v (attempt %d/%d): %v", b.config.Name, wait, attempt+1, attempts, lastErr)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		respBody, err := b.postOnce(ctx, url, headers, body)
		if err == nil {
			return respBody, nil
		}

		// Fatal classifications pass through untouched.
		if errors.Is(err, ErrPayloadTooLarge) {
			return nil, err
		}
		var perm *PermanentError
		if errors.As(err, &perm) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
	}

	return nil, &RetryExhaustedError{Attempts: attempts, Last: lastErr}
}

// postOnce performs a single HTTP round trip and classifies the outcome.
func (b *baseProvider) postOnce(ctx context.Context, url string, headers map[string]string, body []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return readLimitedBody(resp.Body, MaxErrorBodySize*50)
	}

	errBody, _ := readLimitedBody(resp.Body, MaxErrorBodySize)

	if resp.StatusCode == http.StatusRequestEntityTooLarge {
		return nil, fmt.Errorf("%w (status 413)", ErrPayloadTooLarge)
	}
	if hasPermanentMarker(string(errBody)) {
		return nil, &PermanentError{Status: resp.StatusCode, Body: truncateBody(string(errBody))}
	}

	return nil, &httpStatusError{status: resp.StatusCode, body: truncateBody(string(errBody))}
}

// truncateBody keeps error messages log-friendly.
func truncateBody(s string) string {
	const max = 500
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
