package speech

import (
	"errors"
	"math/rand"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// maxSynthesisAttempts bounds calls to a hosted synthesis API per segment.
const maxSynthesisAttempts = 3

// isRetryable reports whether a synthesis error is transient: rate limiting
// or a server-side failure.
func isRetryable(err error) bool {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	return status == http.StatusTooManyRequests || status >= 500
}

// backoff returns a duration for attempt n (0-indexed) with jitter.
func backoff(base time.Duration, attempt int) time.Duration {
	d := base << uint(attempt)
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	if d < 2 {
		return d
	}
	return d + time.Duration(rand.Int63n(int64(d)/2))
}
