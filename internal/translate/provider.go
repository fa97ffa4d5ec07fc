// Package translate wraps the external machine-translation backends behind a
// single capability: translate an ordered batch of texts between two
// languages. Result batches always match the input in length and order.
package translate

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Provider calls are synchronous and may block on network I/O up to the
// request timeout.
const requestTimeout = 60 * time.Second

// Provider is one translation backend.
type Provider interface {
	Name() string
	Translate(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error)
}

// ProviderError reports a failed backend call. Quota marks rate-limit or
// quota-exhaustion responses, which trigger the gateway fallback chain
// instead of failing the caller.
type ProviderError struct {
	Provider string
	Status   int
	Message  string
	Quota    bool
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s error: %d %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Provider, e.Message)
}

// NoOp returns its input unchanged. It is the configured backend when no
// vendor credentials are present and the terminal fallback when every vendor
// is unavailable, so a pipeline run never hard-fails on provider outages
// alone.
type NoOp struct{}

func (NoOp) Name() string { return "noop" }

func (NoOp) Translate(_ context.Context, texts []string, _, _ string) ([]string, error) {
	out := make([]string, len(texts))
	copy(out, texts)
	return out, nil
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: requestTimeout}
}
