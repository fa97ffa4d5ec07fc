package translate

import (
	"context"
	"errors"
	"log/slog"
)

// Gateway fronts the configured primary provider with a quota fallback
// chain. Explicit non-quota failures from the primary propagate to the
// caller; quota failures walk the fallbacks in order, each fallback failure
// is swallowed, and the identity no-op is the final resort.
type Gateway struct {
	primary   Provider
	fallbacks []Provider
}

// NewGateway builds a gateway. A nil primary means no provider is
// configured and every call is an identity no-op.
func NewGateway(primary Provider, fallbacks ...Provider) *Gateway {
	return &Gateway{primary: primary, fallbacks: fallbacks}
}

// Translate returns the batch translated into targetLang, same length and
// order as texts.
func (g *Gateway) Translate(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error) {
	if len(texts) == 0 {
		return []string{}, nil
	}
	if g == nil || g.primary == nil {
		return identity(texts), nil
	}
	out, err := g.primary.Translate(ctx, texts, sourceLang, targetLang)
	if err == nil {
		if len(out) != len(texts) {
			return nil, &ProviderError{
				Provider: g.primary.Name(),
				Message:  "response item count mismatch",
			}
		}
		return out, nil
	}

	var perr *ProviderError
	if !errors.As(err, &perr) || !perr.Quota {
		return nil, err
	}
	slog.Warn("translation provider over quota, trying fallbacks",
		"provider", g.primary.Name(), "target_lang", targetLang)
	for _, fb := range g.fallbacks {
		out, fbErr := fb.Translate(ctx, texts, sourceLang, targetLang)
		if fbErr == nil && len(out) == len(texts) {
			return out, nil
		}
		if fbErr != nil {
			slog.Warn("fallback translation provider failed",
				"provider", fb.Name(), "err", fbErr)
		}
	}
	// Last resort: keep the original text.
	return identity(texts), nil
}

func identity(texts []string) []string {
	out := make([]string, len(texts))
	copy(out, texts)
	return out
}
