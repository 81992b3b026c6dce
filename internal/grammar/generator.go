package grammar

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// TextGenerator sends a prompt to a text-generation model and returns its
// free-form reply.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// StatusError is a non-success answer from a generation service.
type StatusError struct {
	Service string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s error (status %d): %s", e.Service, e.Code, e.Body)
}

// Transient reports whether repeating the request may succeed.
func (e *StatusError) Transient() bool {
	return e.Code == 429 || e.Code >= 500
}

// IsTransient reports whether err is worth retrying: rate limiting, server
// errors and network failures. Context expiry and cancellation are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Transient()
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// GeneratorConfig selects and configures a remote provider.
type GeneratorConfig struct {
	Provider      string
	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string
	OllamaURL     string
	OllamaModel   string
}

// NewGenerator creates a generator for the configured provider.
// Supported providers: "gemini", "ollama".
func NewGenerator(ctx context.Context, cfg GeneratorConfig) (TextGenerator, error) {
	switch cfg.Provider {
	case "gemini":
		gen, err := NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiBaseURL)
		if err != nil {
			return nil, err
		}
		return gen, nil
	case "ollama":
		return NewOllama(cfg.OllamaURL, cfg.OllamaModel), nil
	default:
		return nil, fmt.Errorf("unsupported remote grammar provider: %s (supported: gemini, ollama)", cfg.Provider)
	}
}
