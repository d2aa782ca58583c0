package ai

import (
	"fmt"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request carries one generation call. MaxTokens/Temperature of zero mean
// provider defaults.
type Request struct {
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Provider is the text-generation collaborator. Safe to call synchronously
// inline with dispatch; failures come back as *GenerationError, never a panic.
type Provider interface {
	Generate(req Request) (string, error)
}

// GenerationError is a typed backend failure. Status carries the HTTP status
// code when one exists (0 otherwise) so callers can classify overload.
type GenerationError struct {
	Provider string
	Status   int
	Err      error
}

func (e *GenerationError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s generation failed (http %d): %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("%s generation failed: %v", e.Provider, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// StatusCode implements the retrylimit.HTTPError classification interface.
func (e *GenerationError) StatusCode() int { return e.Status }

// NewProvider selects a backend by engine name, e.g. "pollinations",
// "g4f:gpt-oss-120b", "g4f:groq/qwen/qwen3-32b".
func NewProvider(engine string) (Provider, error) {
	switch {
	case engine == "pollinations" || engine == "":
		return NewPollinationsProvider(), nil
	case engine == "g4f" || len(engine) > 4 && engine[:4] == "g4f:":
		return NewG4FProvider(engine), nil
	default:
		return nil, fmt.Errorf("unsupported AI_PROVIDER: %s", engine)
	}
}
