package llm

import (
	"context"
	"fmt"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role-tagged turn of a generation context.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options controls sampling for a single call. Zero MaxTokens leaves the
// output length to the backend.
type Options struct {
	Temperature float32
	MaxTokens   int
}

// TextGenerator is the text-generation capability used for extraction,
// replies and grounded answers.
type TextGenerator interface {
	Generate(ctx context.Context, messages []Message, opts Options) (string, error)
}

// GenerationError reports a transport, quota or model failure.
type GenerationError struct {
	Model string
	Err   error
}

func (e *GenerationError) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("text generation failed: %v", e.Err)
	}
	return fmt.Sprintf("text generation failed (model %s): %v", e.Model, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
