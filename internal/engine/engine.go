package engine

import "context"

// Engine abstracts a chat completion backend (a hosted OpenAI-compatible
// API or a local Ollama server). The tutor talks to this interface only.
type Engine interface {
	// Complete sends messages at the given sampling temperature and returns
	// the assistant's reply text.
	Complete(ctx context.Context, messages []Message, temperature float64) (string, error)

	// IsRunning reports whether the backend is reachable.
	IsRunning(ctx context.Context) bool

	// Model returns the model identifier requests are sent to.
	Model() string
}

// ModelManager is implemented by backends that host models locally and can
// download them on demand.
type ModelManager interface {
	HasModel(ctx context.Context, name string) bool
	PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error
}
