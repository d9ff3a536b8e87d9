package engine

import (
	"context"
	"time"

	"github.com/kalambet/tutord/internal/proxy"
)

// CloudEngine adapts the OpenAI-compatible proxy.Client to the Engine interface.
type CloudEngine struct {
	client *proxy.Client
	model  string
}

// NewCloudEngine creates a CloudEngine. An empty baseURL selects the default provider.
func NewCloudEngine(baseURL, apiKey, model string) *CloudEngine {
	return &CloudEngine{
		client: proxy.NewClientWithBaseURL(apiKey, baseURL),
		model:  model,
	}
}

func (e *CloudEngine) Complete(ctx context.Context, messages []Message, temperature float64) (string, error) {
	msgs := make([]proxy.Message, len(messages))
	for i, m := range messages {
		msgs[i] = proxy.Message{Role: m.Role, Content: m.Content}
	}
	return e.client.Complete(ctx, proxy.ChatRequest{
		Model:       e.model,
		Messages:    msgs,
		Temperature: temperature,
	})
}

// IsRunning checks the provider's model listing.
func (e *CloudEngine) IsRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := e.client.ListModels(ctx)
	return err == nil
}

func (e *CloudEngine) Model() string { return e.model }
