package engine

import "fmt"

const (
	KindCloud  = "cloud"
	KindOllama = "ollama"
)

// DetectConfig holds parameters for backend selection.
type DetectConfig struct {
	Kind          string
	BaseURL       string
	APIKey        string
	Model         string
	OllamaBaseURL string
}

// Detect returns the Engine for the configured provider kind.
func Detect(cfg DetectConfig) (Engine, error) {
	switch cfg.Kind {
	case KindCloud, "":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("provider %q requires an API key", KindCloud)
		}
		return NewCloudEngine(cfg.BaseURL, cfg.APIKey, cfg.Model), nil
	case KindOllama:
		return NewOllamaEngine(cfg.OllamaBaseURL, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown provider kind %q", cfg.Kind)
	}
}
