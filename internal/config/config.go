package config

import (
	"fmt"
	"strings"
)

// Provider kinds.
const (
	ProviderCloud  = "cloud"
	ProviderOllama = "ollama"
)

type Config struct {
	Server   ServerConfig
	Provider ProviderConfig
	Ollama   OllamaConfig
	Notes    NotesConfig
	Tutor    TutorConfig
	Storage  StorageConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port     int
	MaxConns int
	AdminKey string
}

type ProviderConfig struct {
	Kind    string
	BaseURL string
	Model   string
	APIKey  string
}

type OllamaConfig struct {
	BaseURL string
}

type NotesConfig struct {
	CPath      string
	PythonPath string
	Watch      bool
}

type TutorConfig struct {
	LanguageScope string
	MaxProfiles   int
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:     8000,
			MaxConns: 256,
		},
		Provider: ProviderConfig{
			Kind:    ProviderCloud,
			BaseURL: "https://api.groq.com/openai/v1",
			Model:   "llama-3.1-8b-instant",
		},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
		},
		Notes: NotesConfig{
			CPath:      "notes.txt",
			PythonPath: "python.txt",
			Watch:      true,
		},
		Tutor: TutorConfig{
			LanguageScope: "per-user",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.tutord.app) and secrets
// fall back to macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/tutord/config.json
// and secrets come from environment variables or the secrets file.
//
// Environment variables (TUTORD_*) override backend values on all platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts Keychain access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)
	applySecrets(&cfg, kc)

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	switch cfg.Provider.Kind {
	case ProviderCloud:
		if cfg.Provider.APIKey == "" {
			return fmt.Errorf("missing required config: provider API key. "+
				"Set it via environment variable TUTORD_PROVIDER_API_KEY or GROQ_API_KEY%s, "+
				"or switch to a local model with provider.kind=%s", apiKeyHint(), ProviderOllama)
		}
	case ProviderOllama:
	default:
		return fmt.Errorf("invalid provider.kind %q (want %q or %q)", cfg.Provider.Kind, ProviderCloud, ProviderOllama)
	}

	switch cfg.Tutor.LanguageScope {
	case "per-user", "global":
	default:
		return fmt.Errorf("invalid tutor.language_scope %q (want per-user or global)", cfg.Tutor.LanguageScope)
	}
	if cfg.Tutor.MaxProfiles < 0 {
		return fmt.Errorf("tutor.max_profiles must not be negative")
	}
	if cfg.Server.MaxConns < 0 {
		return fmt.Errorf("server.max_conns must not be negative")
	}
	return nil
}

// keychainReader reads secrets from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
