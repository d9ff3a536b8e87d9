package config

import (
	"fmt"
	"os"
	"strconv"
)

// secretService is the keychain service name secrets are stored under.
const secretService = "tutord"

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	altEnv  string // legacy variable consulted when env is unset
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "TUTORD_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.max_conns", typ: kInt, env: "TUTORD_SERVER_MAX_CONNS",
		apply:   func(cfg *Config, v any) { cfg.Server.MaxConns = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.MaxConns },
	},
	{
		key: "server.admin_key", typ: kString, env: "TUTORD_ADMIN_KEY", altEnv: "ADMIN_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.AdminKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.AdminKey },
	},
	{
		key: "provider.kind", typ: kString, env: "TUTORD_PROVIDER_KIND",
		apply:   func(cfg *Config, v any) { cfg.Provider.Kind = v.(string) },
		extract: func(cfg Config) any { return cfg.Provider.Kind },
	},
	{
		key: "provider.base_url", typ: kString, env: "TUTORD_PROVIDER_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Provider.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Provider.BaseURL },
	},
	{
		key: "provider.model", typ: kString, env: "TUTORD_PROVIDER_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Provider.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Provider.Model },
	},
	{
		key: "provider.api_key", typ: kString, env: "TUTORD_PROVIDER_API_KEY", altEnv: "GROQ_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Provider.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Provider.APIKey },
	},
	{
		key: "ollama.base_url", typ: kString, env: "TUTORD_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "notes.c_path", typ: kString, env: "TUTORD_NOTES_C_PATH",
		apply:   func(cfg *Config, v any) { cfg.Notes.CPath = v.(string) },
		extract: func(cfg Config) any { return cfg.Notes.CPath },
	},
	{
		key: "notes.python_path", typ: kString, env: "TUTORD_NOTES_PYTHON_PATH",
		apply:   func(cfg *Config, v any) { cfg.Notes.PythonPath = v.(string) },
		extract: func(cfg Config) any { return cfg.Notes.PythonPath },
	},
	{
		key: "notes.watch", typ: kBool, env: "TUTORD_NOTES_WATCH",
		apply:   func(cfg *Config, v any) { cfg.Notes.Watch = v.(bool) },
		extract: func(cfg Config) any { return cfg.Notes.Watch },
	},
	{
		key: "tutor.language_scope", typ: kString, env: "TUTORD_TUTOR_LANGUAGE_SCOPE",
		apply:   func(cfg *Config, v any) { cfg.Tutor.LanguageScope = v.(string) },
		extract: func(cfg Config) any { return cfg.Tutor.LanguageScope },
	},
	{
		key: "tutor.max_profiles", typ: kInt, env: "TUTORD_TUTOR_MAX_PROFILES",
		apply:   func(cfg *Config, v any) { cfg.Tutor.MaxProfiles = v.(int) },
		extract: func(cfg Config) any { return cfg.Tutor.MaxProfiles },
	},
	{
		key: "storage.data_dir", typ: kString, env: "TUTORD_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "TUTORD_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func lookupSpec(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func envValue(s keySpec) string {
	if v := os.Getenv(s.env); v != "" {
		return v
	}
	if s.altEnv != "" {
		return os.Getenv(s.altEnv)
	}
	return ""
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := envValue(s)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}

// applySecrets fills secrets still empty after env overrides from the keychain.
func applySecrets(cfg *Config, kc keychain) {
	for _, s := range specs {
		if !s.secret || s.extract(*cfg).(string) != "" {
			continue
		}
		if v, err := kc.Get(secretService, s.key); err == nil && v != "" {
			s.apply(cfg, v)
		}
	}
}
