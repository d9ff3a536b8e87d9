// Package tutor runs one tutoring turn: it learns the user's style from the
// message, picks the answer language and sampling temperature, composes the
// prompts and asks the completion provider for the reply.
package tutor

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/kalambet/tutord/internal/composer"
	"github.com/kalambet/tutord/internal/engine"
	"github.com/kalambet/tutord/internal/mentor"
	"github.com/kalambet/tutord/internal/routing"
)

// Completer is the completion backend a turn is sent to.
type Completer interface {
	Complete(ctx context.Context, messages []engine.Message, temperature float64) (string, error)
	Model() string
}

// Turn is one completed exchange, handed to the Recorder.
type Turn struct {
	UserKey     string
	Message     string
	Reply       string
	Language    mentor.Language
	Temperature float64
	Tier        routing.Tier
	Model       string
	At          time.Time
}

// Recorder persists completed turns. Failures are logged and never fail the turn.
type Recorder interface {
	RecordTurn(ctx context.Context, t Turn) error
}

// Request is the envelope sent to the provider for one turn.
type Request struct {
	SystemPrompt string          `json:"system_prompt"`
	UserPrompt   string          `json:"user_prompt"`
	Temperature  float64         `json:"temperature"`
	Language     mentor.Language `json:"language"`
	Tier         routing.Tier    `json:"tier"`
	Instructions string          `json:"instructions,omitempty"`
}

// Messages returns the [system, user] pair for the provider.
func (r Request) Messages() []engine.Message {
	return []engine.Message{
		{Role: engine.RoleSystem, Content: r.SystemPrompt},
		{Role: engine.RoleUser, Content: r.UserPrompt},
	}
}

// Reply is the outcome of a successful turn.
type Reply struct {
	Text        string          `json:"reply"`
	Language    mentor.Language `json:"language"`
	Temperature float64         `json:"temperature"`
	Tier        routing.Tier    `json:"tier"`
}

// Options configures an Engine.
type Options struct {
	// LanguageScope selects per-user (default) or process-wide language fallback.
	LanguageScope LanguageScope
	// Recorder, if set, receives every successful turn.
	Recorder Recorder
	// MaxLanguages bounds the per-user fallback table; entries whose profile
	// is gone from the store are pruned once the bound is exceeded. 0 disables pruning.
	MaxLanguages int
	Logger       *slog.Logger
	Now          func() time.Time
}

// Engine owns the tutoring policy state: the profile store, the language
// fallback and the current prompt template. It is safe for concurrent use.
type Engine struct {
	provider  Completer
	profiles  *mentor.Store
	loader    CorpusLoader
	languages *languageState
	recorder  Recorder
	maxLangs  int
	logger    *slog.Logger
	now       func() time.Time

	template atomic.Pointer[composer.Template]
}

// New creates an Engine and performs the initial corpus load. A nil loader
// serves an empty corpus.
func New(provider Completer, profiles *mentor.Store, loader CorpusLoader, opts Options) *Engine {
	if profiles == nil {
		profiles = mentor.NewStore(0)
	}
	if loader == nil {
		loader = emptyLoader{}
	}
	scope := opts.LanguageScope
	if scope == "" {
		scope = ScopePerUser
	}
	e := &Engine{
		provider:  provider,
		profiles:  profiles,
		loader:    loader,
		languages: newLanguageState(scope),
		recorder:  opts.Recorder,
		maxLangs:  opts.MaxLanguages,
		logger:    opts.Logger,
		now:       opts.Now,
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.now == nil {
		e.now = time.Now
	}

	tmpl, missing := e.loadTemplate()
	e.template.Store(tmpl)
	if len(missing) > 0 {
		e.logger.Warn("style corpus incomplete", "missing", missing)
	}
	return e
}

// Profiles exposes the profile store.
func (e *Engine) Profiles() *mentor.Store { return e.profiles }

// Profile returns a copy of userKey's learning profile.
func (e *Engine) Profile(userKey string) (mentor.Profile, bool) {
	return e.profiles.Get(userKey)
}

// LastLanguage returns the fallback language the next neutral message from
// userKey would resolve against.
func (e *Engine) LastLanguage(userKey string) mentor.Language {
	return e.languages.last(userKey)
}

// Prepare builds the envelope a turn from userKey would send, without
// touching the profile store or the language fallback.
func (e *Engine) Prepare(userKey, message string) Request {
	sig := mentor.Extract(message)
	current, _ := e.profiles.Get(userKey)
	profile := current.Merged(sig)
	decision := routing.Classify(message, e.languages.last(userKey))
	return e.compose(profile, decision, message)
}

// HandleTurn runs a full tutoring turn for userKey and returns the provider's
// text verbatim. Every message is accepted, including blank ones; the only
// failure is the provider's. That failure comes back as *ProviderError, which
// wraps the provider's error unchanged: match it with errors.Is or errors.As,
// not ==. The profile and language updates made before the call are kept.
func (e *Engine) HandleTurn(ctx context.Context, userKey, message string) (Reply, error) {
	profile := e.profiles.Update(userKey, mentor.Extract(message))
	lang := e.languages.resolve(userKey, message)
	tier, temp := routing.ClassifyTemperature(message)
	e.languages.prune(e.maxLangs, func(k string) bool {
		_, ok := e.profiles.Get(k)
		return ok
	})

	req := e.compose(profile, routing.Decision{Language: lang, Temperature: temp, Tier: tier}, message)

	e.logger.Debug("tutor turn",
		"user", userKey,
		"language", req.Language,
		"temperature", req.Temperature,
		"tier", req.Tier,
		"instructions", req.Instructions != "",
		"prompt_tokens", composer.EstimateTokens(req.SystemPrompt)+composer.EstimateTokens(req.UserPrompt),
	)

	text, err := e.provider.Complete(ctx, req.Messages(), req.Temperature)
	if err != nil {
		e.logger.Error("chat turn failed", "user", userKey, "model", e.provider.Model(), "error", err)
		var pe *ProviderError
		if errors.As(err, &pe) {
			return Reply{}, err
		}
		return Reply{}, &ProviderError{Model: e.provider.Model(), Err: err}
	}

	reply := Reply{Text: text, Language: req.Language, Temperature: req.Temperature, Tier: req.Tier}
	e.record(ctx, Turn{
		UserKey:     userKey,
		Message:     message,
		Reply:       text,
		Language:    req.Language,
		Temperature: req.Temperature,
		Tier:        req.Tier,
		Model:       e.provider.Model(),
		At:          e.now(),
	})
	return reply, nil
}

func (e *Engine) compose(profile mentor.Profile, d routing.Decision, message string) Request {
	instr := mentor.Instructions(profile)
	tmpl := e.template.Load()
	return Request{
		SystemPrompt: composer.BuildSystemPrompt(tmpl.Base, instr),
		UserPrompt:   composer.BuildUserPrompt(d.Language, message),
		Temperature:  d.Temperature,
		Language:     d.Language,
		Tier:         d.Tier,
		Instructions: instr,
	}
}

func (e *Engine) record(ctx context.Context, t Turn) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.RecordTurn(ctx, t); err != nil {
		e.logger.Warn("failed to record turn", "user", t.UserKey, "error", err)
	}
}
