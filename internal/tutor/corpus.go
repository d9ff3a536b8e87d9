package tutor

import (
	"context"
	"time"

	"github.com/kalambet/tutord/internal/composer"
)

// StatusReloaded is the status reported after a successful corpus reload.
const StatusReloaded = "notes reloaded"

// CorpusLoader reads the style reference notes. Missing sources are reported
// by name and come back as empty text.
type CorpusLoader interface {
	Load() (composer.Corpus, []string)
}

// ReloadStatus describes the outcome of ReloadCorpus.
type ReloadStatus struct {
	Status   string    `json:"status"`
	Missing  []string  `json:"missing,omitempty"`
	LoadedAt time.Time `json:"loaded_at"`
}

// ReloadCorpus re-reads both style sources and swaps in a freshly rendered
// template. Turns already in flight keep the template they started with.
func (e *Engine) ReloadCorpus(ctx context.Context) (ReloadStatus, error) {
	if err := ctx.Err(); err != nil {
		return ReloadStatus{}, err
	}
	tmpl, missing := e.loadTemplate()
	e.template.Store(tmpl)

	e.logger.Info("style corpus reloaded",
		"c_chars", len(tmpl.Corpus.CStyle),
		"python_chars", len(tmpl.Corpus.PyStyle),
		"missing", missing,
	)
	return ReloadStatus{Status: StatusReloaded, Missing: missing, LoadedAt: tmpl.LoadedAt}, nil
}

// Template returns the template currently used to build system prompts.
func (e *Engine) Template() *composer.Template {
	return e.template.Load()
}

func (e *Engine) loadTemplate() (*composer.Template, []string) {
	corpus, missing := e.loader.Load()
	return composer.NewTemplate(corpus, e.now()), missing
}

// emptyLoader serves an empty corpus when no loader is configured.
type emptyLoader struct{}

func (emptyLoader) Load() (composer.Corpus, []string) { return composer.Corpus{}, nil }
