package tutor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/kalambet/tutord/internal/engine"
	"github.com/kalambet/tutord/internal/mentor"
	"github.com/kalambet/tutord/internal/notes"
	"github.com/kalambet/tutord/internal/routing"
)

type call struct {
	messages    []engine.Message
	temperature float64
}

type mockProvider struct {
	mu    sync.Mutex
	calls []call
	reply string
	err   error
}

func (m *mockProvider) Complete(_ context.Context, msgs []engine.Message, temp float64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call{messages: msgs, temperature: temp})
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func (m *mockProvider) Model() string { return "mock-model" }

func (m *mockProvider) last(t *testing.T) call {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		t.Fatal("provider was not called")
	}
	return m.calls[len(m.calls)-1]
}

type mockRecorder struct {
	mu    sync.Mutex
	turns []Turn
	err   error
}

func (r *mockRecorder) RecordTurn(_ context.Context, t Turn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns = append(r.turns, t)
	return r.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, p *mockProvider, opts Options) *Engine {
	t.Helper()
	opts.Logger = quietLogger()
	return New(p, mentor.NewStore(0), nil, opts)
}

func writeNotes(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestHandleTurn_Scenario(t *testing.T) {
	p := &mockProvider{reply: "A stack is a pile of plates."}
	e := newTestEngine(t, p, Options{})

	msg := "explain in simple terms, python code for stacks"
	reply, err := e.HandleTurn(context.Background(), "u1", msg)
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	want := Reply{
		Text:        "A stack is a pile of plates.",
		Language:    mentor.LanguagePython,
		Temperature: 0.2,
		Tier:        routing.TierStructures,
	}
	if diff := cmp.Diff(want, reply); diff != "" {
		t.Errorf("reply mismatch (-want +got):\n%s", diff)
	}

	c := p.last(t)
	if c.temperature != 0.2 {
		t.Errorf("temperature = %v, want 0.2", c.temperature)
	}
	if len(c.messages) != 2 || c.messages[0].Role != engine.RoleSystem || c.messages[1].Role != engine.RoleUser {
		t.Fatalf("messages = %+v", c.messages)
	}
	wantInstr := "MENTOR INSTRUCTIONS:\n" +
		"Explain concepts in very simple language, step by step.\n" +
		"Focus more on code examples than long theory.\n" +
		"Use Python-style explanations suitable for beginners."
	if !strings.HasSuffix(c.messages[0].Content, wantInstr) {
		t.Errorf("system prompt does not end with mentor block:\n%s", c.messages[0].Content)
	}
	if c.messages[1].Content != "(Language: Python) "+msg {
		t.Errorf("user prompt = %q", c.messages[1].Content)
	}
}

func TestHandleTurn_NoInstructionsForNeutralMessage(t *testing.T) {
	p := &mockProvider{reply: "ok"}
	e := newTestEngine(t, p, Options{})

	if _, err := e.HandleTurn(context.Background(), "u1", "hello there"); err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	c := p.last(t)
	if strings.Contains(c.messages[0].Content, "MENTOR INSTRUCTIONS") {
		t.Error("system prompt should not carry a mentor block")
	}
	if c.messages[1].Content != "(Language: C) hello there" {
		t.Errorf("user prompt = %q", c.messages[1].Content)
	}
}

func TestHandleTurn_LanguageFallbackPerUser(t *testing.T) {
	p := &mockProvider{reply: "ok"}
	e := newTestEngine(t, p, Options{})
	ctx := context.Background()

	if r, _ := e.HandleTurn(ctx, "u1", "write this in python"); r.Language != mentor.LanguagePython {
		t.Fatalf("first turn language = %q", r.Language)
	}
	if r, _ := e.HandleTurn(ctx, "u1", "what about loops?"); r.Language != mentor.LanguagePython {
		t.Errorf("u1 follow-up language = %q, want python", r.Language)
	}
	if r, _ := e.HandleTurn(ctx, "u2", "what about loops?"); r.Language != mentor.LanguageC {
		t.Errorf("u2 language = %q, want c (no leak across users)", r.Language)
	}
	if got := e.LastLanguage("u1"); got != mentor.LanguagePython {
		t.Errorf("LastLanguage(u1) = %q", got)
	}
}

func TestHandleTurn_LanguageFallbackGlobal(t *testing.T) {
	p := &mockProvider{reply: "ok"}
	e := newTestEngine(t, p, Options{LanguageScope: ScopeGlobal})
	ctx := context.Background()

	e.HandleTurn(ctx, "u1", "write this in python")
	r, err := e.HandleTurn(ctx, "u2", "what about loops?")
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if r.Language != mentor.LanguagePython {
		t.Errorf("u2 language = %q, want python from shared slot", r.Language)
	}
}

func TestHandleTurn_BlankMessageReachesProvider(t *testing.T) {
	p := &mockProvider{reply: "ok"}
	e := newTestEngine(t, p, Options{})

	reply, err := e.HandleTurn(context.Background(), "u1", "   ")
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if reply.Text != "ok" {
		t.Errorf("reply = %q, want ok", reply.Text)
	}
	if reply.Language != mentor.LanguageC || reply.Temperature != 0.2 {
		t.Errorf("defaults = %s/%v, want c/0.2", reply.Language, reply.Temperature)
	}
	if got := p.last(t).temperature; got != 0.2 {
		t.Errorf("provider temperature = %v, want 0.2", got)
	}
}

var errUpstream = errors.New("upstream timeout")

func TestHandleTurn_ProviderError(t *testing.T) {
	p := &mockProvider{err: errUpstream}
	rec := &mockRecorder{}
	e := newTestEngine(t, p, Options{Recorder: rec})

	_, err := e.HandleTurn(context.Background(), "u1", "python example please")
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %T %v, want *ProviderError", err, err)
	}
	if !errors.Is(err, errUpstream) {
		t.Error("ProviderError should unwrap to the provider's error")
	}
	if pe.Model != "mock-model" {
		t.Errorf("Model = %q", pe.Model)
	}
	if len(rec.turns) != 0 {
		t.Error("failed turns must not be recorded")
	}
	// State updates before the provider call stand.
	prof, ok := e.Profiles().Get("u1")
	if !ok || !prof.PrefersCode || prof.LanguageStyle != mentor.LanguagePython {
		t.Errorf("profile = %+v, %v", prof, ok)
	}
	if e.LastLanguage("u1") != mentor.LanguagePython {
		t.Errorf("LastLanguage = %q", e.LastLanguage("u1"))
	}
}

func TestHandleTurn_RecordsTurn(t *testing.T) {
	p := &mockProvider{reply: "fixed"}
	rec := &mockRecorder{}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	e := newTestEngine(t, p, Options{Recorder: rec, Now: func() time.Time { return at }})

	if _, err := e.HandleTurn(context.Background(), "u1", "fix this segfault in c"); err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	want := []Turn{{
		UserKey:     "u1",
		Message:     "fix this segfault in c",
		Reply:       "fixed",
		Language:    mentor.LanguageC,
		Temperature: 0.1,
		Tier:        routing.TierDebug,
		Model:       "mock-model",
		At:          at,
	}}
	if diff := cmp.Diff(want, rec.turns); diff != "" {
		t.Errorf("recorded turns mismatch (-want +got):\n%s", diff)
	}
}

func TestHandleTurn_RecorderFailureDoesNotFailTurn(t *testing.T) {
	p := &mockProvider{reply: "ok"}
	e := newTestEngine(t, p, Options{Recorder: &mockRecorder{err: errors.New("disk full")}})

	r, err := e.HandleTurn(context.Background(), "u1", "hi")
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if r.Text != "ok" {
		t.Errorf("reply = %q", r.Text)
	}
}

func TestPrepare_DoesNotMutateState(t *testing.T) {
	p := &mockProvider{reply: "ok"}
	e := newTestEngine(t, p, Options{})

	req := e.Prepare("u1", "simple python example")
	if req.Language != mentor.LanguagePython {
		t.Errorf("Language = %q", req.Language)
	}
	if !strings.Contains(req.SystemPrompt, "Explain concepts in very simple language, step by step.") {
		t.Error("preview should include instructions derived from the message")
	}
	if e.Profiles().Len() != 0 {
		t.Error("Prepare must not create a profile")
	}
	if e.LastLanguage("u1") != mentor.LanguageNone {
		t.Error("Prepare must not update the language fallback")
	}
	if len(p.calls) != 0 {
		t.Error("Prepare must not call the provider")
	}
}

func TestReloadCorpus_SwapsTemplate(t *testing.T) {
	dir := t.TempDir()
	cPath := writeNotes(t, dir, "notes.txt", "old c notes")
	pyPath := writeNotes(t, dir, "python.txt", "old python notes")

	p := &mockProvider{reply: "ok"}
	e := New(p, mentor.NewStore(0), notes.NewLoader(cPath, pyPath), Options{Logger: quietLogger()})

	before := e.Template()
	if !strings.Contains(before.Base, "old c notes") {
		t.Fatalf("initial template missing C notes")
	}

	writeNotes(t, dir, "notes.txt", "new c notes")
	status, err := e.ReloadCorpus(context.Background())
	if err != nil {
		t.Fatalf("ReloadCorpus: %v", err)
	}
	if status.Status != "notes reloaded" {
		t.Errorf("Status = %q", status.Status)
	}
	if len(status.Missing) != 0 {
		t.Errorf("Missing = %v", status.Missing)
	}

	after := e.Template()
	if after == before {
		t.Fatal("template pointer was not swapped")
	}
	if !strings.Contains(after.Base, "new c notes") || strings.Contains(after.Base, "old c notes") {
		t.Error("reloaded template does not carry the new notes")
	}
	if !strings.Contains(before.Base, "old c notes") {
		t.Error("previous template must stay intact")
	}

	e.HandleTurn(context.Background(), "u1", "hi")
	if !strings.Contains(p.last(t).messages[0].Content, "new c notes") {
		t.Error("turn after reload should use the new notes")
	}
}

func TestReloadCorpus_MissingSourceDegrades(t *testing.T) {
	dir := t.TempDir()
	cPath := writeNotes(t, dir, "notes.txt", "c notes")

	e := New(&mockProvider{}, nil, notes.NewLoader(cPath, filepath.Join(dir, "python.txt")), Options{Logger: quietLogger()})

	status, err := e.ReloadCorpus(context.Background())
	if err != nil {
		t.Fatalf("ReloadCorpus: %v", err)
	}
	if diff := cmp.Diff([]string{notes.SourcePython}, status.Missing); diff != "" {
		t.Errorf("Missing mismatch (-want +got):\n%s", diff)
	}
	if e.Template().Corpus.PyStyle != "" {
		t.Error("missing source should render as empty")
	}
	if !strings.Contains(e.Template().Base, "PYTHON DSA STYLE REFERENCE") {
		t.Error("section header should still be present")
	}
}

func TestReloadCorpus_CancelledContext(t *testing.T) {
	e := newTestEngine(t, &mockProvider{}, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.ReloadCorpus(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestHandleTurn_ConcurrentSameUser(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := &mockProvider{reply: "ok"}
	e := newTestEngine(t, p, Options{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			e.HandleTurn(ctx, "u1", fmt.Sprintf("python example %d", i))
		}()
		go func() {
			defer wg.Done()
			e.HandleTurn(ctx, "u1", fmt.Sprintf("/c theory %d", i))
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range 10 {
			e.ReloadCorpus(ctx)
		}
	}()
	wg.Wait()

	prof, ok := e.Profiles().Get("u1")
	if !ok {
		t.Fatal("profile missing")
	}
	if !prof.PrefersCode || !prof.PrefersTheory {
		t.Errorf("flags lost under concurrency: %+v", prof)
	}
	if prof.LanguageStyle != mentor.LanguagePython && prof.LanguageStyle != mentor.LanguageC {
		t.Errorf("LanguageStyle = %q", prof.LanguageStyle)
	}
	if got := e.LastLanguage("u1"); got != mentor.LanguagePython && got != mentor.LanguageC {
		t.Errorf("LastLanguage = %q", got)
	}
	if len(p.calls) != 100 {
		t.Errorf("provider calls = %d, want 100", len(p.calls))
	}
}

func TestHandleTurn_PrunesLanguagesOfEvictedProfiles(t *testing.T) {
	p := &mockProvider{reply: "ok"}
	e := New(p, mentor.NewStore(1), nil, Options{MaxLanguages: 1, Logger: quietLogger()})
	ctx := context.Background()

	e.HandleTurn(ctx, "u1", "write this in python")
	e.HandleTurn(ctx, "u2", "hello")

	if got := e.LastLanguage("u1"); got != mentor.LanguageNone {
		t.Errorf("LastLanguage(u1) = %q, want pruned", got)
	}
	if got := e.LastLanguage("u2"); got != mentor.LanguageC {
		t.Errorf("LastLanguage(u2) = %q, want c", got)
	}
}

func TestParseLanguageScope(t *testing.T) {
	tests := []struct {
		in      string
		want    LanguageScope
		wantErr bool
	}{
		{"", ScopePerUser, false},
		{"per-user", ScopePerUser, false},
		{"global", ScopeGlobal, false},
		{"team", "", true},
	}
	for _, tt := range tests {
		got, err := ParseLanguageScope(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLanguageScope(%q) err = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLanguageScope(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
