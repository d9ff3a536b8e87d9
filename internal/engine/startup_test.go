package engine

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

type mockEngine struct {
	isRunning bool
	model     string
}

func (m *mockEngine) Complete(_ context.Context, _ []Message, _ float64) (string, error) {
	return "", nil
}
func (m *mockEngine) IsRunning(_ context.Context) bool { return m.isRunning }
func (m *mockEngine) Model() string                    { return m.model }

type mockManaged struct {
	mockEngine
	models  map[string]bool
	pulled  []string
	pullErr error
}

func (m *mockManaged) HasModel(_ context.Context, name string) bool { return m.models[name] }
func (m *mockManaged) PullModel(_ context.Context, name string, cb func(PullProgress)) error {
	m.pulled = append(m.pulled, name)
	if m.pullErr != nil {
		return m.pullErr
	}
	if cb != nil {
		cb(PullProgress{Status: "downloading", Total: 10, Completed: 5})
		cb(PullProgress{Status: "success"})
	}
	return nil
}

func TestEnsureReady_Remote(t *testing.T) {
	var buf bytes.Buffer
	err := EnsureReady(context.Background(), &mockEngine{isRunning: true, model: "llama-3.1-8b-instant"}, &buf)
	if err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	if !strings.Contains(buf.String(), "remote") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestEnsureReady_NotRunning(t *testing.T) {
	err := EnsureReady(context.Background(), &mockEngine{model: "x"}, io.Discard)
	if err == nil {
		t.Fatal("expected error when backend is down")
	}
}

func TestEnsureReady_ModelPresent(t *testing.T) {
	m := &mockManaged{
		mockEngine: mockEngine{isRunning: true, model: "llama3.1"},
		models:     map[string]bool{"llama3.1": true},
	}
	if err := EnsureReady(context.Background(), m, io.Discard); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	if len(m.pulled) != 0 {
		t.Errorf("expected no pulls, got %v", m.pulled)
	}
}

func TestEnsureReady_PullsMissing(t *testing.T) {
	m := &mockManaged{
		mockEngine: mockEngine{isRunning: true, model: "llama3.1"},
		models:     map[string]bool{},
	}
	var buf bytes.Buffer
	if err := EnsureReady(context.Background(), m, &buf); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	if len(m.pulled) != 1 || m.pulled[0] != "llama3.1" {
		t.Errorf("pulled = %v, want [llama3.1]", m.pulled)
	}
	if !strings.Contains(buf.String(), "downloading 50%") {
		t.Errorf("output = %q, want progress line", buf.String())
	}
}

func TestEnsureReady_PullError(t *testing.T) {
	m := &mockManaged{
		mockEngine: mockEngine{isRunning: true, model: "llama3.1"},
		models:     map[string]bool{},
		pullErr:    errors.New("disk full"),
	}
	err := EnsureReady(context.Background(), m, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("err = %v, want pull error", err)
	}
}
