package engine

import (
	"context"
	"fmt"
	"io"
)

// EnsureReady checks that the Engine is reachable. Backends that manage
// local models get the configured model pulled when it is missing, with
// progress output written to w.
func EnsureReady(ctx context.Context, e Engine, w io.Writer) error {
	if !e.IsRunning(ctx) {
		return fmt.Errorf("completion backend is not reachable; check the provider settings")
	}

	mm, ok := e.(ModelManager)
	if !ok {
		fmt.Fprintf(w, "model %s: remote\n", e.Model())
		return nil
	}

	model := e.Model()
	if mm.HasModel(ctx, model) {
		fmt.Fprintf(w, "model %s: ready\n", model)
		return nil
	}

	fmt.Fprintf(w, "model %s: pulling...\n", model)
	err := mm.PullModel(ctx, model, func(p PullProgress) {
		if p.Total > 0 {
			pct := float64(p.Completed) / float64(p.Total) * 100
			fmt.Fprintf(w, "  %s %.0f%%\n", p.Status, pct)
		} else {
			fmt.Fprintf(w, "  %s\n", p.Status)
		}
	})
	if err != nil {
		return fmt.Errorf("pulling model %s: %w", model, err)
	}
	fmt.Fprintf(w, "model %s: ready\n", model)
	return nil
}
