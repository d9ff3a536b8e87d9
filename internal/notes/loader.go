// Package notes reads the style reference notes the tutor imitates and
// watches them for changes.
package notes

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kalambet/tutord/internal/composer"
)

// Logical source names.
const (
	SourceC      = "c"
	SourcePython = "python"
)

// Loader resolves logical note names to files on disk. Plain text files are
// read verbatim; files ending in .pdf have their text extracted.
type Loader struct {
	paths  map[string]string
	logger *slog.Logger
}

// NewLoader creates a Loader for the C and Python style notes.
func NewLoader(cPath, pythonPath string) *Loader {
	return &Loader{
		paths: map[string]string{
			SourceC:      cPath,
			SourcePython: pythonPath,
		},
		logger: slog.Default(),
	}
}

// Paths returns the configured file paths in a stable order (C, Python).
func (l *Loader) Paths() []string {
	return []string{l.paths[SourceC], l.paths[SourcePython]}
}

// ReadText returns the contents of the named source. A missing or unreadable
// source yields "" and a logged warning; it never fails.
func (l *Loader) ReadText(name string) string {
	text, err := l.read(name)
	if err != nil {
		l.warn(name, err)
		return ""
	}
	return text
}

// Load reads both sources into a Corpus. missing lists the logical names that
// degraded to an empty section.
func (l *Loader) Load() (c composer.Corpus, missing []string) {
	var err error
	if c.CStyle, err = l.read(SourceC); err != nil {
		l.warn(SourceC, err)
		missing = append(missing, SourceC)
	}
	if c.PyStyle, err = l.read(SourcePython); err != nil {
		l.warn(SourcePython, err)
		missing = append(missing, SourcePython)
	}
	return c, missing
}

func (l *Loader) read(name string) (string, error) {
	path, ok := l.paths[name]
	if !ok || path == "" {
		return "", fmt.Errorf("no path configured for %q: %w", name, fs.ErrNotExist)
	}
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return readPDF(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (l *Loader) warn(name string, err error) {
	path := l.paths[name]
	if errors.Is(err, fs.ErrNotExist) {
		l.logger.Warn("style file not found", "source", name, "path", path)
		return
	}
	l.logger.Warn("style file unreadable", "source", name, "path", path, "error", err)
}

func readPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	rd, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}
	b, err := io.ReadAll(rd)
	if err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}
