package tutor

import (
	"fmt"
	"sync"

	"github.com/kalambet/tutord/internal/mentor"
	"github.com/kalambet/tutord/internal/routing"
)

// LanguageScope controls who shares the "last selected language" fallback.
type LanguageScope string

const (
	// ScopePerUser keeps one fallback per user key.
	ScopePerUser LanguageScope = "per-user"
	// ScopeGlobal keeps a single process-wide fallback shared by all users.
	ScopeGlobal LanguageScope = "global"
)

// ParseLanguageScope validates a configured scope. Empty means per-user.
func ParseLanguageScope(s string) (LanguageScope, error) {
	switch LanguageScope(s) {
	case "", ScopePerUser:
		return ScopePerUser, nil
	case ScopeGlobal:
		return ScopeGlobal, nil
	default:
		return "", fmt.Errorf("unknown language scope %q (want %q or %q)", s, ScopePerUser, ScopeGlobal)
	}
}

// languageState remembers the last resolved language. Resolution reads and
// writes the fallback under one lock so concurrent turns never resolve
// against a half-written slot.
type languageState struct {
	scope LanguageScope

	mu      sync.Mutex
	global  mentor.Language
	perUser map[string]mentor.Language
}

func newLanguageState(scope LanguageScope) *languageState {
	return &languageState{
		scope:   scope,
		perUser: make(map[string]mentor.Language),
	}
}

func (s *languageState) fallbackLocked(userKey string) mentor.Language {
	if s.scope == ScopeGlobal {
		return s.global
	}
	return s.perUser[userKey]
}

// last returns the current fallback for userKey without changing it.
func (s *languageState) last(userKey string) mentor.Language {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fallbackLocked(userKey)
}

// resolve selects the language for message and records it as the new fallback.
func (s *languageState) resolve(userKey, message string) mentor.Language {
	s.mu.Lock()
	defer s.mu.Unlock()

	lang := routing.SelectLanguage(message, s.fallbackLocked(userKey))
	if s.scope == ScopeGlobal {
		s.global = lang
	} else {
		s.perUser[userKey] = lang
	}
	return lang
}

// prune drops per-user fallbacks for which keep returns false. It is a no-op
// below limit entries.
func (s *languageState) prune(limit int, keep func(userKey string) bool) {
	if limit <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.perUser) <= limit {
		return
	}
	for k := range s.perUser {
		if !keep(k) {
			delete(s.perUser, k)
		}
	}
}
