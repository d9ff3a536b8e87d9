package mentor

import (
	"strings"
	"sync"
	"sync/atomic"
)

const (
	instrSimple = "Explain concepts in very simple language, step by step."
	instrCode   = "Focus more on code examples than long theory."
	instrTheory = "Explain theory clearly before showing code."
	instrPython = "Use Python-style explanations suitable for beginners."
	instrC      = "Use C-style explanations with simple variables and logic."
)

// entry guards one user's profile. Updates for different users never contend.
type entry struct {
	mu      sync.Mutex
	profile Profile
	touched uint64
	evicted bool
}

// Store holds learning profiles in memory, keyed by opaque user key.
type Store struct {
	maxProfiles int
	clock       atomic.Uint64

	mu      sync.RWMutex
	entries map[string]*entry
}

// NewStore creates a Store. maxProfiles bounds the number of retained
// profiles, evicting the least recently updated one when exceeded; 0 keeps
// every profile for the lifetime of the process.
func NewStore(maxProfiles int) *Store {
	if maxProfiles < 0 {
		maxProfiles = 0
	}
	return &Store{
		maxProfiles: maxProfiles,
		entries:     make(map[string]*entry),
	}
}

// Update merges sig into the profile for userKey, creating it if needed, and
// returns the profile as it stands after the merge.
func (s *Store) Update(userKey string, sig Signal) Profile {
	return s.updateEntry(userKey, s.entryFor(userKey), sig)
}

// updateEntry merges sig into e. If e was evicted before its lock was taken,
// the merge moves to the entry now stored under userKey.
func (s *Store) updateEntry(userKey string, e *entry, sig Signal) Profile {
	for {
		e.mu.Lock()
		if !e.evicted {
			e.profile.merge(sig)
			e.touched = s.clock.Add(1)
			p := e.profile
			e.mu.Unlock()
			return p
		}
		e.mu.Unlock()
		e = s.entryFor(userKey)
	}
}

// Get returns a copy of the profile for userKey.
func (s *Store) Get(userKey string) (Profile, bool) {
	s.mu.RLock()
	e, ok := s.entries[userKey]
	s.mu.RUnlock()
	if !ok {
		return Profile{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.profile, true
}

// Len reports how many profiles are held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// InstructionsFor renders the stored profile as mentor directives, one per
// line, in a fixed order. Returns "" for unknown users or empty profiles.
func (s *Store) InstructionsFor(userKey string) string {
	p, ok := s.Get(userKey)
	if !ok {
		return ""
	}
	return Instructions(p)
}

// Instructions renders p as newline-separated directive sentences.
func Instructions(p Profile) string {
	var lines []string
	if p.NeedsSimpleExplanation {
		lines = append(lines, instrSimple)
	}
	if p.PrefersCode {
		lines = append(lines, instrCode)
	}
	if p.PrefersTheory {
		lines = append(lines, instrTheory)
	}
	switch p.LanguageStyle {
	case LanguagePython:
		lines = append(lines, instrPython)
	case LanguageC:
		lines = append(lines, instrC)
	}
	return strings.Join(lines, "\n")
}

func (s *Store) entryFor(userKey string) *entry {
	s.mu.RLock()
	e, ok := s.entries[userKey]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock.
	if e, ok := s.entries[userKey]; ok {
		return e
	}
	e = &entry{touched: s.clock.Add(1)}
	s.entries[userKey] = e
	if s.maxProfiles > 0 && len(s.entries) > s.maxProfiles {
		s.evictLocked(userKey)
	}
	return e
}

// evictLocked drops the least recently updated profile other than keep.
// New entries carry a creation stamp, so one still waiting for its first
// update is not mistaken for the oldest. Caller must hold s.mu for writing.
func (s *Store) evictLocked(keep string) {
	var (
		victim string
		oldest uint64
		found  bool
	)
	for k, e := range s.entries {
		if k == keep {
			continue
		}
		e.mu.Lock()
		touched := e.touched
		e.mu.Unlock()
		if !found || touched < oldest {
			victim, oldest, found = k, touched, true
		}
	}
	if found {
		e := s.entries[victim]
		e.mu.Lock()
		e.evicted = true
		e.mu.Unlock()
		delete(s.entries, victim)
	}
}
