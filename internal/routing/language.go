// Package routing picks the answer language and sampling temperature for a
// tutoring turn from plain text heuristics.
package routing

import (
	"strings"

	"github.com/kalambet/tutord/internal/mentor"
)

// languageRule maps a text predicate to a language. Rules are evaluated in
// slice order and the first match wins.
type languageRule struct {
	lang  mentor.Language
	match func(text string) bool
}

var languageRules = []languageRule{
	// Explicit slash commands.
	{mentor.LanguageC, prefix("/c")},
	{mentor.LanguagePython, prefix("/py", "/python")},

	// Phrases.
	{mentor.LanguagePython, func(text string) bool {
		return strings.Contains(text, " in python") ||
			strings.Contains(text, " python ") ||
			strings.HasSuffix(text, " in python")
	}},
	{mentor.LanguageC, func(text string) bool {
		return strings.Contains(text, " in c") ||
			strings.Contains(text, " in c language") ||
			strings.HasSuffix(text, " in c")
	}},

	// Compound phrases.
	{mentor.LanguagePython, contains("python code", "python program")},
	{mentor.LanguageC, contains("c code", "c program")},
}

// SelectLanguage resolves the target language for message. When no rule
// matches, fallback is returned, or C if fallback is unset.
func SelectLanguage(message string, fallback mentor.Language) mentor.Language {
	text := strings.TrimSpace(strings.ToLower(message))

	for _, r := range languageRules {
		if r.match(text) {
			return r.lang
		}
	}

	if fallback != mentor.LanguageNone {
		return fallback
	}
	return mentor.LanguageC
}

func prefix(ps ...string) func(string) bool {
	return func(text string) bool {
		for _, p := range ps {
			if strings.HasPrefix(text, p) {
				return true
			}
		}
		return false
	}
}

func contains(subs ...string) func(string) bool {
	return func(text string) bool {
		for _, s := range subs {
			if strings.Contains(text, s) {
				return true
			}
		}
		return false
	}
}
