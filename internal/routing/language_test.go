package routing

import (
	"testing"

	"github.com/kalambet/tutord/internal/mentor"
)

func TestSelectLanguage(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		fallback mentor.Language
		want     mentor.Language
	}{
		{"slash c", "/c reverse a string", mentor.LanguagePython, mentor.LanguageC},
		{"slash py", "/py reverse a string", mentor.LanguageC, mentor.LanguagePython},
		{"slash python", "/python reverse a string", mentor.LanguageNone, mentor.LanguagePython},
		{"slash beats phrase", "/c write it in python", mentor.LanguageNone, mentor.LanguageC},
		{"slash py beats phrase", "/py show it in c", mentor.LanguageNone, mentor.LanguagePython},
		{"leading whitespace trimmed", "   /python hello", mentor.LanguageC, mentor.LanguagePython},
		{"in python", "Sort a list in Python please", mentor.LanguageC, mentor.LanguagePython},
		{"trailing in python", "reverse a list in python", mentor.LanguageC, mentor.LanguagePython},
		{"python word", "show me python syntax", mentor.LanguageC, mentor.LanguagePython},
		{"in c", "write a queue in c", mentor.LanguagePython, mentor.LanguageC},
		{"in c language", "pointers in c language", mentor.LanguagePython, mentor.LanguageC},
		{"python phrase beats c phrase", "compare it in python and in c", mentor.LanguageNone, mentor.LanguagePython},
		{"python code compound", "python code for stacks", mentor.LanguageC, mentor.LanguagePython},
		{"c program compound", "give a c program for stacks", mentor.LanguagePython, mentor.LanguageC},
		{"no signal uses fallback python", "reverse a list", mentor.LanguagePython, mentor.LanguagePython},
		{"no signal uses fallback c", "reverse a list", mentor.LanguageC, mentor.LanguageC},
		{"no signal no fallback", "reverse a list", mentor.LanguageNone, mentor.LanguageC},
		{"empty message", "", mentor.LanguageNone, mentor.LanguageC},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SelectLanguage(tt.message, tt.fallback); got != tt.want {
				t.Errorf("SelectLanguage(%q, %q) = %q, want %q", tt.message, tt.fallback, got, tt.want)
			}
		})
	}
}

func TestSelectLanguage_FallbackForNeutralMessages(t *testing.T) {
	neutral := []string{
		"hello there",
		"tell me about loops",
		"what about arrays?",
		"how many bytes in an int",
	}
	for _, m := range neutral {
		for _, fb := range []mentor.Language{mentor.LanguageC, mentor.LanguagePython} {
			if got := SelectLanguage(m, fb); got != fb {
				t.Errorf("SelectLanguage(%q, %q) = %q, want fallback", m, fb, got)
			}
		}
		if got := SelectLanguage(m, mentor.LanguageNone); got != mentor.LanguageC {
			t.Errorf("SelectLanguage(%q, none) = %q, want c", m, got)
		}
	}
}
