package mentor

import "strings"

var (
	simpleKeywords = []string{"simple", "easy", "basic", "explain like", "beginner"}
	codeKeywords   = []string{"code", "program", "example", "implementation"}
	theoryKeywords = []string{"theory", "definition", "concept"}
)

// Extract detects learning-style signals in a single message. Matching is
// case-insensitive substring membership; categories may overlap.
func Extract(message string) Signal {
	text := strings.ToLower(message)

	sig := Signal{
		NeedsSimpleExplanation: containsAny(text, simpleKeywords),
		PrefersCode:            containsAny(text, codeKeywords),
		PrefersTheory:          containsAny(text, theoryKeywords),
	}

	switch {
	case strings.Contains(text, "python"):
		sig.LanguageStyle = LanguagePython
	case strings.HasPrefix(text, "/c") || strings.Contains(text, " in c"):
		sig.LanguageStyle = LanguageC
	}

	return sig
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
