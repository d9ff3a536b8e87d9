package mentor

// Language is a target programming language for tutoring answers.
// The zero value means no language has been chosen.
type Language string

const (
	LanguageNone   Language = ""
	LanguageC      Language = "c"
	LanguagePython Language = "python"
)

// Label returns the human-readable language name used in prompts.
func (l Language) Label() string {
	switch l {
	case LanguagePython:
		return "Python"
	case LanguageC:
		return "C"
	default:
		return ""
	}
}

// Profile is the accumulated learning style of one user.
// Boolean fields only ever move from false to true; LanguageStyle tracks the
// most recent explicit language request.
type Profile struct {
	NeedsSimpleExplanation bool     `json:"needs_simple_explanation"`
	PrefersCode            bool     `json:"prefers_code"`
	PrefersTheory          bool     `json:"prefers_theory"`
	LanguageStyle          Language `json:"language_style,omitempty"`
}

// Signal holds what was detected in a single message. Fields mirror Profile
// but describe this turn only.
type Signal struct {
	NeedsSimpleExplanation bool
	PrefersCode            bool
	PrefersTheory          bool
	LanguageStyle          Language
}

// Merged returns a copy of p with s folded in. p is left untouched.
func (p Profile) Merged(s Signal) Profile {
	p.merge(s)
	return p
}

// merge folds s into p: flags are OR-ed, language overwrites when set.
func (p *Profile) merge(s Signal) {
	p.NeedsSimpleExplanation = p.NeedsSimpleExplanation || s.NeedsSimpleExplanation
	p.PrefersCode = p.PrefersCode || s.PrefersCode
	p.PrefersTheory = p.PrefersTheory || s.PrefersTheory
	if s.LanguageStyle != LanguageNone {
		p.LanguageStyle = s.LanguageStyle
	}
}
