package composer

import (
	"strings"
	"time"

	"github.com/kalambet/tutord/internal/mentor"
)

const (
	cSectionHeader  = "===== C DSA STYLE REFERENCE (DO NOT REPEAT VERBATIM) ====="
	cSectionFooter  = "=========================================================="
	pySectionHeader = "===== PYTHON DSA STYLE REFERENCE (DO NOT REPEAT VERBATIM) ====="
	pySectionFooter = "==============================================================="

	mentorHeader = "MENTOR INSTRUCTIONS:"
)

// Corpus is the pair of style reference texts the tutor imitates.
type Corpus struct {
	CStyle  string
	PyStyle string
}

// Template is an immutable, fully rendered static system prompt. A new
// Template is built on every corpus reload and never modified afterwards.
type Template struct {
	Corpus   Corpus
	Base     string
	LoadedAt time.Time
}

// NewTemplate renders the static system prompt for c.
func NewTemplate(c Corpus, loadedAt time.Time) *Template {
	return &Template{
		Corpus:   c,
		Base:     BuildBase(c),
		LoadedAt: loadedAt,
	}
}

// BuildBase renders the static part of the system prompt: role, style
// references, language routing policy and formatting constraint.
func BuildBase(c Corpus) string {
	var sb strings.Builder

	sb.WriteString("You are a beginner-friendly programming and DSA tutor for a first-year student.\n")
	sb.WriteString("You can answer in C or Python, depending on what the user asks for.\n")
	sb.WriteString("You must follow the STYLE of the reference notes below, but do not copy them word for word.\n\n")

	sb.WriteString(cSectionHeader + "\n")
	sb.WriteString(c.CStyle + "\n")
	sb.WriteString(cSectionFooter + "\n\n")

	sb.WriteString(pySectionHeader + "\n")
	sb.WriteString(c.PyStyle + "\n")
	sb.WriteString(pySectionFooter + "\n\n")

	sb.WriteString("Language rules:\n")
	sb.WriteString("- If the user explicitly asks for Python, answer in Python.\n")
	sb.WriteString("- If the user explicitly asks for C, answer in C.\n")
	sb.WriteString("- If not specified, default to C.\n")
	sb.WriteString("Use plain text only. No markdown or code fences.")

	return sb.String()
}

// BuildSystemPrompt appends the mentor instruction block to base when there
// is anything to say.
func BuildSystemPrompt(base, mentorInstructions string) string {
	if mentorInstructions == "" {
		return base
	}
	return base + "\n\n" + mentorHeader + "\n" + mentorInstructions
}

// BuildUserPrompt tags message with the resolved answer language.
// Anything other than Python is tagged as C, the default language.
func BuildUserPrompt(lang mentor.Language, message string) string {
	label := mentor.LanguageC.Label()
	if lang == mentor.LanguagePython {
		label = mentor.LanguagePython.Label()
	}
	return "(Language: " + label + ") " + message
}

// EstimateTokens provides a rough token count using 4 chars per token heuristic.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
