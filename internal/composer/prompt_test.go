package composer

import (
	"strings"
	"testing"
	"time"

	"github.com/kalambet/tutord/internal/mentor"
)

func TestBuildBase_ContainsSections(t *testing.T) {
	base := BuildBase(Corpus{CStyle: "c notes body", PyStyle: "py notes body"})

	wantInOrder := []string{
		"beginner-friendly programming and DSA tutor",
		"do not copy them word for word",
		cSectionHeader,
		"c notes body",
		pySectionHeader,
		"py notes body",
		"Language rules:",
		"If not specified, default to C.",
		"Use plain text only.",
	}

	pos := 0
	for _, want := range wantInOrder {
		idx := strings.Index(base[pos:], want)
		if idx < 0 {
			t.Fatalf("base prompt missing %q after offset %d:\n%s", want, pos, base)
		}
		pos += idx + len(want)
	}
}

func TestBuildBase_EmptyCorpus(t *testing.T) {
	base := BuildBase(Corpus{})

	// Empty sections keep their markers with nothing in between.
	if !strings.Contains(base, cSectionHeader+"\n\n"+cSectionFooter) {
		t.Errorf("expected empty C section, got:\n%s", base)
	}
	if !strings.Contains(base, pySectionHeader+"\n\n"+pySectionFooter) {
		t.Errorf("expected empty Python section, got:\n%s", base)
	}
}

func TestBuildSystemPrompt_NoInstructions(t *testing.T) {
	base := BuildBase(Corpus{CStyle: "c", PyStyle: "py"})
	if got := BuildSystemPrompt(base, ""); got != base {
		t.Errorf("expected base unchanged when no instructions")
	}
	if strings.Contains(BuildSystemPrompt(base, ""), mentorHeader) {
		t.Error("mentor header must not appear without instructions")
	}
}

func TestBuildSystemPrompt_WithInstructions(t *testing.T) {
	base := "BASE"
	instr := "Explain concepts in very simple language, step by step.\nFocus more on code examples than long theory."

	got := BuildSystemPrompt(base, instr)
	want := "BASE\n\nMENTOR INSTRUCTIONS:\n" + instr
	if got != want {
		t.Errorf("BuildSystemPrompt =\n%q\nwant\n%q", got, want)
	}
}

func TestBuildUserPrompt(t *testing.T) {
	tests := []struct {
		lang mentor.Language
		want string
	}{
		{mentor.LanguagePython, "(Language: Python) sort a list"},
		{mentor.LanguageC, "(Language: C) sort a list"},
		{mentor.LanguageNone, "(Language: C) sort a list"},
	}
	for _, tt := range tests {
		if got := BuildUserPrompt(tt.lang, "sort a list"); got != tt.want {
			t.Errorf("BuildUserPrompt(%q) = %q, want %q", tt.lang, got, tt.want)
		}
	}
}

func TestNewTemplate(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	c := Corpus{CStyle: "c", PyStyle: "py"}
	tmpl := NewTemplate(c, now)

	if tmpl.Base != BuildBase(c) {
		t.Error("template base does not match BuildBase")
	}
	if !tmpl.LoadedAt.Equal(now) {
		t.Errorf("LoadedAt = %v, want %v", tmpl.LoadedAt, now)
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens(""); got != 0 {
		t.Errorf("EstimateTokens(\"\") = %d, want 0", got)
	}
	if got := EstimateTokens("abcdefgh"); got != 2 {
		t.Errorf("EstimateTokens(8 chars) = %d, want 2", got)
	}
}
