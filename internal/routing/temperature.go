package routing

import (
	"strings"

	"github.com/kalambet/tutord/internal/mentor"
)

// Tier names the keyword group that decided a temperature.
type Tier string

const (
	TierDebug      Tier = "debug"
	TierStructures Tier = "structures"
	TierConcept    Tier = "concept"
	TierProject    Tier = "project"
	TierDefault    Tier = "default"
)

// DefaultTemperature is used when no tier matches.
const DefaultTemperature = 0.2

type temperatureTier struct {
	tier     Tier
	value    float64
	keywords []string
}

// Tiers are checked highest-precision first.
var temperatureTiers = []temperatureTier{
	{TierDebug, 0.1, []string{"error", "traceback", "exception", "bug", "fix", "crash", "segfault"}},
	{TierStructures, 0.2, []string{
		"dsa", "time complexity", "space complexity", "big o",
		"stack", "queue", "linked list", "tree", "graph",
		"dfs", "bfs", "binary search", "sorting",
		"recursion", "dynamic programming", "dp",
	}},
	{TierConcept, 0.25, []string{"explain", "what is", "why", "how does", "difference between", "concept", "theory"}},
	{TierProject, 0.4, []string{"project", "game", "pygame", "gui", "tkinter", "idea", "app"}},
}

// SelectTemperature returns the sampling temperature for message.
func SelectTemperature(message string) float64 {
	_, t := ClassifyTemperature(message)
	return t
}

// ClassifyTemperature returns the first matching tier and its temperature.
func ClassifyTemperature(message string) (Tier, float64) {
	text := strings.ToLower(message)
	for _, tt := range temperatureTiers {
		for _, k := range tt.keywords {
			if strings.Contains(text, k) {
				return tt.tier, tt.value
			}
		}
	}
	return TierDefault, DefaultTemperature
}

// Decision bundles the routing outcome for one message.
type Decision struct {
	Language    mentor.Language
	Temperature float64
	Tier        Tier
}

// Classify runs both selectors over message.
func Classify(message string, fallback mentor.Language) Decision {
	tier, temp := ClassifyTemperature(message)
	return Decision{
		Language:    SelectLanguage(message, fallback),
		Temperature: temp,
		Tier:        tier,
	}
}
