package chat

import (
	"strings"
	"unicode"

	"github.com/newsterm/newsterm/internal/api"
)

// typeLabels maps preference type keys to display headings. The backend
// tags the topics question "topics", which has no entry here, so those
// selections take the generic title-case path.
var typeLabels = map[string]string{
	"tone":              "Preferred Tone of Voice",
	"news_topics":       "News Topic Interest",
	"language":          "Preferred Language",
	"region":            "News Region",
	"depth":             "Coverage Depth",
	"source_type":       "Preferred Source Type",
	"interaction_style": "Interaction Style",
	"format":            "Preferred News Format",
}

// valueLabels covers enum values whose display form plain title-casing
// gets wrong: labels with spaces and all-caps abbreviations.
var valueLabels = map[string]string{
	"bullet points": "Bullet Points",
	"in_depth":      "In-Depth",
	"us":            "US",
	"uk":            "UK",
	"eu":            "EU",
}

// FormatPreferenceSelection rewrites a quick-reply selection message such
// as "PREFERENCE_SELECTION:tone:casual" into a readable transcript line,
// "Preferred Tone of Voice: Casual". Input that does not match the
// selection shape exactly is returned unchanged.
func FormatPreferenceSelection(content string) string {
	rest, ok := strings.CutPrefix(content, api.PreferenceSelectionPrefix)
	if !ok {
		return content
	}
	parts := strings.Split(rest, ":")
	if len(parts) != 2 {
		return content
	}
	return formatType(parts[0]) + ": " + formatValue(parts[1])
}

func formatType(key string) string {
	if label, ok := typeLabels[key]; ok {
		return label
	}
	return titleCase(key)
}

func formatValue(value string) string {
	if strings.Contains(value, ",") {
		items := strings.Split(value, ",")
		for i, item := range items {
			items[i] = titleCase(strings.TrimSpace(item))
		}
		return strings.Join(items, ", ")
	}
	if label, ok := valueLabels[value]; ok {
		return label
	}
	return titleCase(value)
}

// titleCase upper-cases the first letter of each underscore-separated
// word: "source_type" becomes "Source Type".
func titleCase(s string) string {
	words := strings.Split(s, "_")
	for i, w := range words {
		r := []rune(w)
		if len(r) == 0 {
			continue
		}
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
