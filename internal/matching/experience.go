package matching

import (
	"slices"
	"strings"
	"unicode"

	"jobmate/proposal-service/internal/model"
)

var (
	expertTerms       = []string{"expert", "senior", "advanced", "lead", "principal"}
	intermediateTerms = []string{"intermediate", "mid", "experienced", "professional"}
)

// ExperienceTier maps free-text experience to a tier by whole words, so
// "inexperienced" or "misleading" do not count. Unknown text is beginner.
func ExperienceTier(text string) model.ExperienceLevel {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	has := func(terms []string) bool {
		return slices.ContainsFunc(words, func(w string) bool { return slices.Contains(terms, w) })
	}
	switch {
	case has(expertTerms):
		return model.ExperienceExpert
	case has(intermediateTerms):
		return model.ExperienceIntermediate
	}
	return model.ExperienceBeginner
}
