package matching

import "strings"

// ContainsExcluded reports whether the posting text mentions any of keywords.
// Matching ignores case; blank keywords never match.
func ContainsExcluded(title, description string, keywords []string) bool {
	return ExcludedFraction(title, description, keywords) > 0
}

// ExcludedFraction returns the share of non-empty keywords found in the text.
func ExcludedFraction(title, description string, keywords []string) float64 {
	return fractionFound(strings.ToLower(title+" "+description), keywords)
}

func fractionFound(lowerText string, terms []string) float64 {
	var total, found int
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		total++
		if strings.Contains(lowerText, strings.ToLower(t)) {
			found++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(found) / float64(total)
}
