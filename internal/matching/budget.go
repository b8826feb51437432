package matching

import (
	"regexp"
	"strconv"
	"strings"

	"jobmate/proposal-service/internal/model"
)

// fixedProjectHours converts a fixed budget into an hourly rate.
const fixedProjectHours = 40.0

var numberPattern = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

// ParseBudget extracts a numeric amount from free-form budget text.
// "$1,500" → 1500, "$500 - $1,000" → 750 (midpoint), "$45/hr" → 45.
// A trailing "k" multiplies by one thousand ("$2k" → 2000).
func ParseBudget(text string) (float64, bool) {
	lower := strings.ToLower(text)
	locs := numberPattern.FindAllStringIndex(lower, -1)
	if len(locs) == 0 {
		return 0, false
	}

	var values []float64
	for _, loc := range locs {
		raw := strings.ReplaceAll(lower[loc[0]:loc[1]], ",", "")
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		if loc[1] < len(lower) && lower[loc[1]] == 'k' {
			v *= 1000
		}
		values = append(values, v)
		if len(values) == 2 {
			break
		}
	}

	switch len(values) {
	case 0:
		return 0, false
	case 1:
		return values[0], true
	default:
		return (values[0] + values[1]) / 2, true
	}
}

// DerivedRate returns the hourly rate implied by an opportunity's budget.
// Fixed-price budgets are spread over a standard engagement length.
func DerivedRate(budget float64, budgetType model.BudgetType) float64 {
	if budgetType == model.BudgetHourly {
		return budget
	}
	return budget / fixedProjectHours
}
