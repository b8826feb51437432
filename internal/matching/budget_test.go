package matching_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"jobmate/proposal-service/internal/matching"
	"jobmate/proposal-service/internal/model"
)

func TestParseBudget(t *testing.T) {
	cases := []struct {
		text  string
		want  float64
		known bool
	}{
		{"$4,000", 4000, true},
		{"4000", 4000, true},
		{"$500 - $1,000", 750, true},
		{"$45/hr", 45, true},
		{"$45.50 per hour", 45.5, true},
		{"$2k", 2000, true},
		{"Negotiable", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		t.Run(c.text, func(t *testing.T) {
			got, ok := matching.ParseBudget(c.text)
			assert.Equal(t, c.known, ok)
			assert.InDelta(t, c.want, got, 0.001)
		})
	}
}

func TestDerivedRate(t *testing.T) {
	assert.Equal(t, 50.0, matching.DerivedRate(50, model.BudgetHourly))
	assert.Equal(t, 100.0, matching.DerivedRate(4000, model.BudgetFixed))
}

func TestExperienceTier(t *testing.T) {
	cases := map[string]model.ExperienceLevel{
		"Expert":                    model.ExperienceExpert,
		"Senior engineer, 10 years": model.ExperienceExpert,
		"intermediate":              model.ExperienceIntermediate,
		"Mid-level":                 model.ExperienceIntermediate,
		"Entry level":               model.ExperienceBeginner,
		"":                          model.ExperienceBeginner,
		"inexperienced":             model.ExperienceBeginner,
		"misleading titles":         model.ExperienceBeginner,
		"amid a career change":      model.ExperienceBeginner,
		"Team lead (remote)":        model.ExperienceExpert,
	}
	for in, want := range cases {
		assert.Equal(t, want, matching.ExperienceTier(in), in)
	}
}
