package matching_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"jobmate/proposal-service/internal/matching"
)

func TestContainsExcluded(t *testing.T) {
	cases := []struct {
		name        string
		title, desc string
		keywords    []string
		want        bool
	}{
		{"no keywords", "Anything", "goes", nil, false},
		{"match in title", "Unpaid internship", "", []string{"unpaid"}, true},
		{"match in description is case-insensitive", "Dev", "Crypto wallet", []string{"CRYPTO"}, true},
		{"empty keyword ignored", "Dev", "work", []string{""}, false},
		{"no match", "Go developer", "backend API", []string{"wordpress"}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, matching.ContainsExcluded(c.title, c.desc, c.keywords))
		})
	}
}

func TestExcludedFraction(t *testing.T) {
	assert.Equal(t, 0.0, matching.ExcludedFraction("a", "b", nil))
	assert.InDelta(t, 0.5, matching.ExcludedFraction("Unpaid", "logo", []string{"unpaid", "nsfw", " ", "LOGO", "gambling"}), 0.001)
}

func TestContainsExcluded_AgreesWithFraction(t *testing.T) {
	keywords := []string{"unpaid", "nsfw"}
	assert.True(t, matching.ContainsExcluded("Go dev", "unpaid trial", keywords))
	assert.Positive(t, matching.ExcludedFraction("Go dev", "unpaid trial", keywords))

	assert.False(t, matching.ContainsExcluded("Go dev", "paid work", []string{" ", ""}))
	assert.Zero(t, matching.ExcludedFraction("Go dev", "paid work", []string{" ", ""}))
}
