// Package matching scores marketplace opportunities against a freelancer
// profile and automation policy.
//
// Score components (0-100 each) are combined with fixed weights:
//
//	skill overlap      40%
//	budget fit         25%
//	client quality     15%
//	project type       10%
//	exclusion penalty  up to -10 points
//
// The result is clamped to [0, 100].
package matching

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"jobmate/proposal-service/internal/model"
)

// Weights of the score components.
const (
	SkillWeight       = 0.40
	BudgetWeight      = 0.25
	ClientWeight      = 0.15
	ProjectTypeWeight = 0.10

	// ExclusionPenalty is the number of points removed when every exclude
	// keyword is present; partial matches scale linearly.
	ExclusionPenalty = 10.0
)

// MinQualifyingScore is the lowest score kept for downstream processing.
const MinQualifyingScore = 60.0

const (
	exactSkillCredit   = 1.0
	partialSkillCredit = 0.6

	neutralClientScore      = 70.0
	neutralProjectTypeScore = 70.0
	neutralSkillScore       = 50.0
	unknownBudgetScore      = 50.0

	expertBonus       = 15.0
	intermediateBonus = 10.0
	rateBonus         = 10.0
	rateTolerance     = 1.2
	predictionWeight  = 0.6
)

// Criteria are the matching inputs derived from a policy and profile.
type Criteria struct {
	Skills          []string
	MinBudget       float64
	MaxBudget       float64 // 0 = unbounded
	ExcludeKeywords []string
	ProjectTypes    []string
}

// CriteriaFor derives criteria from the policy, falling back to the profile's
// skills when the policy names no preferred skills.
func CriteriaFor(policy model.AutomationPolicy, profile model.FreelancerProfile) Criteria {
	skills := policy.PreferredSkills
	if len(skills) == 0 {
		skills = profile.Skills
	}
	return Criteria{
		Skills:          skills,
		MinBudget:       policy.MinBudget,
		MaxBudget:       policy.MaxBudget,
		ExcludeKeywords: policy.ExcludeKeywords,
		ProjectTypes:    policy.ProjectTypes,
	}
}

// Score computes the MatchResult for one opportunity.
func Score(opp model.OpportunitySnapshot, profile model.FreelancerProfile, c Criteria) model.MatchResult {
	var reasons []string

	skill := SkillOverlap(opp.Skills, c.Skills)
	reasons = append(reasons, fmt.Sprintf("skill overlap %.0f%%", skill))

	amount, known := ParseBudget(opp.Budget)
	budget := BudgetFit(amount, known, c.MinBudget, c.MaxBudget)
	switch {
	case !known:
		reasons = append(reasons, "budget not stated")
	case budget == 100:
		reasons = append(reasons, "budget within preferred range")
	default:
		reasons = append(reasons, fmt.Sprintf("budget outside preferred range (fit %.0f%%)", budget))
	}

	client := ClientQuality(opp.ClientRating)
	if opp.ClientRating != nil {
		reasons = append(reasons, fmt.Sprintf("client rated %.1f", *opp.ClientRating))
	}

	projectType := ProjectTypeFit(opp.Title, opp.Description, c.ProjectTypes)

	penalty := ExcludedFraction(opp.Title, opp.Description, c.ExcludeKeywords) * ExclusionPenalty
	if penalty > 0 {
		reasons = append(reasons, "contains excluded keywords")
	}

	score := clamp(
		skill*SkillWeight+budget*BudgetWeight+client*ClientWeight+projectType*ProjectTypeWeight-penalty,
		0, 100,
	)

	return model.MatchResult{
		MatchScore:        score,
		Reasons:           reasons,
		CompetitionLevel:  CompetitionLevel(opp.ProposalCount),
		SuccessPrediction: SuccessPrediction(score, profile, amount, known, opp.BudgetType),
	}
}

// SkillOverlap scores required opportunity skills against the candidate's
// skills. Exact case-insensitive matches count 1.0, substring matches 0.6.
func SkillOverlap(required, have []string) float64 {
	var n int
	var credit float64
	for _, req := range required {
		req = strings.ToLower(strings.TrimSpace(req))
		if req == "" {
			continue
		}
		n++
		best := 0.0
		for _, h := range have {
			h = strings.ToLower(strings.TrimSpace(h))
			if h == "" {
				continue
			}
			if h == req {
				best = exactSkillCredit
				break
			}
			if strings.Contains(h, req) || strings.Contains(req, h) {
				best = partialSkillCredit
			}
		}
		credit += best
	}
	if n == 0 {
		return neutralSkillScore
	}
	return math.Min(100, credit/float64(n)*100)
}

// BudgetFit returns 100 inside [min, max] and degrades linearly with the
// distance from the nearer bound relative to the range width.
func BudgetFit(amount float64, known bool, lo, hi float64) float64 {
	if !known {
		return unknownBudgetScore
	}
	if hi <= 0 {
		if amount >= lo {
			return 100
		}
		return clamp(100*(1-(lo-amount)/math.Max(lo, 1)), 0, 100)
	}
	if amount >= lo && amount <= hi {
		return 100
	}
	width := math.Max(hi-lo, 1)
	dist := lo - amount
	if amount > hi {
		dist = amount - hi
	}
	return clamp(100*(1-dist/width), 0, 100)
}

// ClientQuality maps a 0-5 client rating onto 0-100; 70 when unrated.
func ClientQuality(rating *float64) float64 {
	if rating == nil {
		return neutralClientScore
	}
	return clamp(70+(*rating-3)*15, 0, 100)
}

// ProjectTypeFit is the share of preferred project types mentioned in the
// posting; 70 when no preference is configured.
func ProjectTypeFit(title, description string, types []string) float64 {
	if len(types) == 0 {
		return neutralProjectTypeScore
	}
	return fractionFound(strings.ToLower(title+" "+description), types) * 100
}

// CompetitionLevel labels the number of proposals already on a posting.
func CompetitionLevel(proposals int) string {
	switch {
	case proposals < 10:
		return "low"
	case proposals < 30:
		return "medium"
	default:
		return "high"
	}
}

// SuccessPrediction estimates the chance of winning the opportunity.
func SuccessPrediction(score float64, profile model.FreelancerProfile, budget float64, known bool, budgetType model.BudgetType) float64 {
	p := score * predictionWeight
	switch ExperienceTier(profile.Experience) {
	case model.ExperienceExpert:
		p += expertBonus
	case model.ExperienceIntermediate:
		p += intermediateBonus
	}
	if known {
		if rate := DerivedRate(budget, budgetType); rate > 0 && profile.HourlyRate <= rateTolerance*rate {
			p += rateBonus
		}
	}
	return clamp(p, 0, 100)
}

// Qualifies reports whether a score is retained for downstream processing.
func Qualifies(score float64) bool {
	return score >= MinQualifyingScore
}

// Rank keeps qualifying items, sorts them by descending score and caps the
// result at limit (no cap when limit <= 0). Ties keep input order.
func Rank[T any](items []T, score func(T) float64, limit int) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if Qualifies(score(it)) {
			out = append(out, it)
		}
	}
	slices.SortStableFunc(out, func(a, b T) int {
		return cmp.Compare(score(b), score(a))
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
