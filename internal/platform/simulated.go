package platform

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"jobmate/proposal-service/internal/model"
)

// simulatedTemplates seed the postings produced by Simulated.
var simulatedTemplates = []struct {
	title       string
	description string
	budgetType  model.BudgetType
	extraSkill  string
}{
	{"%s developer for SaaS dashboard", "Looking for an experienced %s developer to build an admin dashboard for our web app.", model.BudgetFixed, "PostgreSQL"},
	{"Fix bugs in existing %s codebase", "Ongoing maintenance of a production %s project. Long-term collaboration possible.", model.BudgetHourly, "Git"},
	{"%s API integration", "Integrate a third-party payment API into our %s backend. Clear spec provided.", model.BudgetFixed, "REST"},
	{"Senior %s engineer for MVP", "Startup needs a senior %s engineer to ship an MVP mobile and web app in 6 weeks.", model.BudgetFixed, "Docker"},
}

// Simulated is a deterministic offline marketplace. The same criteria always
// yield the same postings, so repeated cycles see identical ids.
type Simulated struct {
	name string
}

// NewSimulated returns a simulated marketplace called name.
func NewSimulated(name string) *Simulated {
	return &Simulated{name: name}
}

// Name implements Adapter.
func (s *Simulated) Name() string { return s.name }

// SearchOpportunities produces up to one posting per template for each of the
// first three requested skills.
func (s *Simulated) SearchOpportunities(ctx context.Context, c SearchCriteria) ([]model.OpportunitySnapshot, error) {
	skills := c.Skills
	if len(skills) > 3 {
		skills = skills[:3]
	}

	var out []model.OpportunitySnapshot
	for _, skill := range skills {
		skill = strings.TrimSpace(skill)
		if skill == "" {
			continue
		}
		for i, tpl := range simulatedTemplates {
			if err := ctx.Err(); err != nil {
				return out, err
			}
			h := hash(s.name, skill, tpl.title)
			if h%4 == 0 {
				continue // not every template is live on every marketplace
			}
			rating := 3.5 + float64(h%16)/10
			out = append(out, model.OpportunitySnapshot{
				Platform:              s.name,
				PlatformOpportunityID: fmt.Sprintf("%s-%x", strings.ToLower(s.name), h%(1<<32)),
				Title:                 fmt.Sprintf(tpl.title, skill),
				Description:           fmt.Sprintf(tpl.description, skill),
				Budget:                simulatedBudget(c, tpl.budgetType, h),
				BudgetType:            tpl.budgetType,
				Skills:                []string{skill, tpl.extraSkill},
				ClientRating:          &rating,
				ProposalCount:         int(h%40) + i,
				URL:                   fmt.Sprintf("https://%s.example.com/jobs/%x", strings.ToLower(s.name), h%(1<<32)),
				Status:                model.OpportunityOpen,
			})
		}
	}
	return out, nil
}

func simulatedBudget(c SearchCriteria, bt model.BudgetType, h uint64) string {
	if bt == model.BudgetHourly {
		return fmt.Sprintf("$%d/hr", 25+h%75)
	}
	lo, hi := c.MinBudget, c.MaxBudget
	if hi <= lo {
		lo, hi = 500, 5000
	}
	span := uint64(hi-lo) + 1
	return fmt.Sprintf("$%d", uint64(lo)+h%span)
}

// SubmitProposal accepts every submission as pending.
func (s *Simulated) SubmitProposal(ctx context.Context, sub Submission) (SubmissionOutcome, error) {
	if sub.PlatformOpportunityID == "" {
		return SubmissionOutcome{}, fmt.Errorf("missing opportunity id")
	}
	return SubmissionOutcome{
		SubmissionID: fmt.Sprintf("%s-sub-%s", strings.ToLower(s.name), sub.ProposalID),
		Status:       model.SubmissionPending,
	}, nil
}

// GetSubmissionStatus derives a stable decision from the submission id.
func (s *Simulated) GetSubmissionStatus(ctx context.Context, submissionID string) (model.SubmissionStatus, error) {
	switch hash(submissionID) % 5 {
	case 0:
		return model.SubmissionAccepted, nil
	case 1, 2:
		return model.SubmissionRejected, nil
	default:
		return model.SubmissionPending, nil
	}
}

// ValidateCredentials always succeeds.
func (s *Simulated) ValidateCredentials(ctx context.Context) (bool, error) {
	return true, nil
}

func hash(parts ...string) uint64 {
	h := fnv.New64a()
	for _, p := range parts {
		h.Write([]byte(strings.ToLower(p)))
		h.Write([]byte{0})
	}
	return h.Sum64()
}
