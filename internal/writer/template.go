// Package writer drafts proposal text for an opportunity.
package writer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"jobmate/proposal-service/internal/matching"
	"jobmate/proposal-service/internal/model"
)

// Draft is a generated proposal ready to be stored and submitted.
type Draft struct {
	Content   string  `json:"content"`
	BidAmount float64 `json:"bidAmount"`
	Timeline  string  `json:"timeline"`
}

// ErrEmptyOpportunity is returned for postings with nothing to respond to.
var ErrEmptyOpportunity = errors.New("opportunity has no title or description")

var proposalTmpl = template.Must(template.New("proposal").Parse(
	`Hello,

I read your posting "{{.Title}}" and I would be glad to help.
{{- if .Matched}}

I work daily with {{.Matched}}, which covers what this project needs.
{{- end}}
{{- if .Experience}}

Background: {{.Experience}}.
{{- end}}
{{- if .Portfolio}}

Relevant work is available in my portfolio.
{{- end}}
{{- if .Instructions}}

{{.Instructions}}
{{- end}}

I can deliver in {{.Timeline}}. Happy to discuss details at your convenience.

Best regards`))

type proposalData struct {
	Title        string
	Matched      string
	Experience   string
	Portfolio    bool
	Instructions string
	Timeline     string
}

// Template builds deterministic proposals without an external model.
type Template struct{}

// Generate drafts a proposal for opp. instructions are the user's standing
// guidance and are appended verbatim.
func (Template) Generate(ctx context.Context, opp model.Opportunity, profile model.FreelancerProfile, instructions string) (Draft, error) {
	if err := ctx.Err(); err != nil {
		return Draft{}, err
	}
	if strings.TrimSpace(opp.Title) == "" && strings.TrimSpace(opp.Description) == "" {
		return Draft{}, ErrEmptyOpportunity
	}

	amount, known := matching.ParseBudget(opp.Budget)
	bid := amount
	if !known || amount <= 0 {
		bid = profile.HourlyRate
		if opp.BudgetType != model.BudgetHourly {
			bid = profile.HourlyRate * 40
		}
	}
	timeline := Timeline(opp.BudgetType, bid)

	title := opp.Title
	if title == "" {
		title = firstLine(opp.Description)
	}

	var buf bytes.Buffer
	err := proposalTmpl.Execute(&buf, proposalData{
		Title:        title,
		Matched:      strings.Join(matchedSkills(opp.Skills, profile.Skills), ", "),
		Experience:   strings.TrimSpace(profile.Experience),
		Portfolio:    profile.HasPortfolio,
		Instructions: strings.TrimSpace(instructions),
		Timeline:     timeline,
	})
	if err != nil {
		return Draft{}, fmt.Errorf("render proposal: %w", err)
	}

	return Draft{Content: buf.String(), BidAmount: bid, Timeline: timeline}, nil
}

// Timeline estimates delivery time from the engagement size.
func Timeline(budgetType model.BudgetType, amount float64) string {
	if budgetType == model.BudgetHourly {
		return "an ongoing engagement, about 20 hours per week"
	}
	switch {
	case amount < 1000:
		return "1 week"
	case amount < 5000:
		return "2-3 weeks"
	default:
		return "4-6 weeks"
	}
}

func matchedSkills(required, have []string) []string {
	var out []string
	for _, r := range required {
		for _, h := range have {
			if strings.EqualFold(strings.TrimSpace(r), strings.TrimSpace(h)) {
				out = append(out, strings.TrimSpace(h))
				break
			}
		}
	}
	return out
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 80 {
		s = s[:80]
	}
	return s
}
