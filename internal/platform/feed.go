package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"jobmate/proposal-service/internal/model"
)

const (
	feedPageSize    = 50
	feedMaxPages    = 3 // max 150 results per search
	feedHTTPTimeout = 15 * time.Second
)

// Feed talks to a marketplace exposing the JSON feed protocol:
//
//	GET  {base}/opportunities?skills=..&min_budget=..&max_budget=..&page=N&per_page=50
//	POST {base}/proposals
//	GET  {base}/proposals/{id}
//	GET  {base}/me
//
// Requests carry "Authorization: Bearer {APIKey}".
type Feed struct {
	name    string
	BaseURL string
	APIKey  string
	client  *http.Client
}

// NewFeed constructs a feed adapter with a shared HTTP client.
func NewFeed(name, baseURL, apiKey string) *Feed {
	return &Feed{
		name:    name,
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		client:  &http.Client{Timeout: feedHTTPTimeout},
	}
}

// Name implements Adapter.
func (f *Feed) Name() string { return f.name }

// feedSearchResponse mirrors the top-level search JSON response.
type feedSearchResponse struct {
	Results []feedOpportunity `json:"results"`
	Count   int               `json:"count"`
}

// feedOpportunity mirrors a single listing.
type feedOpportunity struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Budget        string     `json:"budget"`
	BudgetType    string     `json:"budget_type"`
	Skills        []string   `json:"skills"`
	ClientRating  *float64   `json:"client_rating"`
	ProposalCount int        `json:"proposal_count"`
	Deadline      *time.Time `json:"deadline"`
	URL           string     `json:"url"`
	Status        string     `json:"status"`
}

type feedSubmitRequest struct {
	OpportunityID string  `json:"opportunity_id"`
	Reference     string  `json:"reference"`
	Content       string  `json:"content"`
	BidAmount     float64 `json:"bid_amount"`
	Timeline      string  `json:"timeline"`
}

type feedSubmission struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// SearchOpportunities retrieves listings page by page until no more results
// or feedMaxPages is reached.
func (f *Feed) SearchOpportunities(ctx context.Context, c SearchCriteria) ([]model.OpportunitySnapshot, error) {
	if err := f.checkConfig(); err != nil {
		return nil, err
	}

	var results []model.OpportunitySnapshot
	for page := 1; page <= feedMaxPages; page++ {
		batch, err := f.fetchPage(ctx, c, page)
		if err != nil {
			return results, fmt.Errorf("page %d: %w", page, err)
		}
		if len(batch) == 0 {
			break
		}
		results = append(results, batch...)
		if len(batch) < feedPageSize {
			break
		}
	}
	return results, nil
}

func (f *Feed) fetchPage(ctx context.Context, c SearchCriteria, page int) ([]model.OpportunitySnapshot, error) {
	params := url.Values{}
	params.Set("skills", strings.Join(c.Skills, ","))
	if c.MinBudget > 0 {
		params.Set("min_budget", strconv.FormatFloat(c.MinBudget, 'f', -1, 64))
	}
	if c.MaxBudget > 0 {
		params.Set("max_budget", strconv.FormatFloat(c.MaxBudget, 'f', -1, 64))
	}
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(feedPageSize))

	var resp feedSearchResponse
	if err := f.do(ctx, http.MethodGet, "/opportunities?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	out := make([]model.OpportunitySnapshot, 0, len(resp.Results))
	for _, r := range resp.Results {
		status := model.OpportunityOpen
		if strings.EqualFold(r.Status, string(model.OpportunityClosed)) {
			status = model.OpportunityClosed
		}
		budgetType := model.BudgetFixed
		if strings.EqualFold(r.BudgetType, string(model.BudgetHourly)) {
			budgetType = model.BudgetHourly
		}
		out = append(out, model.OpportunitySnapshot{
			Platform:              f.name,
			PlatformOpportunityID: r.ID,
			Title:                 r.Title,
			Description:           r.Description,
			Budget:                r.Budget,
			BudgetType:            budgetType,
			Skills:                r.Skills,
			ClientRating:          r.ClientRating,
			ProposalCount:         r.ProposalCount,
			Deadline:              r.Deadline,
			URL:                   r.URL,
			Status:                status,
		})
	}
	return out, nil
}

// SubmitProposal posts a proposal and returns the marketplace submission id.
func (f *Feed) SubmitProposal(ctx context.Context, sub Submission) (SubmissionOutcome, error) {
	if err := f.checkConfig(); err != nil {
		return SubmissionOutcome{}, err
	}
	body := feedSubmitRequest{
		OpportunityID: sub.PlatformOpportunityID,
		Reference:     sub.ProposalID,
		Content:       sub.Content,
		BidAmount:     sub.BidAmount,
		Timeline:      sub.Timeline,
	}
	var resp feedSubmission
	if err := f.do(ctx, http.MethodPost, "/proposals", body, &resp); err != nil {
		return SubmissionOutcome{}, err
	}
	return SubmissionOutcome{SubmissionID: resp.ID, Status: parseSubmissionStatus(resp.Status)}, nil
}

// GetSubmissionStatus polls the state of a previous submission.
func (f *Feed) GetSubmissionStatus(ctx context.Context, submissionID string) (model.SubmissionStatus, error) {
	if err := f.checkConfig(); err != nil {
		return "", err
	}
	var resp feedSubmission
	if err := f.do(ctx, http.MethodGet, "/proposals/"+url.PathEscape(submissionID), nil, &resp); err != nil {
		return "", err
	}
	return parseSubmissionStatus(resp.Status), nil
}

// ValidateCredentials returns false when the marketplace rejects the key.
func (f *Feed) ValidateCredentials(ctx context.Context) (bool, error) {
	if err := f.checkConfig(); err != nil {
		return false, err
	}
	err := f.do(ctx, http.MethodGet, "/me", nil, nil)
	if Classify(err) == KindAuth {
		return false, nil
	}
	return err == nil, err
}

func (f *Feed) checkConfig() error {
	if f.BaseURL == "" {
		return &ConfigurationError{Platform: f.name, Msg: "feed base URL not set"}
	}
	if f.APIKey == "" {
		return &ConfigurationError{Platform: f.name, Msg: "API key not set"}
	}
	return nil
}

func (f *Feed) do(ctx context.Context, method, path string, in, out any) error {
	var reqBody io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("json marshal: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, f.BaseURL+path, reqBody)
	if err != nil {
		return &ConfigurationError{Platform: f.name, Msg: err.Error()}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.APIKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return &TransientError{Platform: f.name, Err: fmt.Errorf("http %s: %w", method, err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransientError{Platform: f.name, Err: fmt.Errorf("read body: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &AuthError{Platform: f.name, Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &TransientError{Platform: f.name, Err: fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body, 200))}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &TransientError{Platform: f.name, Err: fmt.Errorf("json unmarshal: %w", err)}
	}
	return nil
}

func parseSubmissionStatus(s string) model.SubmissionStatus {
	switch model.SubmissionStatus(strings.ToLower(s)) {
	case model.SubmissionAccepted:
		return model.SubmissionAccepted
	case model.SubmissionRejected:
		return model.SubmissionRejected
	default:
		return model.SubmissionPending
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "…"
}
