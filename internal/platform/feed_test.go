package platform_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/proposal-service/internal/model"
	"jobmate/proposal-service/internal/platform"
)

func TestFeed_SearchPaginates(t *testing.T) {
	var pages []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "Go,React", r.URL.Query().Get("skills"))
		page := r.URL.Query().Get("page")
		pages = append(pages, page)

		n := 50
		if page == "2" {
			n = 3
		}
		results := make([]map[string]any, 0, n)
		for i := 0; i < n; i++ {
			results = append(results, map[string]any{
				"id":          page + "-" + strconv.Itoa(i),
				"title":       "Job",
				"budget":      "$1000",
				"budget_type": "HOURLY",
				"status":      "open",
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"results": results, "count": 53})
	}))
	defer srv.Close()

	f := platform.NewFeed("acme", srv.URL, "secret")
	snaps, err := f.SearchOpportunities(context.Background(), platform.SearchCriteria{Skills: []string{"Go", "React"}})

	require.NoError(t, err)
	assert.Len(t, snaps, 53)
	assert.Equal(t, []string{"1", "2"}, pages)
	assert.Equal(t, "acme", snaps[0].Platform)
	assert.Equal(t, model.BudgetHourly, snaps[0].BudgetType)
}

func TestFeed_StatusCodesAreClassified(t *testing.T) {
	cases := []struct {
		code int
		want platform.Kind
	}{
		{http.StatusUnauthorized, platform.KindAuth},
		{http.StatusForbidden, platform.KindAuth},
		{http.StatusInternalServerError, platform.KindTransient},
		{http.StatusTooManyRequests, platform.KindTransient},
		{http.StatusNotFound, platform.KindTransient},
	}
	for _, c := range cases {
		t.Run(strconv.Itoa(c.code), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(c.code)
			}))
			defer srv.Close()

			_, err := platform.NewFeed("acme", srv.URL, "k").SearchOpportunities(context.Background(), platform.SearchCriteria{})
			assert.Equal(t, c.want, platform.Classify(err))
		})
	}
}

func TestFeed_MissingCredentialsIsConfigurationError(t *testing.T) {
	_, err := platform.NewFeed("acme", "http://127.0.0.1:1", "").SearchOpportunities(context.Background(), platform.SearchCriteria{})
	assert.Equal(t, platform.KindConfiguration, platform.Classify(err))
}

func TestFeed_SubmitAndPoll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/proposals":
			var body map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "opp-9", body["opportunity_id"])
			assert.Equal(t, 1200.0, body["bid_amount"])
			fmt.Fprint(w, `{"id":"sub-77","status":"pending"}`)
		case r.Method == http.MethodGet && r.URL.Path == "/proposals/sub-77":
			fmt.Fprint(w, `{"id":"sub-77","status":"ACCEPTED"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	f := platform.NewFeed("acme", srv.URL, "k")
	out, err := f.SubmitProposal(context.Background(), platform.Submission{PlatformOpportunityID: "opp-9", BidAmount: 1200})
	require.NoError(t, err)
	assert.Equal(t, "sub-77", out.SubmissionID)
	assert.Equal(t, model.SubmissionPending, out.Status)

	st, err := f.GetSubmissionStatus(context.Background(), "sub-77")
	require.NoError(t, err)
	assert.Equal(t, model.SubmissionAccepted, st)
}

func TestFeed_ValidateCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ok, err := platform.NewFeed("acme", srv.URL, "good").ValidateCredentials(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = platform.NewFeed("acme", srv.URL, "bad").ValidateCredentials(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSimulated_IsDeterministic(t *testing.T) {
	s := platform.NewSimulated("upwork")
	c := platform.SearchCriteria{Skills: []string{"Go", "React"}, MinBudget: 500, MaxBudget: 5000}

	first, err := s.SearchOpportunities(context.Background(), c)
	require.NoError(t, err)
	second, err := s.SearchOpportunities(context.Background(), c)
	require.NoError(t, err)

	require.NotEmpty(t, first)
	assert.Equal(t, first, second)
	for _, o := range first {
		assert.Equal(t, "upwork", o.Platform)
		assert.NotEmpty(t, o.PlatformOpportunityID)
	}
}
