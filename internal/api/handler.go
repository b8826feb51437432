// Package api implements the HTTP handlers for the proposal service.
//
// All routes except /health expect an x-user-id header forwarded by the Gateway.
//
// Routes:
//
//	GET  /automation/status                   → automation status
//	POST /automation/start                    → schedule recurring cycles
//	POST /automation/stop                     → cancel recurring cycles
//	POST /automation/run                      → run one cycle now
//	GET  /opportunities                       → list discovered opportunities
//	GET  /opportunities/{id}/bid-strategy     → recommended bid
//	POST /opportunities/{id}/proposals        → submit a user-written proposal
//	GET  /proposals                           → list proposals
//	GET  /health                              → liveness
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"jobmate/proposal-service/internal/automation"
	"jobmate/proposal-service/internal/model"
	"jobmate/proposal-service/internal/store"
)

// Automation is the orchestrator surface exposed over HTTP.
type Automation interface {
	GetStatus(ctx context.Context, userID string) (automation.Status, error)
	Start(ctx context.Context, userID string) (automation.Status, error)
	Stop(ctx context.Context, userID string) (automation.Status, error)
	RunManual(ctx context.Context, userID string) (*automation.CycleReport, error)
	RecommendBid(ctx context.Context, userID, opportunityID string) (model.BidStrategy, error)
	SubmitProposal(ctx context.Context, userID, opportunityID string, mp automation.ManualProposal) (model.Proposal, error)
}

// Listings serves the read-only list endpoints.
type Listings interface {
	ListOpportunities(ctx context.Context, userID string, f store.OpportunityFilter) ([]model.Opportunity, error)
	ListProposals(ctx context.Context, userID string, f store.ProposalFilter) ([]model.Proposal, error)
}

// ─── Handler ─────────────────────────────────────────────────────────────────

// Handler holds shared dependencies.
type Handler struct {
	engine   Automation
	listings Listings
	logger   *slog.Logger
	version  string
}

// NewHandler returns a configured Handler.
func NewHandler(engine Automation, listings Listings, logger *slog.Logger, version string) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{engine: engine, listings: listings, logger: logger, version: version}
}

// RegisterRoutes mounts all proposal-service routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.health)
	mux.HandleFunc("/automation/", h.handleAutomation)
	mux.HandleFunc("/opportunities", h.handleOpportunities)
	mux.HandleFunc("/opportunities/", h.handleOpportunityAction)
	mux.HandleFunc("/proposals", h.handleProposals)
}

// ─── Route dispatch ───────────────────────────────────────────────────────────

// handleAutomation handles GET /automation/status and POST /automation/start|stop|run
func (h *Handler) handleAutomation(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	action := strings.TrimPrefix(strings.Trim(r.URL.Path, "/"), "automation/")
	want := http.MethodPost
	if action == "status" {
		want = http.MethodGet
	}
	if r.Method != want {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch action {
	case "status":
		st, err := h.engine.GetStatus(r.Context(), userID)
		h.respond(w, st, err)
	case "start":
		st, err := h.engine.Start(r.Context(), userID)
		h.respond(w, st, err)
	case "stop":
		st, err := h.engine.Stop(r.Context(), userID)
		h.respond(w, st, err)
	case "run":
		report, err := h.engine.RunManual(r.Context(), userID)
		h.respond(w, report, err)
	default:
		jsonError(w, fmt.Sprintf("unknown action %q", action), http.StatusNotFound)
	}
}

// handleOpportunities handles GET /opportunities
func (h *Handler) handleOpportunities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	var f store.OpportunityFilter
	switch s := q.Get("status"); s {
	case "":
	case string(model.OpportunityOpen), string(model.OpportunityClosed):
		f.Status = model.OpportunityStatus(s)
	default:
		jsonError(w, fmt.Sprintf("unknown status %q", s), http.StatusBadRequest)
		return
	}
	if s := q.Get("minScore"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v < 0 || v > 100 {
			jsonError(w, "minScore must be a number between 0 and 100", http.StatusBadRequest)
			return
		}
		f.MinScore = v
	}
	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.Limit = limit

	opps, err := h.listings.ListOpportunities(r.Context(), userID, f)
	if opps == nil {
		opps = make([]model.Opportunity, 0)
	}
	h.respond(w, opps, err)
}

// handleOpportunityAction handles GET /opportunities/{id}/bid-strategy and
// POST /opportunities/{id}/proposals
func (h *Handler) handleOpportunityAction(w http.ResponseWriter, r *http.Request) {
	// Parse /opportunities/{id}/{action}
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 || parts[1] == "" {
		jsonError(w, "invalid path", http.StatusNotFound)
		return
	}
	oppID, action := parts[1], parts[2]

	switch action {
	case "bid-strategy":
		if r.Method != http.MethodGet {
			jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.bidStrategy(w, r, oppID)
	case "proposals":
		if r.Method != http.MethodPost {
			jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.submitProposal(w, r, oppID)
	default:
		jsonError(w, fmt.Sprintf("unknown action %q", action), http.StatusNotFound)
	}
}

// handleProposals handles GET /proposals
func (h *Handler) handleProposals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	var f store.ProposalFilter
	switch s := model.SubmissionStatus(q.Get("status")); s {
	case "":
	case model.SubmissionPending, model.SubmissionAccepted, model.SubmissionRejected, model.SubmissionFailed:
		f.Status = s
	default:
		jsonError(w, fmt.Sprintf("unknown status %q", s), http.StatusBadRequest)
		return
	}
	if s := q.Get("auto"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			jsonError(w, "auto must be a boolean", http.StatusBadRequest)
			return
		}
		f.AutoOnly = v
	}
	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.Limit = limit

	proposals, err := h.listings.ListProposals(r.Context(), userID, f)
	if proposals == nil {
		proposals = make([]model.Proposal, 0)
	}
	h.respond(w, proposals, err)
}

// ─── Individual handlers ──────────────────────────────────────────────────────

func (h *Handler) bidStrategy(w http.ResponseWriter, r *http.Request, oppID string) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	strategy, err := h.engine.RecommendBid(r.Context(), userID, oppID)
	h.respond(w, strategy, err)
}

func (h *Handler) submitProposal(w http.ResponseWriter, r *http.Request, oppID string) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var body automation.ManualProposal
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	p, err := h.engine.SubmitProposal(r.Context(), userID, oppID, body)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	jsonOK(w, map[string]string{
		"status":  "ok",
		"service": "proposal-service",
		"version": h.version,
	})
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

const maxListLimit = 200

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get("x-user-id")
	if userID == "" {
		jsonError(w, "missing x-user-id header", http.StatusUnauthorized)
		return "", false
	}
	return userID, true
}

func parseLimit(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil || v == 0 || v > maxListLimit {
		return 0, fmt.Errorf("limit must be between 1 and %d", maxListLimit)
	}
	return v, nil
}

func (h *Handler) respond(w http.ResponseWriter, v any, err error) {
	if err != nil {
		h.fail(w, err)
		return
	}
	jsonOK(w, v)
}

// fail maps domain errors to HTTP status codes.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	var ve *automation.ValidationError
	switch {
	case errors.As(err, &ve):
		jsonError(w, ve.Msg, http.StatusBadRequest)
	case errors.Is(err, automation.ErrNotFound),
		errors.Is(err, automation.ErrPolicyNotFound),
		errors.Is(err, automation.ErrProfileNotFound):
		jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, automation.ErrCycleInProgress):
		jsonError(w, err.Error(), http.StatusConflict)
	default:
		h.logger.Error("request failed", "err", err)
		jsonError(w, "internal server error", http.StatusInternalServerError)
	}
}

func jsonOK(w http.ResponseWriter, v any) {
	writeJSON(w, http.StatusOK, v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
