package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"faceswap/internal/auth"
	"faceswap/internal/domain"
	"faceswap/internal/infra"
	"faceswap/internal/middleware"
)

// refreshGrace is how long after expiry a token may still be refreshed.
const refreshGrace = 24 * time.Hour

// LedgerApp serves the credit ledger and generation history API.
type LedgerApp struct {
	Credits        domain.CreditRepository
	Generations    domain.GenerationRepository
	Signer         *auth.Signer
	InitialCredits int
	Logger         *infra.Logger
	Now            func() time.Time
}

type tokenRequest struct {
	UserID string `json:"userId"`
	Locale string `json:"locale,omitempty"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (a *LedgerApp) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}

func (a *LedgerApp) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log := a.Logger
		if log == nil {
			log = infra.NopLogger()
		}
		log.Error().Err(err).Str("request_id", middleware.RequestIDFromContext(r.Context())).Msg("ledger: request failed")
	}
	middleware.WriteError(w, r, status, domain.ErrorCode(err), err.Error())
}

// owner checks that the path user is the token subject.
func (a *LedgerApp) owner(w http.ResponseWriter, r *http.Request, userID string) bool {
	if userID == "" || userID != middleware.UserIDFromContext(r.Context()) {
		middleware.WriteError(w, r, http.StatusForbidden, "forbidden", "token does not belong to this user")
		return false
	}
	return true
}

// IssueToken mints a user token, creating the balance row on first contact:
// POST /v1/auth/token.
func (a *LedgerApp) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeBody(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if req.UserID == "" {
		a.fail(w, r, domain.NewValidationError("userId", "userId is required"))
		return
	}
	if _, err := a.Credits.EnsureUser(r.Context(), req.UserID, a.InitialCredits); err != nil {
		a.fail(w, r, err)
		return
	}
	token, exp, err := a.Signer.Issue(req.UserID, req.Locale)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, tokenResponse{Token: token, ExpiresAt: exp})
}

// RefreshToken swaps a recently expired token: POST /v1/auth/refresh.
func (a *LedgerApp) RefreshToken(w http.ResponseWriter, r *http.Request) {
	token, ok := auth.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		middleware.WriteError(w, r, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	fresh, exp, err := a.Signer.Refresh(token, refreshGrace)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, tokenResponse{Token: fresh, ExpiresAt: exp})
}

// GetUser returns the balance row: GET /v1/users/{user_id}.
func (a *LedgerApp) GetUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	if !a.owner(w, r, userID) {
		return
	}
	credits, err := a.Credits.GetUser(r.Context(), userID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, credits)
}

// AppendEntry stores one signed ledger entry: POST /v1/credit-history.
func (a *LedgerApp) AppendEntry(w http.ResponseWriter, r *http.Request) {
	var entry domain.CreditEntry
	if err := decodeBody(w, r, &entry); err != nil {
		a.fail(w, r, err)
		return
	}
	if !a.owner(w, r, entry.UserJoin) {
		return
	}
	if entry.Count == 0 || entry.Uses == "" {
		a.fail(w, r, domain.NewValidationError("count", "count and uses are required"))
		return
	}
	entry.ID = uuid.NewString()
	if entry.Timestamp.IsZero() {
		entry.Timestamp = a.now().UTC()
	}
	if err := a.Credits.AppendEntry(r.Context(), &entry); err != nil {
		a.fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, entry)
}

// UpdateCredits overwrites the cached balance: PUT /v1/users/{user_id}/credits.
func (a *LedgerApp) UpdateCredits(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	if !a.owner(w, r, userID) {
		return
	}
	var body struct {
		RemainCount *int `json:"remainCount"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		a.fail(w, r, err)
		return
	}
	if body.RemainCount == nil {
		a.fail(w, r, domain.NewValidationError("remainCount", "remainCount is required"))
		return
	}
	if err := a.Credits.UpdateRemainCount(r.Context(), userID, *body.RemainCount); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListGenerations returns unexpired history:
// GET /v1/users/{user_id}/generations?limit=.
func (a *LedgerApp) ListGenerations(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	if !a.owner(w, r, userID) {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	items, err := a.Generations.ListActive(r.Context(), userID, limit, a.now())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if items == nil {
		items = []domain.GenerationRecord{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

// SaveGeneration stores a finished run: POST /v1/generations. The expiry is
// always recomputed from createdAt.
func (a *LedgerApp) SaveGeneration(w http.ResponseWriter, r *http.Request) {
	var rec domain.GenerationRecord
	if err := decodeBody(w, r, &rec); err != nil {
		a.fail(w, r, err)
		return
	}
	if !a.owner(w, r, rec.UserID) {
		return
	}
	if rec.ResultURL == "" {
		a.fail(w, r, domain.NewValidationError("resultUrl", "resultUrl is required"))
		return
	}
	rec.ID = uuid.NewString()
	rec.Stamp(a.now())
	if err := a.Generations.Save(r.Context(), &rec); err != nil {
		a.fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, rec)
}

// DeleteExpired purges the user's expired history:
// DELETE /v1/users/{user_id}/generations/expired.
func (a *LedgerApp) DeleteExpired(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	if !a.owner(w, r, userID) {
		return
	}
	n, err := a.Generations.DeleteExpired(r.Context(), userID, a.now())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// Health reports liveness.
func (a *LedgerApp) Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

