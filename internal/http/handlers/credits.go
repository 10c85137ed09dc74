package handlers

import (
	"net/http"
	"strconv"
)

// Credits returns the caller's balance: GET /v1/credits.
func (a *App) Credits(w http.ResponseWriter, r *http.Request) {
	credits, err := a.Ledger.Balance(r.Context(), a.currentUserID(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, credits)
}

// History lists unexpired generations: GET /v1/history?limit=.
func (a *App) History(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := a.Ledger.GetGenerationHistory(r.Context(), a.currentUserID(r), limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// CleanupHistory drops the caller's expired generations:
// DELETE /v1/history/expired.
func (a *App) CleanupHistory(w http.ResponseWriter, r *http.Request) {
	n, err := a.Ledger.CleanupExpired(r.Context(), a.currentUserID(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]int64{"deleted": n})
}
