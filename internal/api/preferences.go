package api

import (
	"net/http"

	"github.com/Hibaxbelghith/argus-sub000/internal/preferences"
)

// GetPreferences returns the user's preferences, creating defaults on first use.
// GET /api/v1/preferences?user_id=
func (h *Handlers) GetPreferences(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	userID, ok := requireQueryParam(w, r, "user_id")
	if !ok {
		return
	}

	rec, err := preferences.GetOrCreate(r.Context(), h.repo, userID, h.now().UTC())
	if err != nil {
		handleStoreError(w, err, "preferences", userID)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// UpdatePreferences replaces the user's preferences.
// PUT /api/v1/preferences?user_id=
func (h *Handlers) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPut) {
		return
	}
	userID, ok := requireQueryParam(w, r, "user_id")
	if !ok {
		return
	}

	ctx := r.Context()
	now := h.now().UTC()
	current, err := preferences.GetOrCreate(ctx, h.repo, userID, now)
	if err != nil {
		handleStoreError(w, err, "preferences", userID)
		return
	}

	// Fields missing from the body keep their current values.
	rec := current.Clone()
	if !decodeJSON(w, r, rec) {
		return
	}
	rec.UserID = userID
	rec.CreatedAt = current.CreatedAt
	rec.UpdatedAt = now
	if err := rec.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.repo.UpdatePreferences(ctx, rec); err != nil {
		handleStoreError(w, err, "preferences", userID)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
