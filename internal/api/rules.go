package api

import (
	"net/http"
	"strings"

	"github.com/Hibaxbelghith/argus-sub000/internal/rules"
)

// RuleRequest is the body of rule create and update requests.
type RuleRequest struct {
	UserID        string              `json:"user_id"`
	Name          string              `json:"name"`
	ConditionType rules.ConditionType `json:"condition_type"`
	Condition     rules.Condition     `json:"condition_value"`
	Action        rules.Action        `json:"action"`
	Priority      int                 `json:"priority"`
	IsActive      *bool               `json:"is_active,omitempty"`
}

// ToggleRuleRequest is the body of a rule toggle request.
type ToggleRuleRequest struct {
	IsActive bool `json:"is_active"`
}

func (req *RuleRequest) rule() *rules.Rule {
	r := &rules.Rule{
		UserID:        req.UserID,
		Name:          strings.TrimSpace(req.Name),
		ConditionType: req.ConditionType,
		Condition:     req.Condition,
		Action:        req.Action,
		Priority:      req.Priority,
		IsActive:      true,
	}
	if req.IsActive != nil {
		r.IsActive = *req.IsActive
	}
	return r
}

// CreateRule creates a rule.
// POST /api/v1/rules
func (h *Handlers) CreateRule(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req RuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rule := req.rule()
	if err := rules.Validate(rule); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	created, err := h.repo.CreateRule(r.Context(), rule)
	if err != nil {
		handleStoreError(w, err, "rule", req.UserID)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// GetRule retrieves a rule by ID.
// GET /api/v1/rules?rule_id=
func (h *Handlers) GetRule(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	ruleID, ok := requireQueryParam(w, r, "rule_id")
	if !ok {
		return
	}

	rule, err := h.repo.GetRule(r.Context(), ruleID)
	if err != nil {
		handleStoreError(w, err, "rule", ruleID)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// ListRules lists a user's rules, newest first.
// GET /api/v1/rules?user_id=
func (h *Handlers) ListRules(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	userID, ok := requireQueryParam(w, r, "user_id")
	if !ok {
		return
	}

	list, err := h.repo.ListRules(r.Context(), userID)
	if err != nil {
		handleStoreError(w, err, "rule", userID)
		return
	}
	if list == nil {
		list = []*rules.Rule{}
	}
	writeJSON(w, http.StatusOK, list)
}

// UpdateRule replaces a rule's definition. The owner cannot change.
// PUT /api/v1/rules/update?rule_id=
func (h *Handlers) UpdateRule(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPut) {
		return
	}
	ruleID, ok := requireQueryParam(w, r, "rule_id")
	if !ok {
		return
	}

	var req RuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	existing, err := h.repo.GetRule(ctx, ruleID)
	if err != nil {
		handleStoreError(w, err, "rule", ruleID)
		return
	}
	if req.UserID != "" && req.UserID != existing.UserID {
		http.Error(w, "user_id cannot be changed", http.StatusBadRequest)
		return
	}

	req.UserID = existing.UserID
	rule := req.rule()
	if req.IsActive == nil {
		rule.IsActive = existing.IsActive
	}
	rule.ID = ruleID
	rule.CreatedAt = existing.CreatedAt
	if err := rules.Validate(rule); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	updated, err := h.repo.UpdateRule(ctx, rule)
	if err != nil {
		handleStoreError(w, err, "rule", ruleID)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// ToggleRule activates or deactivates a rule.
// POST /api/v1/rules/toggle?rule_id=
func (h *Handlers) ToggleRule(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	ruleID, ok := requireQueryParam(w, r, "rule_id")
	if !ok {
		return
	}

	var req ToggleRuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rule, err := h.repo.SetRuleActive(r.Context(), ruleID, req.IsActive)
	if err != nil {
		handleStoreError(w, err, "rule", ruleID)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// DeleteRule deletes a rule.
// DELETE /api/v1/rules/delete?rule_id=
func (h *Handlers) DeleteRule(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodDelete) {
		return
	}
	ruleID, ok := requireQueryParam(w, r, "rule_id")
	if !ok {
		return
	}

	if err := h.repo.DeleteRule(r.Context(), ruleID); err != nil {
		handleStoreError(w, err, "rule", ruleID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
