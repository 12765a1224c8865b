package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/FACorreiaa/budget-tracker/internal/domain/categorization"
	"github.com/FACorreiaa/budget-tracker/pkg/middleware"
)

// RuleManager creates and deletes unit and category rules.
type RuleManager interface {
	CreateRule(ctx context.Context, kind categorization.Kind, rule *categorization.Rule) error
	DeleteRule(ctx context.Context, kind categorization.Kind, id int64) error
}

// RulesHandler handles rule management endpoints
type RulesHandler struct {
	rules  RuleManager
	logger *slog.Logger
}

// NewRulesHandler creates a new rules handler
func NewRulesHandler(rules RuleManager, logger *slog.Logger) *RulesHandler {
	return &RulesHandler{rules: rules, logger: logger}
}

// Register mounts the rule routes on mux.
func (h *RulesHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/rules/{kind}", h.CreateRule)
	mux.HandleFunc("DELETE /api/rules/{kind}/{id}", h.DeleteRule)
}

// CreateRule handles POST /api/rules/{kind}
func (h *RulesHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RuleType  categorization.RuleType  `json:"rule_type"`
		Pattern   string                   `json:"pattern"`
		MatchType categorization.MatchType `json:"match_type"`
		TargetID  int64                    `json:"target_id"`
		Priority  int                      `json:"priority"`
		Active    *bool                    `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rule := &categorization.Rule{
		RuleType:  req.RuleType,
		Pattern:   req.Pattern,
		MatchType: req.MatchType,
		TargetID:  req.TargetID,
		Priority:  req.Priority,
		Active:    req.Active == nil || *req.Active,
	}
	if rule.RuleType == "" {
		rule.RuleType = categorization.RuleTypeDescription
	}
	if rule.MatchType == "" {
		rule.MatchType = categorization.MatchContains
	}

	if err := h.rules.CreateRule(r.Context(), categorization.Kind(r.PathValue("kind")), rule); err != nil {
		h.writeError(w, r, "failed to create rule", err)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, rule)
}

// DeleteRule handles DELETE /api/rules/{kind}/{id}
func (h *RulesHandler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid rule id")
		return
	}

	if err := h.rules.DeleteRule(r.Context(), categorization.Kind(r.PathValue("kind")), id); err != nil {
		h.writeError(w, r, "failed to delete rule", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *RulesHandler) writeError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	switch {
	case errors.Is(err, categorization.ErrRuleNotFound):
		middleware.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, categorization.ErrInvalidRule), errors.Is(err, categorization.ErrUnknownKind):
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), msg, slog.Any("error", err))
		middleware.WriteError(w, http.StatusInternalServerError, msg)
	}
}
