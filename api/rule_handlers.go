package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/borelli28/SIEM/core"
	"github.com/borelli28/SIEM/ingest"
	"github.com/borelli28/SIEM/search"
	"github.com/borelli28/SIEM/storage"

	"github.com/gorilla/mux"
)

const maxRuleBodyBytes = 256 << 10

// ruleRequest is the create/update rule body.
type ruleRequest struct {
	Name        string        `json:"name" validate:"required,max=200"`
	Description string        `json:"description" validate:"max=2000"`
	Condition   string        `json:"condition" validate:"required"`
	Severity    core.Severity `json:"severity" validate:"required"`
	Enabled     *bool         `json:"enabled,omitempty"`
}

// createRule handles POST /backend/rule/{account_id}. The condition must
// parse in the query language before the rule is stored.
func (a *API) createRule(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["account_id"]
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "Account ID is required", nil, a.logger)
		return
	}

	var req ruleRequest
	if err := a.decodeJSONBody(w, r, &req, maxRuleBodyBytes); err != nil {
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err, a.logger)
		return
	}

	if err := search.ValidateQuery(req.Condition); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), err, a.logger)
		return
	}

	rule := core.NewRule(accountID, req.Name, req.Description, req.Condition, req.Severity)
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}
	if err := rule.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), err, a.logger)
		return
	}

	if err := a.ruleStorage.CreateRule(r.Context(), rule); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create rule", err, a.logger)
		return
	}

	respondJSON(w, http.StatusOK, rule)
}

// getRules handles GET /backend/rule/all/{account_id}.
func (a *API) getRules(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["account_id"]

	rules, err := a.ruleStorage.ListRules(r.Context(), accountID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list rules", err, a.logger)
		return
	}

	respondJSON(w, http.StatusOK, rules)
}

// updateRule handles PUT /backend/rule/{id}.
func (a *API) updateRule(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := validateUUID(id); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rule ID", err, a.logger)
		return
	}

	var req ruleRequest
	if err := a.decodeJSONBody(w, r, &req, maxRuleBodyBytes); err != nil {
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err, a.logger)
		return
	}

	if err := search.ValidateQuery(req.Condition); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), err, a.logger)
		return
	}

	rule, err := a.ruleStorage.GetRule(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrRuleNotFound) {
			writeError(w, http.StatusNotFound, "Rule not found", err, a.logger)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get rule", err, a.logger)
		return
	}

	rule.Name = req.Name
	rule.Description = req.Description
	rule.Condition = req.Condition
	rule.Severity = req.Severity
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}
	if err := rule.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), err, a.logger)
		return
	}

	if err := a.ruleStorage.UpdateRule(r.Context(), rule); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update rule", err, a.logger)
		return
	}

	respondSuccess(w, "Rule updated successfully")
}

// deleteRule handles DELETE /backend/rule/{id}.
func (a *API) deleteRule(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := validateUUID(id); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rule ID", err, a.logger)
		return
	}

	if err := a.ruleStorage.DeleteRule(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrRuleNotFound) {
			writeError(w, http.StatusNotFound, "Rule not found", err, a.logger)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete rule", err, a.logger)
		return
	}

	respondSuccess(w, "Rule deleted successfully")
}

// importRules handles POST /backend/rule/import: a multipart upload with a
// Sigma YAML rule file plus an account_id field.
func (a *API) importRules(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRuleBodyBytes)
	if err := r.ParseMultipartForm(maxRuleBodyBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart payload", err, a.logger)
		return
	}

	accountID := r.FormValue("account_id")
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "account_id is required", nil, a.logger)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Rule file is required", err, a.logger)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read rule file", err, a.logger)
		return
	}

	rule, err := ingest.ParseSigmaRule(data, accountID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), err, a.logger)
		return
	}

	if err := a.ruleStorage.CreateRule(r.Context(), rule); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to store imported rule", err, a.logger)
		return
	}

	respondJSON(w, http.StatusOK, rule)
}
