package api

import (
	"errors"
	"net/http"

	"github.com/borelli28/SIEM/core"
	"github.com/borelli28/SIEM/storage"

	"github.com/gorilla/mux"
)

const maxCaseBodyBytes = 64 << 10

// createCase handles POST /backend/case/{account_id}. A fresh case starts
// with investigation defaults; the console fills in details afterwards.
func (a *API) createCase(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["account_id"]
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "Account ID is required", nil, a.logger)
		return
	}

	newCase := core.NewCase(accountID)
	if err := a.caseStorage.CreateCase(r.Context(), newCase); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create case", err, a.logger)
		return
	}

	respondJSON(w, http.StatusOK, newCase)
}

// createCaseFromAlert handles POST /backend/case/from_alert/{alert_id},
// promoting an alert into a case with snapshot observables attached.
func (a *API) createCaseFromAlert(w http.ResponseWriter, r *http.Request) {
	alertID := mux.Vars(r)["alert_id"]
	if err := validateUUID(alertID); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid alert ID", err, a.logger)
		return
	}

	newCase, err := a.correlator.CreateCaseFromAlert(r.Context(), alertID)
	if err != nil {
		if errors.Is(err, storage.ErrAlertNotFound) {
			writeError(w, http.StatusNotFound, "Alert not found", err, a.logger)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create case from alert", err, a.logger)
		return
	}

	respondJSON(w, http.StatusOK, newCase)
}

// getCase handles GET /backend/case/{id}.
func (a *API) getCase(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := validateUUID(id); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid case ID", err, a.logger)
		return
	}

	c, err := a.caseStorage.GetCase(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrCaseNotFound) {
			writeError(w, http.StatusNotFound, "Case not found", err, a.logger)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get case", err, a.logger)
		return
	}

	respondJSON(w, http.StatusOK, c)
}

// getCases handles GET /backend/case/all/{account_id}.
func (a *API) getCases(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["account_id"]

	cases, err := a.caseStorage.ListCases(r.Context(), accountID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list cases", err, a.logger)
		return
	}

	respondJSON(w, http.StatusOK, cases)
}

// updateCase handles PUT /backend/case/{id}. Last write wins; the single
// writer connection keeps concurrent edits from interleaving.
func (a *API) updateCase(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := validateUUID(id); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid case ID", err, a.logger)
		return
	}

	var c core.Case
	if err := a.decodeJSONBody(w, r, &c, maxCaseBodyBytes); err != nil {
		return
	}
	c.ID = id

	if err := c.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), err, a.logger)
		return
	}

	if err := a.caseStorage.UpdateCase(r.Context(), &c); err != nil {
		if errors.Is(err, storage.ErrCaseNotFound) {
			writeError(w, http.StatusNotFound, "Case not found", err, a.logger)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to update case", err, a.logger)
		return
	}

	respondSuccess(w, "Case updated successfully")
}

// deleteCase handles DELETE /backend/case/{id}. Observables and comments go
// with it via the storage cascade.
func (a *API) deleteCase(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := validateUUID(id); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid case ID", err, a.logger)
		return
	}

	if err := a.caseStorage.DeleteCase(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrCaseNotFound) {
			writeError(w, http.StatusNotFound, "Case not found", err, a.logger)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete case", err, a.logger)
		return
	}

	// Alerts promoted into this case still point at it; detach them so
	// has_case lookups do not report a deleted case.
	if err := a.alertStorage.ClearCaseFromAlerts(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to detach alerts from case", err, a.logger)
		return
	}

	respondSuccess(w, "Case deleted successfully")
}

// observableRequest is the link/unlink request body.
type observableRequest struct {
	Type  core.ObservableType `json:"observable_type"`
	Value string              `json:"value"`
}

// addObservable handles POST /backend/case/{id}/observable. Linking evidence
// that is already on the case succeeds without duplicating it.
func (a *API) addObservable(w http.ResponseWriter, r *http.Request) {
	caseID := mux.Vars(r)["id"]
	if err := validateUUID(caseID); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid case ID", err, a.logger)
		return
	}

	var req observableRequest
	if err := a.decodeJSONBody(w, r, &req, maxCaseBodyBytes); err != nil {
		return
	}

	o := &core.Observable{CaseID: caseID, Type: req.Type, Value: req.Value}
	if err := o.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), err, a.logger)
		return
	}

	if err := a.correlator.LinkObservable(r.Context(), o); err != nil {
		if errors.Is(err, storage.ErrCaseNotFound) {
			writeError(w, http.StatusNotFound, "Case not found", err, a.logger)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to add observable", err, a.logger)
		return
	}

	respondSuccess(w, "Observable added successfully")
}

// deleteObservable handles DELETE /backend/case/{id}/observable.
func (a *API) deleteObservable(w http.ResponseWriter, r *http.Request) {
	caseID := mux.Vars(r)["id"]
	if err := validateUUID(caseID); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid case ID", err, a.logger)
		return
	}

	var req observableRequest
	if err := a.decodeJSONBody(w, r, &req, maxCaseBodyBytes); err != nil {
		return
	}

	err := a.correlator.UnlinkObservable(r.Context(), caseID, req.Type, req.Value)
	if err != nil {
		if errors.Is(err, storage.ErrObservableNotFound) {
			writeError(w, http.StatusNotFound, "Observable not found", err, a.logger)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete observable", err, a.logger)
		return
	}

	respondSuccess(w, "Observable deleted successfully")
}

// getCaseEvents handles GET /backend/case/{id}/events: the IDs of log
// records attached to this case.
func (a *API) getCaseEvents(w http.ResponseWriter, r *http.Request) {
	caseID := mux.Vars(r)["id"]
	if err := validateUUID(caseID); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid case ID", err, a.logger)
		return
	}

	ids, err := a.correlator.CaseLogIDs(r.Context(), caseID)
	if err != nil {
		if errors.Is(err, storage.ErrCaseNotFound) {
			writeError(w, http.StatusNotFound, "Case not found", err, a.logger)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to list case events", err, a.logger)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"log_ids": ids})
}

// getCaseLogIDs handles GET /backend/case/logs/{account_id}: every log ID
// already linked to any of the account's cases.
func (a *API) getCaseLogIDs(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["account_id"]

	ids, err := a.correlator.AccountLogIDs(r.Context(), accountID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list linked logs", err, a.logger)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"log_ids": ids})
}
