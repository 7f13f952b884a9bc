package api

import (
	"errors"
	"net/http"

	"github.com/borelli28/SIEM/storage"

	"github.com/gorilla/mux"
)

// getAlerts handles GET /backend/alert/all/{account_id}.
func (a *API) getAlerts(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["account_id"]

	alerts, err := a.alertStorage.ListAlerts(r.Context(), accountID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list alerts", err, a.logger)
		return
	}

	respondJSON(w, http.StatusOK, alerts)
}

// acknowledgeAlert handles PUT /backend/alert/acknowledge/{id}.
func (a *API) acknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := validateUUID(id); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid alert ID", err, a.logger)
		return
	}

	if err := a.alertStorage.AcknowledgeAlert(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrAlertNotFound) {
			writeError(w, http.StatusNotFound, "Alert not found", err, a.logger)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to acknowledge alert", err, a.logger)
		return
	}

	respondSuccess(w, "Alert acknowledged successfully")
}

// deleteAlert handles DELETE /backend/alert/{id}.
func (a *API) deleteAlert(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := validateUUID(id); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid alert ID", err, a.logger)
		return
	}

	if err := a.alertStorage.DeleteAlert(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrAlertNotFound) {
			writeError(w, http.StatusNotFound, "Alert not found", err, a.logger)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete alert", err, a.logger)
		return
	}

	respondSuccess(w, "Alert deleted successfully")
}

// alertHasCase handles GET /backend/alert/has_case/{id}, reporting whether
// the alert has been pulled into a case and which one.
func (a *API) alertHasCase(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := validateUUID(id); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid alert ID", err, a.logger)
		return
	}

	alert, err := a.alertStorage.GetAlert(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrAlertNotFound) {
			writeError(w, http.StatusNotFound, "Alert not found", err, a.logger)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get alert", err, a.logger)
		return
	}

	response := map[string]interface{}{
		"status":   "success",
		"has_case": alert.CaseID != "",
	}
	if alert.CaseID != "" {
		response["case_id"] = alert.CaseID
	} else {
		response["case_id"] = nil
	}
	respondJSON(w, http.StatusOK, response)
}
