package api

import (
	"errors"
	"net/http"

	"github.com/borelli28/SIEM/core"
	"github.com/borelli28/SIEM/storage"

	"github.com/gorilla/mux"
)

// hostRequest is the create/update host body.
type hostRequest struct {
	Hostname  string `json:"hostname" validate:"required,max=255"`
	IPAddress string `json:"ip_address" validate:"omitempty,ip"`
}

// createHost handles POST /backend/host/{account_id}.
func (a *API) createHost(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["account_id"]
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "Account ID is required", nil, a.logger)
		return
	}

	var req hostRequest
	if err := a.decodeJSONBody(w, r, &req, maxCaseBodyBytes); err != nil {
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err, a.logger)
		return
	}

	host := core.NewHost(accountID, req.Hostname, req.IPAddress)
	if err := host.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), err, a.logger)
		return
	}

	if err := a.hostStorage.CreateHost(r.Context(), host); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create host", err, a.logger)
		return
	}

	respondJSON(w, http.StatusOK, host)
}

// getHosts handles GET /backend/host/all/{account_id}.
func (a *API) getHosts(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["account_id"]

	hosts, err := a.hostStorage.ListHosts(r.Context(), accountID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list hosts", err, a.logger)
		return
	}

	respondJSON(w, http.StatusOK, hosts)
}

// updateHost handles PUT /backend/host/{id}.
func (a *API) updateHost(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := validateUUID(id); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid host ID", err, a.logger)
		return
	}

	var req hostRequest
	if err := a.decodeJSONBody(w, r, &req, maxCaseBodyBytes); err != nil {
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err, a.logger)
		return
	}

	host, err := a.hostStorage.GetHost(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrHostNotFound) {
			writeError(w, http.StatusNotFound, "Host not found", err, a.logger)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get host", err, a.logger)
		return
	}

	host.Hostname = req.Hostname
	host.IPAddress = req.IPAddress
	if err := host.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), err, a.logger)
		return
	}

	if err := a.hostStorage.UpdateHost(r.Context(), host); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update host", err, a.logger)
		return
	}

	respondSuccess(w, "Host updated successfully")
}

// deleteHost handles DELETE /backend/host/{id}.
func (a *API) deleteHost(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := validateUUID(id); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid host ID", err, a.logger)
		return
	}

	if err := a.hostStorage.DeleteHost(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrHostNotFound) {
			writeError(w, http.StatusNotFound, "Host not found", err, a.logger)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete host", err, a.logger)
		return
	}

	respondSuccess(w, "Host deleted successfully")
}
