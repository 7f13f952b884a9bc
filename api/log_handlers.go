package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/borelli28/SIEM/search"

	"github.com/gorilla/mux"
)

// maxImportBytes bounds the multipart log upload.
const maxImportBytes = 64 << 20

// filterLogs handles GET /backend/log/filter?query=&account_id=&start_time=&end_time=.
// It runs the query language over the account's logs within the time window.
func (a *API) filterLogs(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	accountID := params.Get("account_id")
	if accountID == "" {
		writeQueryError(w, "Account ID is required")
		return
	}
	query := params.Get("query")
	if query == "" {
		writeQueryError(w, "Query is required")
		return
	}

	start, end, err := search.NewTimeRangeParser().ParseWindow(
		params.Get("start_time"), params.Get("end_time"))
	if err != nil {
		writeQueryError(w, err.Error())
		return
	}

	results, err := a.searcher.Search(r.Context(), accountID, query, start, end)
	if err != nil {
		var parseErr *search.ParseError
		if errors.As(err, &parseErr) {
			writeQueryError(w, parseErr.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to execute search", err, a.logger)
		return
	}

	respondJSON(w, http.StatusOK, results)
}

// getAllLogs handles GET /backend/log/all/{account_id}, returning a bounded
// page of the account's most recent window.
func (a *API) getAllLogs(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["account_id"]

	logs, err := a.logStorage.ListLogsRange(r.Context(), accountID,
		time.Time{}, time.Time{}, 0, search.DefaultMaxResults)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list logs", err, a.logger)
		return
	}

	respondJSON(w, http.StatusOK, logs)
}

// importLogs handles POST /backend/log/import: a multipart upload with a
// newline-delimited log file plus account_id and host_id fields.
func (a *API) importLogs(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart payload", err, a.logger)
		return
	}

	accountID := r.FormValue("account_id")
	hostID := r.FormValue("host_id")
	if accountID == "" || hostID == "" {
		writeError(w, http.StatusBadRequest, "account_id and host_id are required", nil, a.logger)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Log file is required", err, a.logger)
		return
	}
	defer file.Close()

	result, err := a.importer.ImportBatch(r.Context(), file, accountID, hostID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to process logs", err, a.logger)
		return
	}

	respondJSON(w, http.StatusOK, result)
}
