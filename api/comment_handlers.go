package api

import (
	"errors"
	"net/http"

	"github.com/borelli28/SIEM/core"
	"github.com/borelli28/SIEM/storage"

	"github.com/gorilla/mux"
)

// commentRequest is the create/update comment body.
type commentRequest struct {
	Text string `json:"text"`
}

// addComment handles POST /backend/case/{id}/comment.
func (a *API) addComment(w http.ResponseWriter, r *http.Request) {
	caseID := mux.Vars(r)["id"]
	if err := validateUUID(caseID); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid case ID", err, a.logger)
		return
	}

	var req commentRequest
	if err := a.decodeJSONBody(w, r, &req, maxCaseBodyBytes); err != nil {
		return
	}

	comment := core.NewComment(caseID, req.Text)
	if err := comment.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), err, a.logger)
		return
	}

	if err := a.commentStorage.CreateComment(r.Context(), comment); err != nil {
		if errors.Is(err, storage.ErrCaseNotFound) {
			writeError(w, http.StatusNotFound, "Case not found", err, a.logger)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to add comment", err, a.logger)
		return
	}

	respondJSON(w, http.StatusOK, comment)
}

// getComments handles GET /backend/case/{id}/comments.
func (a *API) getComments(w http.ResponseWriter, r *http.Request) {
	caseID := mux.Vars(r)["id"]
	if err := validateUUID(caseID); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid case ID", err, a.logger)
		return
	}

	comments, err := a.commentStorage.ListComments(r.Context(), caseID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list comments", err, a.logger)
		return
	}

	respondJSON(w, http.StatusOK, comments)
}

// updateComment handles PUT /backend/case/comment/{id}.
func (a *API) updateComment(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := validateUUID(id); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid comment ID", err, a.logger)
		return
	}

	var req commentRequest
	if err := a.decodeJSONBody(w, r, &req, maxCaseBodyBytes); err != nil {
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "Comment cannot be empty", nil, a.logger)
		return
	}

	if err := a.commentStorage.UpdateComment(r.Context(), id, req.Text); err != nil {
		if errors.Is(err, storage.ErrCommentNotFound) {
			writeError(w, http.StatusNotFound, "Comment not found", err, a.logger)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to update comment", err, a.logger)
		return
	}

	respondSuccess(w, "Comment updated successfully")
}

// deleteComment handles DELETE /backend/case/comment/{id}.
func (a *API) deleteComment(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := validateUUID(id); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid comment ID", err, a.logger)
		return
	}

	if err := a.commentStorage.DeleteComment(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrCommentNotFound) {
			writeError(w, http.StatusNotFound, "Comment not found", err, a.logger)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete comment", err, a.logger)
		return
	}

	respondSuccess(w, "Comment deleted successfully")
}
