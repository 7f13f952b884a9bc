package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"

	"github.com/go-playground/validator/v10"
	googleuuid "github.com/google/uuid"
	"go.uber.org/zap"
)

// maxErrorMessageLength caps client-facing error messages.
const maxErrorMessageLength = 256

// validate checks struct tags on decoded request bodies.
var validate = validator.New()

var (
	connStringRe = regexp.MustCompile(`(?:sqlite|mysql|postgres|postgresql|redis)://[^\s"']+`)
	filePathRe   = regexp.MustCompile(`(?:[A-Za-z]:\\|/)(?:[^\\/:*?"<>|\s]+[\\/ ])*[^\\/:*?"<>|\s]+`)
	secretRe     = regexp.MustCompile(`(?i)(password|secret|token|key|credential)[:=]\s*["']?[^"'\s]+["']?`)
)

// sanitizeErrorMessage removes sensitive information from error messages
// before sending them to clients.
func sanitizeErrorMessage(message string) string {
	message = connStringRe.ReplaceAllString(message, "[DATABASE_CONNECTION]")
	message = filePathRe.ReplaceAllString(message, "[FILE_PATH]")
	message = secretRe.ReplaceAllString(message, "$1=[REDACTED]")

	if len(message) > maxErrorMessageLength {
		message = message[:maxErrorMessageLength-3] + "..."
	}
	return message
}

// writeError logs the full error internally and sends a sanitized JSON error
// body to the client.
func writeError(w http.ResponseWriter, statusCode int, message string, err error, logger *zap.SugaredLogger) {
	if logger != nil {
		if err != nil {
			logger.Errorw(message, "error", err.Error(), "status_code", statusCode)
		} else {
			logger.Errorw(message, "status_code", statusCode)
		}
	}

	respondJSON(w, statusCode, map[string]string{
		"status":  "error",
		"message": sanitizeErrorMessage(message),
	})
}

// writeQueryError sends a raw query parse failure to the client. Parse
// errors carry no internals and the client renders the reason verbatim.
func writeQueryError(w http.ResponseWriter, reason string) {
	respondJSON(w, http.StatusBadRequest, map[string]string{"error": reason})
}

// respondJSON writes a JSON response body.
func respondJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

// respondSuccess writes the {status, message} envelope the console expects
// from mutations.
func respondSuccess(w http.ResponseWriter, message string) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": message,
	})
}

// validateUUID validates that a string is a valid UUID of any version.
func validateUUID(id string) error {
	if _, err := googleuuid.Parse(id); err != nil {
		return fmt.Errorf("invalid UUID format: %s", id)
	}
	return nil
}

// decodeJSONBody decodes a JSON request body, rejecting unknown fields and
// oversized payloads.
func (a *API) decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}, maxBytes int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err, a.logger)
		return err
	}
	return nil
}
