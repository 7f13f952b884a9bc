package api

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	csrfCookieName = "csrf_token"
	formIDHeader   = "X-Form-ID"
)

type csrfEntry struct {
	cookieValue string
	expiresAt   time.Time
}

// CSRFManager issues and validates per-form CSRF tokens. A GET on
// /backend/csrf/{form_id} returns a token in the body and a matching
// csrf_token cookie; mutating requests present the X-Form-ID header plus the
// cookie and both must match the stored entry before it expires.
type CSRFManager struct {
	mu     sync.Mutex
	tokens map[string]csrfEntry
	ttl    time.Duration
	logger *zap.SugaredLogger
}

// NewCSRFManager creates a CSRF manager with the given token TTL.
func NewCSRFManager(ttl time.Duration, logger *zap.SugaredLogger) *CSRFManager {
	if ttl <= 0 {
		ttl = 20 * time.Minute
	}
	return &CSRFManager{
		tokens: make(map[string]csrfEntry),
		ttl:    ttl,
		logger: logger,
	}
}

// csrfToken is the issuance response body.
type csrfToken struct {
	Token  string `json:"token"`
	FormID string `json:"form_id"`
}

// Issue generates a token pair for a form ID. Reissuing for the same form ID
// replaces the previous entry.
func (c *CSRFManager) Issue(formID string) (csrfToken, *http.Cookie, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return csrfToken{}, nil, err
	}
	value := base64.StdEncoding.EncodeToString(raw)

	c.mu.Lock()
	c.tokens[formID] = csrfEntry{
		cookieValue: value,
		expiresAt:   time.Now().Add(c.ttl),
	}
	c.mu.Unlock()

	cookie := &http.Cookie{
		Name:     csrfCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(c.ttl.Seconds()),
	}

	return csrfToken{Token: value, FormID: formID}, cookie, nil
}

// Validate checks a request's X-Form-ID header against its csrf_token cookie.
func (c *CSRFManager) Validate(r *http.Request) (int, string) {
	formID := r.Header.Get(formIDHeader)
	if formID == "" {
		return http.StatusForbidden, "Missing form ID"
	}

	cookie, err := r.Cookie(csrfCookieName)
	if err != nil {
		return http.StatusForbidden, "Missing CSRF cookie"
	}

	c.mu.Lock()
	entry, ok := c.tokens[formID]
	c.mu.Unlock()

	if !ok {
		return http.StatusForbidden, "No matching token found for the form ID"
	}
	if time.Now().After(entry.expiresAt) ||
		subtle.ConstantTimeCompare([]byte(entry.cookieValue), []byte(cookie.Value)) != 1 {
		return http.StatusForbidden, "Token or session expired"
	}

	return http.StatusOK, ""
}

// cleanupExpired periodically drops expired token entries.
func (c *CSRFManager) cleanupExpired(stopCh <-chan struct{}) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for formID, entry := range c.tokens {
				if now.After(entry.expiresAt) {
					delete(c.tokens, formID)
				}
			}
			c.mu.Unlock()
		case <-stopCh:
			return
		}
	}
}

// csrfMiddleware validates CSRF tokens on every state-changing request.
func (a *API) csrfMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodDelete:
			if status, reason := a.csrf.Validate(r); status != http.StatusOK {
				a.logger.Warnw("CSRF validation failed",
					"path", r.URL.Path, "reason", reason)
				respondJSON(w, status, map[string]string{
					"status":  "error",
					"message": reason,
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// issueCSRFToken handles GET /backend/csrf/{form_id}.
func (a *API) issueCSRFToken(w http.ResponseWriter, r *http.Request) {
	formID := mux.Vars(r)["form_id"]
	if formID == "" {
		writeError(w, http.StatusBadRequest, "Form ID is required", nil, a.logger)
		return
	}

	token, cookie, err := a.csrf.Issue(formID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue CSRF token", err, a.logger)
		return
	}

	if a.config.API.TLS {
		cookie.Secure = true
	}
	http.SetCookie(w, cookie)
	respondJSON(w, http.StatusOK, token)
}
