// Package api exposes the SIEM backend over HTTP: log search and import,
// alert and case management, observable linkage, hosts, detection rules,
// and CSRF token issuance, all rooted at /backend.
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/borelli28/SIEM/config"
	"github.com/borelli28/SIEM/core"
	"github.com/borelli28/SIEM/ingest"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// rateLimiterEntry holds a rate limiter with last seen time.
type rateLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LogStorer is the log storage surface the API needs.
type LogStorer interface {
	GetLog(ctx context.Context, id string) (*core.LogRecord, error)
	ListLogsRange(ctx context.Context, accountID string, start, end time.Time, offset, limit int) ([]core.LogRecord, error)
}

// AlertStorer is the alert storage surface the API needs.
type AlertStorer interface {
	GetAlert(ctx context.Context, id string) (*core.Alert, error)
	ListAlerts(ctx context.Context, accountID string) ([]core.Alert, error)
	AcknowledgeAlert(ctx context.Context, id string) error
	ClearCaseFromAlerts(ctx context.Context, caseID string) error
	DeleteAlert(ctx context.Context, id string) error
}

// CaseStorer is the case storage surface the API needs.
type CaseStorer interface {
	CreateCase(ctx context.Context, c *core.Case) error
	GetCase(ctx context.Context, id string) (*core.Case, error)
	ListCases(ctx context.Context, accountID string) ([]core.Case, error)
	UpdateCase(ctx context.Context, c *core.Case) error
	DeleteCase(ctx context.Context, id string) error
}

// CommentStorer is the comment storage surface the API needs.
type CommentStorer interface {
	CreateComment(ctx context.Context, c *core.Comment) error
	GetComment(ctx context.Context, id string) (*core.Comment, error)
	ListComments(ctx context.Context, caseID string) ([]core.Comment, error)
	UpdateComment(ctx context.Context, id, text string) error
	DeleteComment(ctx context.Context, id string) error
}

// HostStorer is the host storage surface the API needs.
type HostStorer interface {
	CreateHost(ctx context.Context, h *core.Host) error
	GetHost(ctx context.Context, id string) (*core.Host, error)
	ListHosts(ctx context.Context, accountID string) ([]core.Host, error)
	UpdateHost(ctx context.Context, h *core.Host) error
	DeleteHost(ctx context.Context, id string) error
}

// RuleStorer is the rule storage surface the API needs.
type RuleStorer interface {
	CreateRule(ctx context.Context, r *core.Rule) error
	GetRule(ctx context.Context, id string) (*core.Rule, error)
	ListRules(ctx context.Context, accountID string) ([]core.Rule, error)
	UpdateRule(ctx context.Context, r *core.Rule) error
	DeleteRule(ctx context.Context, id string) error
}

// Searcher runs parsed queries over the log store.
type Searcher interface {
	Search(ctx context.Context, accountID, query string, start, end time.Time) ([]core.LogRecord, error)
}

// Correlator manages the alert -> case -> observable graph.
type Correlator interface {
	LinkObservable(ctx context.Context, o *core.Observable) error
	UnlinkObservable(ctx context.Context, caseID string, obsType core.ObservableType, value string) error
	CreateCaseFromAlert(ctx context.Context, alertID string) (*core.Case, error)
	CaseLogIDs(ctx context.Context, caseID string) ([]string, error)
	AccountLogIDs(ctx context.Context, accountID string) ([]string, error)
}

// API holds the HTTP server and its dependencies.
type API struct {
	router         *mux.Router
	server         *http.Server
	logStorage     LogStorer
	alertStorage   AlertStorer
	caseStorage    CaseStorer
	commentStorage CommentStorer
	hostStorage    HostStorer
	ruleStorage    RuleStorer
	searcher       Searcher
	correlator     Correlator
	importer       *ingest.Importer
	csrf           *CSRFManager
	config         *config.Config
	logger         *zap.SugaredLogger
	rateLimiters   map[string]*rateLimiterEntry
	rateLimitersMu sync.Mutex
	stopCh         chan struct{}
}

// Deps bundles the API server dependencies.
type Deps struct {
	Logs       LogStorer
	Alerts     AlertStorer
	Cases      CaseStorer
	Comments   CommentStorer
	Hosts      HostStorer
	Rules      RuleStorer
	Searcher   Searcher
	Correlator Correlator
	Importer   *ingest.Importer
}

// NewAPI creates the API server and wires its routes.
func NewAPI(deps Deps, cfg *config.Config, logger *zap.SugaredLogger) *API {
	api := &API{
		router:         mux.NewRouter(),
		logStorage:     deps.Logs,
		alertStorage:   deps.Alerts,
		caseStorage:    deps.Cases,
		commentStorage: deps.Comments,
		hostStorage:    deps.Hosts,
		ruleStorage:    deps.Rules,
		searcher:       deps.Searcher,
		correlator:     deps.Correlator,
		importer:       deps.Importer,
		csrf:           NewCSRFManager(cfg.CSRF.TokenTTL, logger),
		config:         cfg,
		logger:         logger,
		rateLimiters:   make(map[string]*rateLimiterEntry),
		stopCh:         make(chan struct{}),
	}
	api.setupRoutes()
	go api.cleanupRateLimiters()
	go api.csrf.cleanupExpired(api.stopCh)
	return api
}

// setupRoutes sets up the API routes.
func (a *API) setupRoutes() {
	a.router.Use(a.requestIDMiddleware)
	a.router.Use(a.corsMiddleware)
	a.router.Use(a.rateLimitMiddleware)
	a.router.Use(a.metricsMiddleware)

	backend := a.router.PathPrefix("/backend").Subrouter()
	backend.Use(a.csrfMiddleware)

	backend.HandleFunc("/csrf/{form_id}", a.issueCSRFToken).Methods("GET")

	backend.HandleFunc("/log/filter", a.filterLogs).Methods("GET")
	backend.HandleFunc("/log/all/{account_id}", a.getAllLogs).Methods("GET")
	backend.HandleFunc("/log/import", a.importLogs).Methods("POST")

	backend.HandleFunc("/alert/all/{account_id}", a.getAlerts).Methods("GET")
	backend.HandleFunc("/alert/acknowledge/{id}", a.acknowledgeAlert).Methods("PUT")
	backend.HandleFunc("/alert/has_case/{id}", a.alertHasCase).Methods("GET")
	backend.HandleFunc("/alert/{id}", a.deleteAlert).Methods("DELETE")

	// Fixed-path case routes come before the {id} wildcards.
	backend.HandleFunc("/case/all/{account_id}", a.getCases).Methods("GET")
	backend.HandleFunc("/case/logs/{account_id}", a.getCaseLogIDs).Methods("GET")
	backend.HandleFunc("/case/from_alert/{alert_id}", a.createCaseFromAlert).Methods("POST")
	backend.HandleFunc("/case/comment/{id}", a.updateComment).Methods("PUT")
	backend.HandleFunc("/case/comment/{id}", a.deleteComment).Methods("DELETE")
	backend.HandleFunc("/case/{account_id}", a.createCase).Methods("POST")
	backend.HandleFunc("/case/{id}", a.getCase).Methods("GET")
	backend.HandleFunc("/case/{id}", a.updateCase).Methods("PUT")
	backend.HandleFunc("/case/{id}", a.deleteCase).Methods("DELETE")
	backend.HandleFunc("/case/{id}/observable", a.addObservable).Methods("POST")
	backend.HandleFunc("/case/{id}/observable", a.deleteObservable).Methods("DELETE")
	backend.HandleFunc("/case/{id}/comment", a.addComment).Methods("POST")
	backend.HandleFunc("/case/{id}/comments", a.getComments).Methods("GET")
	backend.HandleFunc("/case/{id}/events", a.getCaseEvents).Methods("GET")

	backend.HandleFunc("/host/all/{account_id}", a.getHosts).Methods("GET")
	backend.HandleFunc("/host/{account_id}", a.createHost).Methods("POST")
	backend.HandleFunc("/host/{id}", a.updateHost).Methods("PUT")
	backend.HandleFunc("/host/{id}", a.deleteHost).Methods("DELETE")

	backend.HandleFunc("/rule/all/{account_id}", a.getRules).Methods("GET")
	backend.HandleFunc("/rule/import", a.importRules).Methods("POST")
	backend.HandleFunc("/rule/{account_id}", a.createRule).Methods("POST")
	backend.HandleFunc("/rule/{id}", a.updateRule).Methods("PUT")
	backend.HandleFunc("/rule/{id}", a.deleteRule).Methods("DELETE")

	a.router.HandleFunc("/health", a.healthCheck).Methods("GET")
	a.router.Handle("/metrics", promhttp.Handler())
}

// Router returns the configured handler, for tests.
func (a *API) Router() http.Handler {
	return a.router
}

// Start starts the API server.
func (a *API) Start(addr string) error {
	a.server = &http.Server{
		Addr:         addr,
		Handler:      a.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return a.server.ListenAndServe()
}

// StartTLS starts the API server with TLS.
func (a *API) StartTLS(addr, certFile, keyFile string) error {
	a.server = &http.Server{
		Addr:         addr,
		Handler:      a.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return a.server.ListenAndServeTLS(certFile, keyFile)
}

// Stop stops the API server.
func (a *API) Stop(ctx context.Context) error {
	close(a.stopCh)
	if a.server != nil {
		return a.server.Shutdown(ctx)
	}
	return nil
}

// healthCheck reports service liveness.
func (a *API) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
