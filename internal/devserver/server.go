// Package devserver is an in-memory implementation of the Sawlah backend
// contract. Tools are simulated with canned output so the client can be
// exercised without the real scanners.
package devserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/user/sawlah/internal/model"
	"github.com/user/sawlah/internal/util"
)

// Default credentials seeded into every server.
const (
	DefaultUser     = "admin"
	DefaultPassword = "sawlah"
)

// Options configures a Server.
type Options struct {
	Addr string
	// Step is the delay between simulated output lines.
	Step time.Duration
}

type account struct {
	password string
	role     string
}

// Server is the HTTP + WebSocket surface of the development backend.
type Server struct {
	opts     Options
	router   chi.Router
	upgrader websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.RWMutex
	users     map[string]account
	tokens    map[string]string
	projects  map[int64]model.Project
	nextProj  int64
	tasks     map[string]*task
	pipelines map[string]*pipelineRun
	recon     map[string]*reconRun
	reports   map[string]map[string]*reportFile
	generated map[int64][]byte

	notes *feed
}

// New creates a server with the default account.
func New(opts Options) *Server {
	if opts.Step <= 0 {
		opts.Step = 200 * time.Millisecond
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		opts:   opts,
		router: chi.NewRouter(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		ctx:       ctx,
		cancel:    cancel,
		users:     map[string]account{DefaultUser: {password: DefaultPassword, role: "admin"}},
		tokens:    make(map[string]string),
		projects:  make(map[int64]model.Project),
		nextProj:  1,
		tasks:     make(map[string]*task),
		pipelines: make(map[string]*pipelineRun),
		recon:     make(map[string]*reconRun),
		reports:   map[string]map[string]*reportFile{"nikto": {}, "wafw00f": {}},
		generated: make(map[int64][]byte),
		notes:     newFeed(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	r.Post("/api/auth/login", s.handleLogin)
	r.Post("/api/auth/register", s.handleRegister)

	r.Group(func(r chi.Router) {
		r.Use(s.requireToken)

		r.Get("/api/auth/me", s.handleMe)

		r.Get("/api/projects", s.handleListProjects)
		r.Post("/api/projects", s.handleCreateProject)
		r.Get("/api/projects/{id}", s.handleGetProject)
		r.Delete("/api/projects/{id}", s.handleDeleteProject)

		r.Post("/api/tools/run", s.handleRun)
		r.Post("/api/tools/run-raw", s.handleRunRaw)
		r.Get("/api/tools/status/{id}", s.handleStatus)
		r.Delete("/api/tools/kill/{id}", s.handleKill)
		r.Get("/api/tools/list", s.handleListTasks)
		r.Get("/api/tools/history", s.handleHistory)
		r.Get("/api/tools/scans/{project}", s.handleScans)
		r.Post("/api/tools/auto-exploit", s.handleAutoExploit)
		r.Get("/api/tools/ws/{id}", s.handleTaskWS)

		r.Post("/api/automation/run", s.handleRunPipeline)
		r.Post("/api/automation/quick", s.handleQuickPipeline)
		r.Get("/api/automation/status/{id}", s.handlePipelineStatus)
		r.Get("/api/automation/list", s.handleListPipelines)

		r.Post("/api/reports/{project}", s.handleGenerateReport)
		r.Get("/api/reports/{project}/download", s.handleDownloadReport)

		r.Post("/api/webrecon/run", s.handleRunWebRecon)
		r.Get("/api/webrecon/status/{id}", s.handleWebReconStatus)
		r.Get("/api/webrecon/sessions", s.handleWebReconSessions)
		r.Delete("/api/webrecon/kill/{id}", s.handleKillWebRecon)

		for _, scanner := range []string{"nikto", "wafw00f"} {
			scanner := scanner
			r.Post("/api/"+scanner+"/run", s.handleRunScanner(scanner))
			r.Get("/api/"+scanner+"/reports", s.handleScannerReports(scanner))
			r.Get("/api/"+scanner+"/reports/{file}", s.handleScannerReport(scanner, false))
			r.Get("/api/"+scanner+"/reports/{file}/download", s.handleScannerReport(scanner, true))
		}

		r.Get("/api/map/targets", s.handleMapTargets)
		r.Get("/api/map/targets/{target}", s.handleMapGraph)
		r.Post("/api/map/auto-scan", s.handleAutoScan)

		r.Get("/api/notifications", s.handleNotifications)
		r.Post("/api/notifications/read-all", s.handleMarkAllRead)
		r.Post("/api/notifications/{id}/read", s.handleMarkRead)
		r.Get("/ws/notifications", s.handleNotificationsWS)
	})
}

// requireToken rejects requests without a known bearer token. WebSocket
// clients that cannot set headers may pass ?token= instead.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		s.mu.RLock()
		_, ok := s.tokens[token]
		s.mu.RUnlock()
		if !ok {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	util.Debug("devserver: %s %s", r.Method, r.URL.Path)
	s.router.ServeHTTP(w, r)
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:        s.opts.Addr,
		Handler:     s,
		ReadTimeout: 15 * time.Second,
		// streaming responses stay open
		WriteTimeout: 0,
	}
}

// Close stops every simulated task and waits for them to exit.
func (s *Server) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *Server) newToken(username string) string {
	token := uuid.NewString()
	s.mu.Lock()
	s.tokens[token] = username
	s.mu.Unlock()
	return token
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeDetail answers with an HTTP error status.
func writeDetail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

// writeError answers 200 with an embedded error, as the backend does for
// unknown tasks and pipelines.
func writeError(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, map[string]string{"error": msg})
}

func decode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
