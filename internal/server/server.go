package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/minio/minio-go/v7"
)

// BuildInfo carries version metadata injected at startup.
type BuildInfo struct {
	Version string
	Commit  string
}

// Config holds everything the HTTP server needs to run. The stores are
// injected so tests can substitute their own; handlers never reach for
// ambient globals.
type Config struct {
	Addr  string // e.g. ":8080"
	Build BuildInfo

	Auth AuthConfig

	DB     *sql.DB
	Minio  *minio.Client
	Bucket string

	// MaxUploadBytes caps the request body on /submit-poa. Zero means
	// no limit.
	MaxUploadBytes int64

	// CORSOrigin is reflected in Access-Control-Allow-Origin. Empty
	// disables the CORS middleware.
	CORSOrigin string

	// PublicDir, when it names an existing directory, is served at "/"
	// behind the API routes.
	PublicDir string
}

type Server struct {
	httpServer *http.Server
	cfg        Config
}

// New builds the server with all routes registered and the middleware
// chain applied: requestID -> logging -> security headers -> CORS -> mux.
func New(cfg Config) *Server {
	mux := http.NewServeMux()

	mux.Handle("/submit-poa", cfg.submitHandler())
	mux.Handle("/admin/login", cfg.Auth.loginHandler())
	mux.Handle("/admin/logout", cfg.Auth.requireAdmin(cfg.Auth.logoutHandler()))
	mux.Handle("/admin/submissions", cfg.Auth.requireAdmin(cfg.listSubmissionsHandler()))
	mux.Handle("/admin/file/", cfg.Auth.requireAdmin(cfg.downloadFileHandler()))

	mux.HandleFunc("/healthz", cfg.healthHandler)

	// Static frontend, when present. Registered last so API paths win.
	if dir := publicDir(cfg.PublicDir); dir != "" {
		mux.Handle("/", http.FileServer(http.Dir(dir)))
	}

	var handler http.Handler = mux
	handler = corsMiddleware(cfg.CORSOrigin, handler)
	handler = securityHeadersMiddleware(handler)
	handler = loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)

	s := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &Server{httpServer: s, cfg: cfg}
}

// Handler exposes the fully wrapped handler for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.httpServer.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// publicDir returns dir when it names an existing directory, "" otherwise.
func publicDir(dir string) string {
	if dir == "" {
		return ""
	}
	fi, err := os.Stat(dir)
	if err != nil || !fi.IsDir() {
		return ""
	}
	return dir
}

// healthHandler reports liveness plus a quick readiness probe of both
// stores.
func (cfg Config) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	// A nil store means the server came up half-wired; that is as
	// unhealthy as a store that stopped answering.
	dbStatus := "up"
	if cfg.DB == nil {
		dbStatus = "unconfigured"
	} else if err := cfg.DB.PingContext(ctx); err != nil {
		dbStatus = "down"
	}

	blobStatus := "up"
	if cfg.Minio == nil {
		blobStatus = "unconfigured"
	} else if ok, err := cfg.Minio.BucketExists(ctx, cfg.Bucket); err != nil || !ok {
		blobStatus = "down"
	}

	status := http.StatusOK
	overall := "ok"
	if dbStatus != "up" || blobStatus != "up" {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":   overall,
		"database": dbStatus,
		"blob":     blobStatus,
		"version":  cfg.Build.Version,
	})
}
