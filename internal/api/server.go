// Package api is the HTTP shell around the job pipeline, the quota ledger and the
// export renderer. Authentication happens upstream; the caller's account arrives in
// the X-Account-ID header.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/akiwumi/typemyaudio/internal/dataset"
	"github.com/akiwumi/typemyaudio/internal/export"
	"github.com/akiwumi/typemyaudio/internal/logger"
	"github.com/akiwumi/typemyaudio/internal/ports"
	"github.com/akiwumi/typemyaudio/internal/quota"
)

const (
	AccountHeader = "X-Account-ID"

	defaultMaxUpload     = 500 << 20
	defaultWatchInterval = time.Second
)

// Ledger is the part of quota.Ledger the shell uses.
type Ledger interface {
	Admit(ctx context.Context, accountID string) (quota.Decision, error)
	Usage(ctx context.Context, accountID string) (quota.Summary, error)
}

type Deps struct {
	Jobs    ports.JobRepository
	Reports dataset.Source
	Ledger  Ledger
	Queue   ports.JobQueue
	Storage ports.ObjectStorage
	Exports *export.Service
	Clock   ports.Clock

	// MaxUploadBytes caps PUT /uploads bodies. Zero means 500 MiB.
	MaxUploadBytes int64
	// WatchInterval is how often the watch feed polls the job. Zero means one second.
	WatchInterval time.Duration
}

type Server struct {
	Deps
	log      *logger.Logger
	upgrader websocket.Upgrader
}

func New(deps Deps) *Server {
	if deps.Clock == nil {
		deps.Clock = ports.SystemClock{}
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = defaultMaxUpload
	}
	if deps.WatchInterval <= 0 {
		deps.WatchInterval = defaultWatchInterval
	}
	return &Server{
		Deps: deps,
		log:  logger.New().Component("api"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the routed mux wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /languages", s.handleLanguages)

	mux.Handle("POST /jobs", s.account(s.handleSubmit))
	mux.Handle("GET /jobs", s.account(s.handleListJobs))
	mux.Handle("GET /jobs/{id}", s.account(s.handleGetJob))
	mux.Handle("PUT /jobs/{id}", s.account(s.handleUpdateJob))
	mux.Handle("DELETE /jobs/{id}", s.account(s.handleDeleteJob))
	mux.Handle("GET /jobs/{id}/watch", s.account(s.handleWatch))
	mux.Handle("POST /exports/{id}", s.account(s.handleExport))
	mux.Handle("PUT /uploads/{filename}", s.account(s.handleUpload))
	mux.Handle("GET /usage", s.account(s.handleUsage))
	mux.Handle("GET /usage/report.xlsx", s.account(s.handleUsageReport))

	return s.logRequests(mux)
}

type accountKey struct{}

func accountID(r *http.Request) string {
	id, _ := r.Context().Value(accountKey{}).(string)
	return id
}

func (s *Server) account(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(AccountHeader)
		if id == "" {
			writeError(w, http.StatusUnauthorized, "Missing account")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), accountKey{}, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.WithRequest(r).WithFields(logrus.Fields{
			"status":      rec.status,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("request handled")
	})
}

type errorBody struct {
	Error      string `json:"error"`
	UpgradeURL string `json:"upgrade_url,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}
