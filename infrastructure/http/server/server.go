// Package server is the REST surface of collab-live. Writes go through the
// services, which publish live events once committed.
package server

import (
	"bufio"
	"collab-live/auth"
	"collab-live/contract"
	"collab-live/domain/mimetypes"
	"collab-live/errors"
	"collab-live/services"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	apiPrefix   = "/api/v1"
	FilesPrefix = "/files"
	sniffLen    = 3072
)

type Dependencies struct {
	Projects       services.IProjectService
	Direct         services.IDirectMessageService
	Hub            contract.IHub
	Blobs          contract.BlobStore
	Tokens         *auth.TokenManager
	Live           http.Handler
	Gatherer       prometheus.Gatherer
	MaxUploadBytes int64
	RequestTimeout time.Duration
}

type Server struct {
	log  *slog.Logger
	deps Dependencies
}

func New(log *slog.Logger, deps Dependencies) *Server {
	return &Server{log: log, deps: deps}
}

// NewHTTPServer applies the defaults shared by every listener.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	}
	if s.deps.Live != nil {
		r.Handle("/ws", s.deps.Live)
	}
	r.Get(FilesPrefix+"/*", s.serveFile)

	r.Route(apiPrefix, func(r chi.Router) {
		if s.deps.RequestTimeout > 0 {
			r.Use(middleware.Timeout(s.deps.RequestTimeout))
		}
		r.Use(auth.Middleware(s.deps.Tokens, s.writeError))

		r.Get("/presence", s.presence)

		r.Route("/projects", func(r chi.Router) {
			r.Post("/", s.createProject)
			r.Get("/", s.listProjects)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getProject)
				r.Put("/", s.updateProject)
				r.Delete("/", s.deleteProject)
				r.Post("/team", s.addTeamMember)
				r.Delete("/team/{userId}", s.removeTeamMember)
				r.Post("/tasks", s.addTask)
				r.Put("/tasks/{taskId}/status", s.updateTaskStatus)
				r.Post("/messages", s.sendMessage)
				r.Get("/messages", s.getMessages)
				r.Get("/messages/search", s.searchMessages)
				r.Post("/files", s.uploadFile)
				r.Delete("/files/{fileId}", s.deleteFile)
			})
		})

		r.Post("/messages/{receiverId}", s.sendDirectMessage)
		r.Get("/messages/{peerId}", s.getConversation)
	})
	return r
}

type errorResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError hides the detail of unexpected failures from the caller.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.log.Error("Request failed", "error", err)
		message = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Message: message})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.ErrInvalidPayload
	}
	return nil
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request) {
	key, err := url.PathUnescape(strings.TrimPrefix(chi.URLParam(r, "*"), "/"))
	if err != nil {
		s.writeError(w, errors.ErrInvalidInput)
		return
	}
	blob, err := s.deps.Blobs.Open(r.Context(), key)
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer func() { _ = blob.Close() }()

	reader := bufio.NewReaderSize(blob, sniffLen)
	head, _ := reader.Peek(sniffLen)
	contentType, disposition := mimetypes.Disposition(mimetype.Detect(head).String(), path.Base(key))
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", disposition)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if _, err := io.Copy(w, reader); err != nil {
		s.log.Debug("File download interrupted", "key", key, "error", err)
	}
}
