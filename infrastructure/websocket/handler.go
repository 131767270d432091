// Package websocket exposes the live layer over websocket connections.
// Clients may only join and leave rooms; every resource event they see was
// produced server-side after a committed write.
package websocket

import (
	"collab-live/auth"
	"collab-live/contract"
	"collab-live/domain"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
)

type Handler struct {
	log            *slog.Logger
	hub            contract.IHub
	tokens         *auth.TokenManager
	bufferSize     int
	writeTimeout   time.Duration
	originPatterns []string
}

func NewHandler(log *slog.Logger, hub contract.IHub, tokens *auth.TokenManager, bufferSize int,
	writeTimeout time.Duration, originPatterns []string) *Handler {
	return &Handler{
		log:            log,
		hub:            hub,
		tokens:         tokens,
		bufferSize:     bufferSize,
		writeTimeout:   writeTimeout,
		originPatterns: originPatterns,
	}
}

// ServeHTTP upgrades the request and blocks until the session ends.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		h.log.Debug("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	id := domain.ConnectionID(uuid.NewString())
	identity := h.identify(r)
	log := h.log.With("connection_id", id, "identity", identity)
	s := newSession(log, h.hub, conn, domain.Connection{ID: id, Identity: identity, ConnectedAt: time.Now().UTC()},
		h.bufferSize, h.writeTimeout)
	s.serve(r.Context())
}

// identify prefers a signed token over a bare userId. Anything malformed
// yields the anonymous identity rather than a rejected connection.
func (h *Handler) identify(r *http.Request) domain.IdentityID {
	query := r.URL.Query()
	if token := query.Get("token"); token != "" && h.tokens != nil {
		claims, err := h.tokens.ValidateToken(token)
		if err != nil {
			h.log.Debug("Invalid websocket token, connecting anonymously", "error", err)
			return ""
		}
		identity, _ := auth.ParseIdentity(claims.UserID)
		return identity
	}
	identity, ok := auth.ParseIdentity(query.Get("userId"))
	if !ok && query.Has("userId") {
		h.log.Debug("Malformed userId, connecting anonymously")
	}
	return identity
}
