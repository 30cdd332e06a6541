package ws

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"gridpulse/backend/libs/auth"
)

// Server upgrades dashboard HTTP requests to live generation sessions.
type Server struct {
	manager   *Manager
	resolver  auth.SessionResolver
	events    EventSource
	snapshots SnapshotSource
	cfg       Config
	logger    *zap.Logger
	upgrader  websocket.Upgrader
}

// NewServer builds ws server.
func NewServer(manager *Manager, resolver auth.SessionResolver, events EventSource, snapshots SnapshotSource, cfg Config, logger *zap.Logger) *Server {
	return &Server{
		manager:   manager,
		resolver:  resolver,
		events:    events,
		snapshots: snapshots,
		cfg:       cfg,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWS is HTTP handler for /ws/generation. The caller is authenticated
// before the upgrade; a rejected handshake never creates a session.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	credential, impersonate := handshakeCredentials(r)

	session, err := s.resolver.BeginSession(credential, impersonate)
	if err != nil {
		status, msg := auth.StatusFor(err)
		s.logger.Info("websocket handshake rejected", zap.Int("status", status), zap.Error(err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	if err := s.manager.Start(NewSession(conn, session, s.events, s.snapshots, s.cfg, s.logger)); err != nil {
		s.logger.Warn("rejecting live session during shutdown", zap.Error(err))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(s.cfg.withDefaults().WriteTimeout))
		_ = conn.Close()
	}
}

// handshakeCredentials reads the token from the Authorization header, falling
// back to ?token= since browsers cannot set headers on WebSocket requests.
// The impersonation target comes from the header or ?tenant_id=.
func handshakeCredentials(r *http.Request) (credential, impersonate string) {
	query := r.URL.Query()

	if header := r.Header.Get("Authorization"); header != "" {
		credential, _ = auth.BearerToken(header)
	} else {
		credential = query.Get("token")
	}

	impersonate = strings.TrimSpace(r.Header.Get(auth.ImpersonateHeader))
	if impersonate == "" {
		impersonate = query.Get("tenant_id")
	}
	return credential, impersonate
}
