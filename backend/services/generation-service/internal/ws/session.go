package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gridpulse/backend/libs/auth"
	"gridpulse/backend/services/generation-service/internal/hub"
	"gridpulse/backend/services/generation-service/internal/metrics"
	"gridpulse/backend/services/generation-service/internal/models"
)

// Conn is the part of *websocket.Conn a session uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	SetPingHandler(h func(appData string) error)
	Close() error
}

// EventSource hands out hub subscriptions.
type EventSource interface {
	Subscribe() *hub.Subscription
}

// SnapshotSource builds the periodic portfolio snapshot of a tenant.
type SnapshotSource interface {
	Snapshot(ctx context.Context, tenantID uuid.UUID) (models.PortfolioSnapshot, error)
}

// State is the lifecycle stage of a session.
type State int32

const (
	StateConnecting State = iota
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

var (
	errClientClosed     = errors.New("client closed connection")
	errHeartbeatTimeout = errors.New("heartbeat timeout")
	errWriteFailed      = errors.New("write failed")
)

// Config holds per-session timings.
type Config struct {
	HeartbeatInterval time.Duration
	ClientTimeout     time.Duration
	SnapshotInterval  time.Duration
	WriteTimeout      time.Duration
	SendBuffer        int
}

func (c Config) withDefaults() Config {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 5 * time.Second
	}
	if c.ClientTimeout <= 0 {
		c.ClientTimeout = 10 * time.Second
	}
	if c.SnapshotInterval <= 0 {
		c.SnapshotInterval = 5 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 32
	}
	return c
}

type welcomeMessage struct {
	Type     string    `json:"type"`
	TenantID uuid.UUID `json:"tenant_id"`
}

type tickMessage struct {
	Type string `json:"type"`
	models.PortfolioSnapshot
}

// Session is one live dashboard connection. Its tenant is fixed when the
// session is created and never changes.
type Session struct {
	id        uuid.UUID
	conn      Conn
	auth      auth.Session
	events    EventSource
	snapshots SnapshotSource
	cfg       Config
	logger    *zap.Logger

	send          chan []byte
	state         atomic.Int32
	lastHeartbeat atomic.Int64
}

// NewSession builds a session in the Connecting state.
func NewSession(conn Conn, session auth.Session, events EventSource, snapshots SnapshotSource, cfg Config, logger *zap.Logger) *Session {
	cfg = cfg.withDefaults()
	id := uuid.New()
	return &Session{
		id:        id,
		conn:      conn,
		auth:      session,
		events:    events,
		snapshots: snapshots,
		cfg:       cfg,
		logger: logger.With(
			zap.String("session_id", id.String()),
			zap.String("tenant_id", session.EffectiveTenantID.String()),
			zap.String("caller_id", session.CallerID.String()),
		),
		send: make(chan []byte, cfg.SendBuffer),
	}
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// TenantID returns the tenant this session is scoped to.
func (s *Session) TenantID() uuid.UUID {
	return s.auth.EffectiveTenantID
}

// State returns the current lifecycle stage.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(state State) {
	s.state.Store(int32(state))
}

func (s *Session) touch() {
	s.lastHeartbeat.Store(time.Now().UnixNano())
}

func (s *Session) sinceHeartbeat() time.Duration {
	return time.Since(time.Unix(0, s.lastHeartbeat.Load()))
}

// Run drives the session until the client leaves, the heartbeat times out,
// the hub closes or ctx is cancelled. All loops and the hub subscription are
// released before Run returns; the returned error is the close cause.
func (s *Session) Run(ctx context.Context) error {
	sub := s.events.Subscribe()
	s.touch()
	s.setState(StateActive)
	metrics.WSSessions.Inc()
	s.logger.Info("session started", zap.Bool("impersonating", s.auth.Impersonating()))

	s.enqueue(welcomeMessage{Type: "welcome", TenantID: s.TenantID()}, "welcome")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.readLoop() })
	g.Go(func() error { return s.heartbeatLoop(gctx) })
	g.Go(func() error { return s.forwardLoop(gctx, sub) })
	g.Go(func() error { return s.snapshotLoop(gctx) })
	g.Go(func() error { return s.writeLoop(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		s.setState(StateClosing)
		deadline := time.Now().Add(s.cfg.WriteTimeout)
		_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		return s.conn.Close()
	})

	err := g.Wait()
	sub.Close()
	s.setState(StateClosed)

	reason := closeReason(err)
	metrics.WSSessions.Dec()
	metrics.WSSessionsClosed.WithLabelValues(reason).Inc()
	s.logger.Info("session closed", zap.String("reason", reason), zap.Error(err))
	return err
}

func closeReason(err error) string {
	switch {
	case errors.Is(err, errHeartbeatTimeout):
		return "heartbeat_timeout"
	case errors.Is(err, errClientClosed):
		return "client_closed"
	case errors.Is(err, hub.ErrHubClosed):
		return "hub_closed"
	case errors.Is(err, errWriteFailed):
		return "write_failed"
	default:
		return "shutdown"
	}
}

// readLoop consumes inbound frames. Any frame, ping or pong counts as liveness.
func (s *Session) readLoop() error {
	s.conn.SetPongHandler(func(string) error {
		s.touch()
		return nil
	})
	s.conn.SetPingHandler(func(data string) error {
		s.touch()
		err := s.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(s.cfg.WriteTimeout))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return fmt.Errorf("%w: %v", errClientClosed, err)
		}
		s.touch()
	}
}

func (s *Session) heartbeatLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if idle := s.sinceHeartbeat(); idle > s.cfg.ClientTimeout {
				s.logger.Info("client heartbeat missed", zap.Duration("idle", idle))
				return errHeartbeatTimeout
			}
			deadline := time.Now().Add(s.cfg.WriteTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return fmt.Errorf("%w: ping: %v", errWriteFailed, err)
			}
		}
	}
}

// forwardLoop delivers hub events of this session's tenant only.
func (s *Session) forwardLoop(ctx context.Context, sub *hub.Subscription) error {
	tenantID := s.TenantID()
	for {
		event, err := sub.Recv(ctx)
		if err != nil {
			var lag *hub.LagError
			if errors.As(err, &lag) {
				s.logger.Debug("session lagged behind hub", zap.Uint64("skipped", lag.Skipped))
				continue
			}
			return err
		}
		if event.TenantID != tenantID {
			continue
		}
		s.enqueue(event, "event")
	}
}

func (s *Session) snapshotLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.SnapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			snapshot, err := s.snapshots.Snapshot(ctx, s.TenantID())
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger.Warn("portfolio snapshot failed", zap.Error(err))
				continue
			}
			s.enqueue(tickMessage{Type: "uretim_tick", PortfolioSnapshot: snapshot}, "uretim_tick")
		}
	}
}

// writeLoop is the only goroutine writing data frames to the connection.
func (s *Session) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-s.send:
			if err := s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
				return fmt.Errorf("%w: %v", errWriteFailed, err)
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return fmt.Errorf("%w: %v", errWriteFailed, err)
			}
		}
	}
}

// enqueue queues v for the writer, dropping it when the buffer is full.
func (s *Session) enqueue(v any, kind string) {
	payload, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("failed to encode outgoing message", zap.String("type", kind), zap.Error(err))
		return
	}
	select {
	case s.send <- payload:
		metrics.WSMessagesSent.WithLabelValues(kind).Inc()
	default:
		metrics.WSMessagesDropped.Inc()
		s.logger.Warn("dropping outgoing message, buffer full", zap.String("type", kind))
	}
}
