package ws

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrManagerClosed is returned by Start once Shutdown has begun.
var ErrManagerClosed = errors.New("ws: session manager closed")

// Manager tracks live sessions and owns their lifetime context.
type Manager struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	closed   bool
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *zap.Logger
}

// NewManager builds session manager.
func NewManager(logger *zap.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		sessions: make(map[uuid.UUID]*Session),
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger,
	}
}

// Start registers the session and runs it in its own goroutine until it
// closes, then removes it. After Shutdown the session is not started and the
// caller keeps ownership of its connection.
func (m *Manager) Start(session *Session) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	m.sessions[session.ID()] = session
	m.wg.Add(1)
	tenantSessions := m.countForTenantLocked(session.TenantID())
	m.mu.Unlock()

	m.logger.Debug("session registered",
		zap.String("tenant_id", session.TenantID().String()),
		zap.Int("tenant_sessions", tenantSessions))

	go func() {
		defer m.wg.Done()
		defer m.remove(session.ID())
		_ = session.Run(m.ctx)
	}()
	return nil
}

func (m *Manager) remove(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Count returns number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) countForTenant(tenantID uuid.UUID) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.countForTenantLocked(tenantID)
}

func (m *Manager) countForTenantLocked(tenantID uuid.UUID) int {
	count := 0
	for _, session := range m.sessions {
		if session.TenantID() == tenantID {
			count++
		}
	}
	return count
}

// Shutdown closes every session and waits for them to finish or ctx to end.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.logger.Info("closing sessions", zap.Int("count", m.Count()))
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
