package ws

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gridpulse/backend/services/generation-service/internal/hub"
)

func TestManagerCountsAndShutdown(t *testing.T) {
	h := hub.New(hub.DefaultCapacity)
	manager := NewManager(zap.NewNop())
	tenantA, tenantB := uuid.New(), uuid.New()

	var conns []*fakeConn
	for _, tenant := range []uuid.UUID{tenantA, tenantA, tenantB} {
		conn := newFakeConn()
		conns = append(conns, conn)
		if err := manager.Start(NewSession(conn, tenantSession(tenant), h, &fakeSnapshots{}, quietConfig(), zap.NewNop())); err != nil {
			t.Fatalf("start: %v", err)
		}
	}

	waitFor(t, time.Second, func() bool { return h.SubscriberCount() == 3 })
	if manager.Count() != 3 {
		t.Fatalf("expected 3 sessions, got %d", manager.Count())
	}
	if got := manager.countForTenant(tenantA); got != 2 {
		t.Fatalf("expected 2 sessions for tenant A, got %d", got)
	}
	if got := manager.countForTenant(tenantB); got != 1 {
		t.Fatalf("expected 1 session for tenant B, got %d", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := manager.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if manager.Count() != 0 || h.SubscriberCount() != 0 {
		t.Fatalf("sessions left after shutdown: %d sessions, %d subscribers", manager.Count(), h.SubscriberCount())
	}
	for i, conn := range conns {
		if !conn.isClosed() {
			t.Fatalf("connection %d left open", i)
		}
	}
}

func TestManagerRejectsStartAfterShutdown(t *testing.T) {
	h := hub.New(hub.DefaultCapacity)
	manager := NewManager(zap.NewNop())
	if err := manager.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	conn := newFakeConn()
	err := manager.Start(NewSession(conn, tenantSession(uuid.New()), h, &fakeSnapshots{}, quietConfig(), zap.NewNop()))
	if !errors.Is(err, ErrManagerClosed) {
		t.Fatalf("expected ErrManagerClosed, got %v", err)
	}
	if manager.Count() != 0 || h.SubscriberCount() != 0 {
		t.Fatalf("rejected session was registered")
	}
}

func TestManagerStartRacingShutdown(t *testing.T) {
	h := hub.New(hub.DefaultCapacity)
	manager := NewManager(zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn := newFakeConn()
			if err := manager.Start(NewSession(conn, tenantSession(uuid.New()), h, &fakeSnapshots{}, quietConfig(), zap.NewNop())); err != nil {
				_ = conn.Close()
			}
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := manager.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	wg.Wait()

	waitFor(t, time.Second, func() bool { return manager.Count() == 0 && h.SubscriberCount() == 0 })
}
