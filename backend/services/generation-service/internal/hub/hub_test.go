package hub

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"gridpulse/backend/services/generation-service/internal/models"
)

func eventN(n int) models.GenerationEvent {
	return models.GenerationEvent{
		TenantID:  uuid.Nil,
		PlantID:   uuid.Nil,
		PlantName: "plant",
		PowerMW:   decimal.NewFromInt(int64(n)),
		Timestamp: time.Unix(int64(n), 0).UTC(),
	}
}

func recvWithin(t *testing.T, sub *Subscription, timeout time.Duration) (models.GenerationEvent, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return sub.Recv(ctx)
}

func TestSubscriberOnlySeesEventsAfterSubscribe(t *testing.T) {
	h := New(10)
	early := h.Subscribe()
	defer early.Close()

	h.Publish(eventN(1))

	late := h.Subscribe()
	defer late.Close()
	h.Publish(eventN(2))

	got, err := recvWithin(t, late, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if !got.PowerMW.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("late subscriber observed event %s, expected 2", got.PowerMW)
	}

	if _, err := recvWithin(t, late, 20*time.Millisecond); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected no further events, got %v", err)
	}
}

func TestPublishPreservesOrderPerSubscriber(t *testing.T) {
	h := New(DefaultCapacity)
	a := h.Subscribe()
	b := h.Subscribe()
	defer a.Close()
	defer b.Close()

	for i := 0; i < 20; i++ {
		h.Publish(eventN(i))
	}

	for _, sub := range []*Subscription{a, b} {
		for i := 0; i < 20; i++ {
			got, err := recvWithin(t, sub, 100*time.Millisecond)
			if err != nil {
				t.Fatalf("recv %d: %v", i, err)
			}
			if got.PowerMW.IntPart() != int64(i) {
				t.Fatalf("expected event %d, got %s", i, got.PowerMW)
			}
		}
	}
}

func TestLaggingSubscriberSeesSingleLagThenOldestRetained(t *testing.T) {
	h := New(100)
	sub := h.Subscribe()
	defer sub.Close()

	for i := 0; i < 150; i++ {
		h.Publish(eventN(i))
	}

	_, err := recvWithin(t, sub, 100*time.Millisecond)
	var lag *LagError
	if !errors.As(err, &lag) {
		t.Fatalf("expected lag error, got %v", err)
	}
	if lag.Skipped != 50 {
		t.Fatalf("expected 50 skipped events, got %d", lag.Skipped)
	}

	for i := 50; i < 150; i++ {
		got, err := recvWithin(t, sub, 100*time.Millisecond)
		if err != nil {
			t.Fatalf("recv after lag at %d: %v", i, err)
		}
		if got.PowerMW.IntPart() != int64(i) {
			t.Fatalf("expected event %d after lag, got %s", i, got.PowerMW)
		}
	}
}

func TestLagIsPerSubscriber(t *testing.T) {
	h := New(4)
	slow := h.Subscribe()
	fast := h.Subscribe()
	defer slow.Close()
	defer fast.Close()

	for i := 0; i < 4; i++ {
		h.Publish(eventN(i))
		if _, err := recvWithin(t, fast, 100*time.Millisecond); err != nil {
			t.Fatalf("fast recv: %v", err)
		}
	}
	h.Publish(eventN(4))

	if got, err := recvWithin(t, fast, 100*time.Millisecond); err != nil || got.PowerMW.IntPart() != 4 {
		t.Fatalf("fast subscriber should not lag, got %v %v", got.PowerMW, err)
	}
	var lag *LagError
	if _, err := recvWithin(t, slow, 100*time.Millisecond); !errors.As(err, &lag) || lag.Skipped != 1 {
		t.Fatalf("expected slow subscriber to skip 1, got %v", err)
	}
}

func TestPublishWithoutSubscribersIsDropped(t *testing.T) {
	h := New(10)
	h.Publish(eventN(1))

	sub := h.Subscribe()
	defer sub.Close()
	if _, err := recvWithin(t, sub, 20*time.Millisecond); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected nothing buffered, got %v", err)
	}
}

func TestRecvWakesOnPublish(t *testing.T) {
	h := New(10)
	sub := h.Subscribe()
	defer sub.Close()

	done := make(chan models.GenerationEvent, 1)
	go func() {
		event, err := recvWithin(t, sub, time.Second)
		if err == nil {
			done <- event
		}
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	h.Publish(eventN(7))

	select {
	case got, ok := <-done:
		if !ok || got.PowerMW.IntPart() != 7 {
			t.Fatalf("blocked receiver did not get published event")
		}
	case <-time.After(time.Second):
		t.Fatalf("receiver was not woken")
	}
}

func TestCloseDrainsThenReportsClosed(t *testing.T) {
	h := New(10)
	sub := h.Subscribe()
	defer sub.Close()

	h.Publish(eventN(1))
	h.Close()
	h.Publish(eventN(2))

	if got, err := recvWithin(t, sub, 100*time.Millisecond); err != nil || got.PowerMW.IntPart() != 1 {
		t.Fatalf("expected buffered event before close, got %v %v", got.PowerMW, err)
	}
	if _, err := recvWithin(t, sub, 100*time.Millisecond); !errors.Is(err, ErrHubClosed) {
		t.Fatalf("expected ErrHubClosed, got %v", err)
	}
}

func TestSubscriptionCloseReleasesSlot(t *testing.T) {
	h := New(10)
	subs := []*Subscription{h.Subscribe(), h.Subscribe(), h.Subscribe()}
	if h.SubscriberCount() != 3 {
		t.Fatalf("expected 3 subscribers, got %d", h.SubscriberCount())
	}
	for _, sub := range subs {
		sub.Close()
		sub.Close()
	}
	if h.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", h.SubscriberCount())
	}
	if _, err := subs[0].Recv(context.Background()); !errors.Is(err, ErrHubClosed) {
		t.Fatalf("expected closed subscription to report ErrHubClosed, got %v", err)
	}
}
