package live

import (
	"sync"
	"testing"
	"time"

	"github.com/mizajour/leadline/internal/models"
	"github.com/rs/zerolog"
)

func newTestRegistry() *Registry {
	return NewRegistry(zerolog.Nop())
}

func TestRegister_AddsToActiveSet(t *testing.T) {
	r := newTestRegistry()
	conn := r.Register()
	if conn.ID() == "" {
		t.Error("expected non-empty connection id")
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}
}

func TestUnregister_Idempotent(t *testing.T) {
	r := newTestRegistry()
	conn := r.Register()

	r.Unregister(conn)
	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
	// Second call is a no-op, not a panic.
	r.Unregister(conn)
	r.Unregister(nil)

	select {
	case <-conn.Done():
	default:
		t.Error("Done not closed after unregister")
	}
}

func TestBroadcast_DeliversToAllActive(t *testing.T) {
	r := newTestRegistry()
	a := r.Register()
	b := r.Register()

	ev := NewMessageEvent(7, &models.Message{Body: "hi"})
	r.Broadcast(ev)

	for _, conn := range []*Conn{a, b} {
		select {
		case got := <-conn.Events():
			if got.CustomerID != 7 || got.Type != "new_message" {
				t.Errorf("event = %+v", got)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestBroadcast_SkipsRemovedConnection(t *testing.T) {
	r := newTestRegistry()
	open := r.Register()
	closed := r.Register()
	r.Unregister(closed)

	r.Broadcast(NewMessageEvent(1, nil))

	select {
	case <-open.Events():
	case <-time.After(time.Second):
		t.Fatal("open connection did not receive event")
	}
	select {
	case ev := <-closed.Events():
		t.Errorf("closed connection received %+v", ev)
	default:
	}
}

func TestBroadcast_EvictsSlowConnection(t *testing.T) {
	r := newTestRegistry()
	slow := r.Register()

	// Fill the connection's buffer without draining it; the overflowing
	// broadcast counts as a delivery failure and removes it.
	for i := 0; i <= connBufferSize; i++ {
		r.Broadcast(NewMessageEvent(uint(i), nil))
	}

	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0 after evicting slow connection", r.Len())
	}
	select {
	case <-slow.Done():
	default:
		t.Error("slow connection not closed")
	}

	// Eviction does not disturb a later, healthy connection.
	healthy := r.Register()
	r.Broadcast(NewMessageEvent(99, nil))
	select {
	case ev := <-healthy.Events():
		if ev.CustomerID != 99 {
			t.Errorf("event customer = %d, want 99", ev.CustomerID)
		}
	case <-time.After(time.Second):
		t.Fatal("healthy connection did not receive event")
	}
}

func TestBroadcast_EmptyRegistry(t *testing.T) {
	r := newTestRegistry()
	// Must not panic or block.
	r.Broadcast(NewMessageEvent(1, nil))
}

func TestBroadcast_ConcurrentWithUnregister(t *testing.T) {
	r := newTestRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		conn := r.Register()
		wg.Add(2)
		go func(c *Conn) {
			defer wg.Done()
			r.Unregister(c)
		}(conn)
		go func() {
			defer wg.Done()
			r.Broadcast(NewMessageEvent(1, nil))
		}()
	}
	wg.Wait()

	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
}

func TestClose_RemovesAll(t *testing.T) {
	r := newTestRegistry()
	a := r.Register()
	b := r.Register()

	r.Close()
	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
	for _, conn := range []*Conn{a, b} {
		select {
		case <-conn.Done():
		default:
			t.Error("connection not closed by Close")
		}
	}
}
