// Package live tracks open dashboard connections and fans out new-message
// events to them.
package live

import (
	"sync"

	"github.com/google/uuid"
	"github.com/mizajour/leadline/internal/models"
	"github.com/rs/zerolog"
)

// connBufferSize is the per-connection event buffer. A connection whose
// buffer is full at broadcast time is treated as failed and removed.
const connBufferSize = 16

// Event is the payload pushed to dashboard connections.
type Event struct {
	Type       string          `json:"type"`
	CustomerID uint            `json:"customerId"`
	Message    *models.Message `json:"message,omitempty"`
}

// NewMessageEvent builds the event broadcast after a message is persisted.
func NewMessageEvent(customerID uint, msg *models.Message) Event {
	return Event{Type: "new_message", CustomerID: customerID, Message: msg}
}

// Conn is one live dashboard connection. It is created by Register and torn
// down by Unregister; delivery failure tears it down as well.
type Conn struct {
	id   string
	ch   chan Event
	done chan struct{}
	once sync.Once
}

// Events returns the channel the connection's events arrive on.
func (c *Conn) Events() <-chan Event { return c.ch }

// Done is closed when the connection leaves the registry.
func (c *Conn) Done() <-chan struct{} { return c.done }

// ID returns the connection's registry identifier.
func (c *Conn) ID() string { return c.id }

func (c *Conn) close() {
	c.once.Do(func() { close(c.done) })
}

// Registry owns the set of active connections. All access to the set goes
// through the registry's mutex; callers never see the set itself.
type Registry struct {
	mu     sync.Mutex
	conns  map[string]*Conn
	logger zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		conns:  make(map[string]*Conn),
		logger: logger.With().Str("component", "live").Logger(),
	}
}

// Register creates a connection and adds it to the active set.
func (r *Registry) Register() *Conn {
	conn := &Conn{
		id:   uuid.NewString(),
		ch:   make(chan Event, connBufferSize),
		done: make(chan struct{}),
	}
	r.mu.Lock()
	r.conns[conn.id] = conn
	n := len(r.conns)
	r.mu.Unlock()

	r.logger.Debug().Str("conn_id", conn.id).Int("active", n).Msg("connection registered")
	return conn
}

// Unregister removes a connection from the active set. Calling it for a
// connection that has already been removed is a no-op.
func (r *Registry) Unregister(conn *Conn) {
	if conn == nil {
		return
	}
	r.mu.Lock()
	_, present := r.conns[conn.id]
	delete(r.conns, conn.id)
	n := len(r.conns)
	r.mu.Unlock()

	conn.close()
	if present {
		r.logger.Debug().Str("conn_id", conn.id).Int("active", n).Msg("connection unregistered")
	}
}

// Broadcast delivers the event to every active connection, best-effort. A
// connection that cannot accept the event (buffer full or already gone) is
// removed; other connections are unaffected and the caller never sees an
// error.
func (r *Registry) Broadcast(event Event) {
	r.mu.Lock()
	targets := make([]*Conn, 0, len(r.conns))
	for _, conn := range r.conns {
		targets = append(targets, conn)
	}
	r.mu.Unlock()

	for _, conn := range targets {
		select {
		case conn.ch <- event:
		case <-conn.done:
			// Already closed between snapshot and send.
		default:
			r.logger.Warn().Str("conn_id", conn.id).Msg("dropping slow connection")
			r.Unregister(conn)
		}
	}
}

// Len returns the number of active connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// Close removes every connection, used at process shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[string]*Conn)
	r.mu.Unlock()

	for _, conn := range conns {
		conn.close()
	}
}
