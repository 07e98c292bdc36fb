package sessions

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Session is the record tracked per caller-scoped identifier. Sessions are
// created lazily and expire by store policy; they are never explicitly
// destroyed by the protocol.
type Session struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
}

// Store persists session records. Implementations must be safe for
// concurrent use; the HTTP server dispatches requests on multiple goroutines.
type Store interface {
	// Get returns the session and whether it exists.
	Get(ctx context.Context, id string) (*Session, bool, error)
	// Put inserts or replaces the session record.
	Put(ctx context.Context, sess *Session) error
	// Delete removes the session record if present.
	Delete(ctx context.Context, id string) error
}

// Manager issues and tracks session identifiers against an injected Store.
type Manager struct {
	store Store
	now   func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClock overrides the manager's time source. Used in tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager builds a Manager backed by the given store.
func NewManager(store Store, opts ...ManagerOption) *Manager {
	m := &Manager{store: store, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Resolve returns the session id for a request. A non-empty caller-supplied
// header value is used as-is (idempotent; the server does not validate that
// it previously issued the id). Otherwise a fresh random identifier is
// generated.
func (m *Manager) Resolve(headerValue string) string {
	if headerValue != "" {
		return headerValue
	}
	return uuid.NewString()
}

// Touch records activity on a session, creating the record if absent. The
// lazy creation tolerates ids this server never issued.
func (m *Manager) Touch(ctx context.Context, id string) (*Session, error) {
	now := m.now()
	sess, ok, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		sess = &Session{ID: id, CreatedAt: now}
	}
	sess.LastActivity = now
	if err := m.store.Put(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}
