package ws

import (
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

const (
	DefaultMaxConnectionsPerUser = 5
	DefaultMaxConnections        = 1000
)

var (
	ErrCapacityExceeded = errors.New("connection capacity exceeded")
	ErrRegistryClosed   = errors.New("registry is shut down")
	ErrNotAuthenticated = errors.New("connection is not authenticated")
)

// Registry is the index of authenticated connections keyed by user. Each
// user's slice is kept in admission order so the oldest is evicted first.
type Registry struct {
	mu         sync.RWMutex
	byUser     map[string][]*Connection
	total      int
	closed     bool
	maxPerUser int
	maxTotal   int
	logger     zerolog.Logger
}

func NewRegistry(maxPerUser, maxTotal int, logger zerolog.Logger) *Registry {
	if maxPerUser <= 0 {
		maxPerUser = DefaultMaxConnectionsPerUser
	}
	if maxTotal <= 0 {
		maxTotal = DefaultMaxConnections
	}
	return &Registry{
		byUser:     make(map[string][]*Connection),
		maxPerUser: maxPerUser,
		maxTotal:   maxTotal,
		logger:     logger,
	}
}

// Register admits an authenticated connection. When the user is at the
// per-user cap the oldest connection is dropped from the index before the
// new one is appended, and closed once the lock is released.
func (r *Registry) Register(c *Connection) error {
	if !c.IsAuthenticated() {
		return ErrNotAuthenticated
	}
	userId := c.UserID()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRegistryClosed
	}
	if c.IsClosed() {
		r.mu.Unlock()
		return ErrConnectionClosed
	}
	if r.total >= r.maxTotal {
		r.mu.Unlock()
		return ErrCapacityExceeded
	}

	var evicted *Connection
	conns := r.byUser[userId]
	if len(conns) >= r.maxPerUser {
		evicted = conns[0]
		conns = append(conns[:0:0], conns[1:]...)
		r.total--
	}
	r.byUser[userId] = append(conns, c)
	r.total++
	total := r.total
	r.mu.Unlock()

	if evicted != nil {
		r.logger.Info().
			Str("userId", userId).
			Str("connectionId", evicted.ID()).
			Msg("Per-user connection limit reached, evicting oldest connection")
		evicted.Close()
	}

	r.logger.Debug().
		Str("userId", userId).
		Str("connectionId", c.ID()).
		Int("total", total).
		Msg("Connection registered")
	return nil
}

// Unregister removes the connection if it is still indexed. It reports
// whether anything was removed, so repeated teardown never double counts.
func (r *Registry) Unregister(userId, connectionId string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.byUser[userId]
	if !ok {
		return false
	}
	for i, c := range conns {
		if c.ID() != connectionId {
			continue
		}
		rest := append(conns[:i:i], conns[i+1:]...)
		if len(rest) == 0 {
			delete(r.byUser, userId)
		} else {
			r.byUser[userId] = rest
		}
		r.total--
		r.logger.Debug().
			Str("userId", userId).
			Str("connectionId", connectionId).
			Int("total", r.total).
			Msg("Connection unregistered")
		return true
	}
	return false
}

// UserConnections returns a copy of the user's connections, oldest first.
func (r *Registry) UserConnections(userId string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.byUser[userId]
	out := make([]*Connection, len(conns))
	copy(out, conns)
	return out
}

// Connection looks up a single connection of userId.
func (r *Registry) Connection(userId, connectionId string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.byUser[userId] {
		if c.ID() == connectionId {
			return c, true
		}
	}
	return nil, false
}

// Connections returns a copy of every registered connection.
func (r *Registry) Connections() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Connection, 0, r.total)
	for _, conns := range r.byUser {
		out = append(out, conns...)
	}
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.total
}

// UserIDs returns the ids of users with at least one connection, sorted.
func (r *Registry) UserIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.byUser))
	for id := range r.byUser {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Full reports whether the global ceiling has been reached.
func (r *Registry) Full() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed || r.total >= r.maxTotal
}

// Shutdown stops further admissions. Existing connections are untouched.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}
