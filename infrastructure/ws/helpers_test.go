package ws

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"notifyhub/internal/entity"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	mu     sync.Mutex
	frames [][]byte
	closes int
	closed bool
	full   bool
}

func (t *fakeTransport) Send(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrTransportClosed
	}
	if t.full {
		return ErrSendBufferFull
	}
	t.frames = append(t.frames, append([]byte(nil), data...))
	return nil
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closes++
	t.closed = true
	return nil
}

func (t *fakeTransport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed
}

func (t *fakeTransport) isClosed() bool {
	return !t.IsOpen()
}

func (t *fakeTransport) messages(tb testing.TB) []map[string]any {
	tb.Helper()
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]map[string]any, 0, len(t.frames))
	for _, f := range t.frames {
		var m map[string]any
		require.NoError(tb, json.Unmarshal(f, &m))
		out = append(out, m)
	}
	return out
}

func (t *fakeTransport) types(tb testing.TB) []string {
	tb.Helper()
	msgs := t.messages(tb)
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		typ, _ := m["type"].(string)
		out = append(out, typ)
	}
	return out
}

func newTestHub(maxPerUser, maxTotal int) *Hub {
	return NewHub(Config{
		HeartbeatInterval:     time.Hour,
		MaxConnectionsPerUser: maxPerUser,
		MaxConnections:        maxTotal,
	}, zerolog.Nop())
}

// connect opens and authenticates a connection on h without starting its heartbeat.
func connect(t *testing.T, h *Hub, userId string, role entity.Role) (*Connection, *fakeTransport) {
	t.Helper()
	tr := &fakeTransport{}
	c := h.NewConnection(tr)
	c.Authenticate(userId, role)
	require.NoError(t, h.Registry.Register(c))
	return c, tr
}

// registrySize counts entries reachable through the per-user index.
func registrySize(r *Registry) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, conns := range r.byUser {
		n += len(conns)
	}
	return n
}
