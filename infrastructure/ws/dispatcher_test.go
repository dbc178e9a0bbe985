package ws

import (
	"testing"
	"time"

	"notifyhub/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_NotifyUserReachesOnlyThatUser(t *testing.T) {
	h := newTestHub(5, 100)
	_, a1 := connect(t, h, "alice", entity.RoleUser)
	_, a2 := connect(t, h, "alice", entity.RoleUser)
	_, b := connect(t, h, "bob", entity.RoleUser)

	h.Dispatcher.NotifyUser("alice", entity.Notification{Id: "n1", UserId: "alice", Title: "Hi"})

	for _, tr := range []*fakeTransport{a1, a2} {
		msgs := tr.messages(t)
		require.Len(t, msgs, 1)
		assert.Equal(t, "new_notification", msgs[0]["type"])
		n := msgs[0]["notification"].(map[string]any)
		assert.Equal(t, "n1", n["id"])
		assert.Equal(t, "Hi", n["title"])
	}
	assert.Empty(t, b.messages(t))
}

func TestDispatcher_NoConnectionsIsSilent(t *testing.T) {
	h := newTestHub(5, 100)

	assert.NotPanics(t, func() {
		h.Dispatcher.NotifyUser("ghost", entity.Notification{Id: "n1"})
		h.Dispatcher.SendToUser("ghost", Payload{"type": "unread_count", "count": 1})
		h.Dispatcher.BroadcastToAdmins(Payload{"type": "job_update"})
		h.Dispatcher.Broadcast(Payload{"type": "announcement"})
	})
}

func TestDispatcher_SkipsClosedConnections(t *testing.T) {
	h := newTestHub(5, 100)
	_, open := connect(t, h, "alice", entity.RoleUser)
	_, broken := connect(t, h, "alice", entity.RoleUser)

	// transport dies without the connection noticing yet
	broken.mu.Lock()
	broken.closed = true
	broken.mu.Unlock()

	sent := h.Dispatcher.deliver(h.Registry.UserConnections("alice"), []byte(`{"type":"x"}`))
	assert.Equal(t, 1, sent)
	assert.Len(t, open.messages(t), 1)
	assert.Empty(t, broken.messages(t))
}

func TestDispatcher_SendToUserAddsTimestamp(t *testing.T) {
	h := newTestHub(5, 100)
	_, tr := connect(t, h, "alice", entity.RoleUser)
	h.Dispatcher.now = func() time.Time {
		return time.Date(2024, 3, 1, 12, 30, 45, 123_000_000, time.FixedZone("X", 3600))
	}

	payload := Payload{"type": "unread_count", "count": 3}
	h.Dispatcher.SendToUser("alice", payload)

	msgs := tr.messages(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, "unread_count", msgs[0]["type"])
	assert.EqualValues(t, 3, msgs[0]["count"])
	assert.Equal(t, "2024-03-01T11:30:45.123Z", msgs[0]["timestamp"])
	assert.NotContains(t, payload, "timestamp", "caller payload must not be mutated")
}

func TestDispatcher_BroadcastToAdminsOnlyReachesAdmins(t *testing.T) {
	h := newTestHub(5, 100)
	_, admin1 := connect(t, h, "root", entity.RoleAdmin)
	_, admin2 := connect(t, h, "ops", entity.RoleAdmin)
	_, user := connect(t, h, "alice", entity.RoleUser)

	h.Dispatcher.BroadcastToAdmins(Payload{"type": "job_update", "job": map[string]any{"id": "j1"}})

	assert.Equal(t, []string{"job_update"}, admin1.types(t))
	assert.Equal(t, []string{"job_update"}, admin2.types(t))
	assert.Empty(t, user.messages(t))
}

func TestDispatcher_BroadcastReachesEveryone(t *testing.T) {
	h := newTestHub(5, 100)
	_, admin := connect(t, h, "root", entity.RoleAdmin)
	_, u1 := connect(t, h, "alice", entity.RoleUser)
	_, u2 := connect(t, h, "bob", entity.RoleUser)

	h.Dispatcher.Broadcast(Payload{"type": "maintenance"})

	for _, tr := range []*fakeTransport{admin, u1, u2} {
		assert.Equal(t, []string{"maintenance"}, tr.types(t))
	}
}

func TestDispatcher_FullBufferClosesSlowConsumer(t *testing.T) {
	h := newTestHub(5, 100)
	c, tr := connect(t, h, "alice", entity.RoleUser)
	tr.mu.Lock()
	tr.full = true
	tr.mu.Unlock()

	h.Dispatcher.Broadcast(Payload{"type": "maintenance"})

	assert.True(t, c.IsClosed())
	assert.Equal(t, 0, h.Registry.Count())
}
