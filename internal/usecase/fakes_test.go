package usecase

import (
	"context"
	"sync"

	"notifyhub/infrastructure/ws"
	"notifyhub/internal/entity"
	"notifyhub/internal/repository"
)

type sentToUser struct {
	userId  string
	payload ws.Payload
}

type fakeDispatcher struct {
	mu       sync.Mutex
	notified []entity.Notification
	sent     []sentToUser
	admins   []any
	all      []any
}

func (d *fakeDispatcher) NotifyUser(userId string, n entity.Notification) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notified = append(d.notified, n)
}

func (d *fakeDispatcher) SendToUser(userId string, payload ws.Payload) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, sentToUser{userId: userId, payload: payload})
}

func (d *fakeDispatcher) BroadcastToAdmins(message any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.admins = append(d.admins, message)
}

func (d *fakeDispatcher) Broadcast(message any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.all = append(d.all, message)
}

type fakeNotificationRepo struct {
	items     []entity.Notification
	lastLimit int
	err       error
}

func (r *fakeNotificationRepo) Create(_ context.Context, n entity.Notification) (entity.Notification, error) {
	if r.err != nil {
		return entity.Notification{}, r.err
	}
	n.Id = "generated"
	r.items = append(r.items, n)
	return n, nil
}

func (r *fakeNotificationRepo) ListRecent(_ context.Context, userId string, limit int) ([]entity.Notification, error) {
	r.lastLimit = limit
	if r.err != nil {
		return nil, r.err
	}
	out := []entity.Notification{}
	for _, n := range r.items {
		if n.UserId == userId && len(out) < limit {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *fakeNotificationRepo) CountUnread(_ context.Context, userId string) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	var n int64
	for _, it := range r.items {
		if it.UserId == userId && !it.IsRead {
			n++
		}
	}
	return n, nil
}

func (r *fakeNotificationRepo) MarkAsRead(_ context.Context, userId, id string) error {
	if r.err != nil {
		return r.err
	}
	for i := range r.items {
		if r.items[i].Id == id && r.items[i].UserId == userId {
			r.items[i].IsRead = true
			return nil
		}
	}
	return repository.ErrNotificationNotFound
}

func (r *fakeNotificationRepo) MarkAllAsRead(_ context.Context, userId string) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	var n int64
	for i := range r.items {
		if r.items[i].UserId == userId && !r.items[i].IsRead {
			r.items[i].IsRead = true
			n++
		}
	}
	return n, nil
}

type fakeUserRepo struct {
	users map[string]entity.User
	err   error
	calls int
}

func (r *fakeUserRepo) FindByID(_ context.Context, userId string) (entity.User, error) {
	r.calls++
	if r.err != nil {
		return entity.User{}, r.err
	}
	u, ok := r.users[userId]
	if !ok {
		return entity.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) UpdateRole(_ context.Context, userId string, role entity.Role) error {
	if r.err != nil {
		return r.err
	}
	u, ok := r.users[userId]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.Role = role
	r.users[userId] = u
	return nil
}
