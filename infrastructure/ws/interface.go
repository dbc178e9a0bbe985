package ws

import "notifyhub/internal/entity"

// IDispatcher is the producer-facing fan-out API. Both the local Dispatcher
// and the RedisRelay implement it.
type IDispatcher interface {
	NotifyUser(userId string, notification entity.Notification)
	SendToUser(userId string, payload Payload)
	BroadcastToAdmins(message any)
	Broadcast(message any)
}

var (
	_ IDispatcher = (*Dispatcher)(nil)
	_ IDispatcher = (*RedisRelay)(nil)
)
