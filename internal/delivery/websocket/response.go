package websocket

import "notifyhub/internal/entity"

const (
	TypeAuthRequired      = "auth_required"
	TypeConnected         = "connected"
	TypeAuthFailed        = "auth_failed"
	TypeError             = "error"
	TypeUnreadCount       = "unread_count"
	TypeNotificationsList = "notifications_list"
	TypeJobsSubscribed    = "jobs_subscribed"
)

const (
	msgAuthRequired   = "Authentication required"
	msgAuthFailed     = "Invalid or expired token"
	msgJobsSubscribed = "Subscribed to job updates"
)

// SignalResponse is a frame that carries nothing but its type.
type SignalResponse struct {
	Type string `json:"type"`
}

type MessageResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type ConnectedResponse struct {
	Type         string `json:"type"`
	ConnectionId string `json:"connectionId"`
}

type UnreadCountResponse struct {
	Type        string `json:"type"`
	UnreadCount int64  `json:"unreadCount"`
}

type NotificationsListResponse struct {
	Type          string                `json:"type"`
	Notifications []entity.Notification `json:"notifications"`
}
