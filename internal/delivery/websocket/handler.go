package websocket

import (
	"context"
	"errors"
	"net/http"
	"time"

	"notifyhub/infrastructure/ws"
	"notifyhub/internal/entity"
	"notifyhub/internal/usecase"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type TokenVerifier interface {
	VerifyToken(token string) (*entity.TokenClaims, error)
}

type RoleResolver interface {
	GetRole(ctx context.Context, userId string) entity.Role
}

type NotificationReader interface {
	GetUnreadCount(ctx context.Context, userId string) (int64, error)
	ListRecent(ctx context.Context, userId string, limit int) ([]entity.Notification, error)
}

type Config struct {
	// CollaboratorTimeout bounds each role lookup and notification store call.
	CollaboratorTimeout time.Duration
	// AllowedOrigin is matched against the Origin header on upgrade. Empty or
	// "*" accepts any origin.
	AllowedOrigin string
}

// WebsocketHandler runs the client protocol: a connection opens
// unauthenticated, must authenticate in-band, and only then reaches the
// notification and job-subscription operations.
type WebsocketHandler struct {
	hub           *ws.Hub
	auth          TokenVerifier
	users         RoleResolver
	notifications NotificationReader
	cfg           Config
	upgrader      websocket.Upgrader
	logger        zerolog.Logger
}

func NewWebsocketHandler(hub *ws.Hub, auth TokenVerifier, users RoleResolver, notifications NotificationReader, cfg Config, logger zerolog.Logger) *WebsocketHandler {
	if cfg.CollaboratorTimeout <= 0 {
		cfg.CollaboratorTimeout = 5 * time.Second
	}
	h := &WebsocketHandler{
		hub:           hub,
		auth:          auth,
		users:         users,
		notifications: notifications,
		cfg:           cfg,
		logger:        logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *WebsocketHandler) checkOrigin(r *http.Request) bool {
	if h.cfg.AllowedOrigin == "" || h.cfg.AllowedOrigin == "*" {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || origin == h.cfg.AllowedOrigin
}

// ServeHTTP upgrades the request and drives the protocol until the peer goes away.
func (h *WebsocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.hub.Registry.Full() {
		http.Error(w, "Server at capacity", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Upgrade error")
		return
	}

	socket := ws.NewSocket(conn, h.logger)
	go socket.WritePump()

	c := h.Open(socket)
	if c == nil {
		return
	}

	ctx := r.Context()
	socket.ReadPump(func(data []byte) {
		h.HandleMessage(ctx, c, data)
	})
	h.HandleClose(c)
}

// Open greets a freshly connected peer. It returns nil when the hub is at
// capacity, in which case the transport has already been closed.
func (h *WebsocketHandler) Open(transport ws.Transport) *ws.Connection {
	if h.hub.Registry.Full() {
		h.logger.Warn().Msg("Connection refused, hub at capacity")
		transport.Close()
		return nil
	}

	c := h.hub.NewConnection(transport)
	c.ArmAuthDeadline(h.hub.Config.AuthTimeout)
	h.send(c, SignalResponse{Type: TypeAuthRequired})
	return c
}

// HandleMessage processes one inbound frame. Frames of a single connection
// must be handed in one at a time, in arrival order.
func (h *WebsocketHandler) HandleMessage(ctx context.Context, c *ws.Connection, data []byte) {
	if c.IsClosed() {
		return
	}
	c.Touch()

	req, err := parseRequest(data)
	if err != nil {
		h.logger.Warn().Err(err).Str("connectionId", c.ID()).Msg("Dropped malformed message")
		return
	}

	if !c.IsAuthenticated() {
		auth, ok := req.(AuthRequest)
		if !ok {
			h.send(c, MessageResponse{Type: TypeError, Message: msgAuthRequired})
			c.Close()
			return
		}
		h.authenticate(ctx, c, auth.Token)
		return
	}

	switch req := req.(type) {
	case AuthRequest:
		// already authenticated
	case PingRequest:
		h.send(c, SignalResponse{Type: TypePong})
	case PongRequest:
		c.MarkAlive()
	case FetchNotificationsRequest:
		h.fetchNotifications(ctx, c, req.Limit)
	case SubscribeJobsRequest:
		c.SetSubscribedToJobs(true)
		h.send(c, MessageResponse{Type: TypeJobsSubscribed, Message: msgJobsSubscribed})
	case UnsubscribeJobsRequest:
		c.SetSubscribedToJobs(false)
	case UnknownRequest:
		h.logger.Warn().
			Str("userId", c.UserID()).
			Str("connectionId", c.ID()).
			Str("type", req.Type).
			Msg("Unknown message type")
	}
}

// HandleClose tears the connection down. It is safe to call more than once.
func (h *WebsocketHandler) HandleClose(c *ws.Connection) {
	if c == nil {
		return
	}
	c.Close()
}

func (h *WebsocketHandler) authenticate(ctx context.Context, c *ws.Connection, token string) {
	claims, err := h.auth.VerifyToken(token)
	if err != nil {
		h.logger.Info().Err(err).Str("connectionId", c.ID()).Msg("Authentication failed")
		h.send(c, MessageResponse{Type: TypeAuthFailed, Message: msgAuthFailed})
		c.Close()
		return
	}
	userId := claims.UserId

	lookupCtx, cancel := context.WithTimeout(ctx, h.cfg.CollaboratorTimeout)
	role := h.users.GetRole(lookupCtx, userId)
	cancel()

	if c.IsClosed() {
		h.logger.Debug().Str("userId", userId).Str("connectionId", c.ID()).Msg("Connection closed during authentication")
		return
	}

	c.Authenticate(userId, role)
	if err := h.hub.Registry.Register(c); err != nil {
		if !errors.Is(err, ws.ErrConnectionClosed) {
			h.logger.Warn().Err(err).Str("userId", userId).Msg("Connection not admitted")
		}
		c.Close()
		return
	}
	c.StartHeartbeat(h.hub.Config.HeartbeatInterval)

	h.logger.Info().
		Str("userId", userId).
		Str("connectionId", c.ID()).
		Str("role", string(role)).
		Msg("Client authenticated")

	h.send(c, ConnectedResponse{Type: TypeConnected, ConnectionId: c.ID()})

	countCtx, cancel := context.WithTimeout(ctx, h.cfg.CollaboratorTimeout)
	defer cancel()
	count, err := h.notifications.GetUnreadCount(countCtx, userId)
	if err != nil {
		h.logger.Warn().Err(err).Str("userId", userId).Msg("Failed to load unread count")
		return
	}
	h.send(c, UnreadCountResponse{Type: TypeUnreadCount, UnreadCount: count})
}

func (h *WebsocketHandler) fetchNotifications(ctx context.Context, c *ws.Connection, limit int) {
	userId := c.UserID()

	listCtx, cancel := context.WithTimeout(ctx, h.cfg.CollaboratorTimeout)
	defer cancel()
	notifications, err := h.notifications.ListRecent(listCtx, userId, usecase.NormalizeLimit(limit))
	if err != nil {
		h.logger.Warn().Err(err).Str("userId", userId).Msg("Failed to list notifications")
		return
	}
	if notifications == nil {
		notifications = []entity.Notification{}
	}
	h.send(c, NotificationsListResponse{Type: TypeNotificationsList, Notifications: notifications})
}

func (h *WebsocketHandler) send(c *ws.Connection, frame any) {
	if err := c.Send(frame); err != nil {
		h.logger.Debug().Err(err).Str("connectionId", c.ID()).Msg("Send failed")
	}
}
