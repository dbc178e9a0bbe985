package ws

import (
	"encoding/json"
	"time"

	"notifyhub/internal/entity"

	"github.com/rs/zerolog"
)

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Payload is a free-form outbound frame. It must carry a "type" key.
type Payload map[string]any

type newNotificationFrame struct {
	Type         string              `json:"type"`
	Notification entity.Notification `json:"notification"`
}

// Dispatcher pushes server-originated frames to registered connections.
// It only reads the Registry; delivery failures are logged, never returned.
type Dispatcher struct {
	registry *Registry
	logger   zerolog.Logger
	now      func() time.Time
}

func NewDispatcher(registry *Registry, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		logger:   logger,
		now:      time.Now,
	}
}

// NotifyUser sends a new_notification frame to every open connection of userId.
func (d *Dispatcher) NotifyUser(userId string, notification entity.Notification) {
	data, err := json.Marshal(newNotificationFrame{Type: "new_notification", Notification: notification})
	if err != nil {
		d.logger.Error().Err(err).Str("userId", userId).Msg("Failed to encode notification")
		return
	}
	d.deliver(d.registry.UserConnections(userId), data)
}

// SendToUser stamps payload with the server time and sends it to every
// open connection of userId.
func (d *Dispatcher) SendToUser(userId string, payload Payload) {
	stamped := make(Payload, len(payload)+1)
	for k, v := range payload {
		stamped[k] = v
	}
	stamped["timestamp"] = d.now().UTC().Format(timestampLayout)

	data, err := json.Marshal(stamped)
	if err != nil {
		d.logger.Error().Err(err).Str("userId", userId).Msg("Failed to encode message")
		return
	}
	d.deliver(d.registry.UserConnections(userId), data)
}

// BroadcastToAdmins sends message to every connection authenticated with the
// admin role. Job-lifecycle and job-statistics events go through here.
func (d *Dispatcher) BroadcastToAdmins(message any) {
	data, err := json.Marshal(message)
	if err != nil {
		d.logger.Error().Err(err).Msg("Failed to encode admin broadcast")
		return
	}

	conns := d.registry.Connections()
	admins := conns[:0]
	for _, c := range conns {
		if c.IsAdmin() {
			admins = append(admins, c)
		}
	}
	d.deliver(admins, data)
}

// Broadcast sends message to every authenticated connection.
func (d *Dispatcher) Broadcast(message any) {
	data, err := json.Marshal(message)
	if err != nil {
		d.logger.Error().Err(err).Msg("Failed to encode broadcast")
		return
	}
	d.deliver(d.registry.Connections(), data)
}

func (d *Dispatcher) deliver(conns []*Connection, data []byte) int {
	sent := 0
	for _, c := range conns {
		if !c.IsOpen() {
			continue
		}
		if err := c.SendRaw(data); err != nil {
			d.logger.Debug().Err(err).
				Str("userId", c.UserID()).
				Str("connectionId", c.ID()).
				Msg("Skipped delivery")
			continue
		}
		sent++
	}
	return sent
}
