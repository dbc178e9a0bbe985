package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"notifyhub/internal/entity"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	RelayChannel   = "notifyhub:events"
	publishTimeout = 3 * time.Second
)

type relayKind string

const (
	relayNotifyUser relayKind = "notify_user"
	relaySendToUser relayKind = "send_to_user"
	relayAdmins     relayKind = "admins"
	relayBroadcast  relayKind = "broadcast"
)

type relayEnvelope struct {
	FromServerId string          `json:"fromServerId"`
	Kind         relayKind       `json:"kind"`
	UserId       string          `json:"userId,omitempty"`
	Payload      json.RawMessage `json:"payload"`
}

// RedisRelay fans dispatches out across hub instances. Every call is
// delivered to the local Dispatcher right away and published on Redis; other
// instances apply what they receive to their own Dispatcher. Envelopes that
// originate from this instance are ignored on receipt.
type RedisRelay struct {
	client   *redis.Client
	serverId string
	local    *Dispatcher
	logger   zerolog.Logger
}

func NewRedisRelay(client *redis.Client, serverId string, local *Dispatcher, logger zerolog.Logger) *RedisRelay {
	return &RedisRelay{
		client:   client,
		serverId: serverId,
		local:    local,
		logger:   logger.With().Str("serverId", serverId).Logger(),
	}
}

// Run consumes the relay channel until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, RelayChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", RelayChannel, err)
	}
	r.logger.Info().Str("channel", RelayChannel).Msg("Redis relay subscribed")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if err := r.handleMessage(msg.Payload); err != nil {
				r.logger.Warn().Err(err).Msg("Dropped relay message")
			}
		}
	}
}

func (r *RedisRelay) handleMessage(raw string) error {
	var env relayEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if env.FromServerId == r.serverId {
		return nil
	}

	switch env.Kind {
	case relayNotifyUser:
		var n entity.Notification
		if err := json.Unmarshal(env.Payload, &n); err != nil {
			return fmt.Errorf("decode notification: %w", err)
		}
		r.local.NotifyUser(env.UserId, n)
	case relaySendToUser:
		var p Payload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		r.local.SendToUser(env.UserId, p)
	case relayAdmins:
		r.local.BroadcastToAdmins(env.Payload)
	case relayBroadcast:
		r.local.Broadcast(env.Payload)
	default:
		return fmt.Errorf("unknown relay kind %q", env.Kind)
	}
	return nil
}

func (r *RedisRelay) NotifyUser(userId string, notification entity.Notification) {
	r.local.NotifyUser(userId, notification)
	r.publish(relayNotifyUser, userId, notification)
}

func (r *RedisRelay) SendToUser(userId string, payload Payload) {
	r.local.SendToUser(userId, payload)
	r.publish(relaySendToUser, userId, payload)
}

func (r *RedisRelay) BroadcastToAdmins(message any) {
	r.local.BroadcastToAdmins(message)
	r.publish(relayAdmins, "", message)
}

func (r *RedisRelay) Broadcast(message any) {
	r.local.Broadcast(message)
	r.publish(relayBroadcast, "", message)
}

func (r *RedisRelay) publish(kind relayKind, userId string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		r.logger.Error().Err(err).Str("kind", string(kind)).Msg("Error marshaling relay payload")
		return
	}
	msg, err := json.Marshal(relayEnvelope{
		FromServerId: r.serverId,
		Kind:         kind,
		UserId:       userId,
		Payload:      body,
	})
	if err != nil {
		r.logger.Error().Err(err).Str("kind", string(kind)).Msg("Error marshaling relay envelope")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := r.client.Publish(ctx, RelayChannel, msg).Err(); err != nil {
		r.logger.Error().Err(err).Str("kind", string(kind)).Msg("Error publishing to Redis")
	}
}
