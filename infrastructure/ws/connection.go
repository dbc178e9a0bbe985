package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"notifyhub/internal/entity"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrTransportClosed  = errors.New("transport closed")
	ErrSendBufferFull   = errors.New("send buffer full")
)

// Transport is the duplex channel under a Connection. Send must not block.
type Transport interface {
	Send(data []byte) error
	Close() error
	IsOpen() bool
}

// Connection is one client session. It starts unauthenticated and is
// promoted by Authenticate; Close tears it down exactly once.
type Connection struct {
	id          string
	transport   Transport
	connectedAt time.Time
	logger      zerolog.Logger

	mu               sync.RWMutex
	userId           string
	role             entity.Role
	authenticated    bool
	subscribedToJobs bool
	lastActivity     time.Time
	heartbeat        *heartbeat
	authTimer        *time.Timer

	isAlive   atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
	onClose   func(c *Connection)
}

// NewConnection wraps transport. onClose runs once, after the transport is
// closed, and is where the owner drops the connection from its registry.
func NewConnection(transport Transport, logger zerolog.Logger, onClose func(c *Connection)) *Connection {
	now := time.Now()
	id := uuid.New().String()
	return &Connection{
		id:           id,
		transport:    transport,
		connectedAt:  now,
		lastActivity: now,
		logger:       logger.With().Str("connectionId", id).Logger(),
		onClose:      onClose,
	}
}

func (c *Connection) ID() string {
	return c.id
}

func (c *Connection) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userId
}

func (c *Connection) Role() entity.Role {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.role
}

func (c *Connection) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authenticated
}

func (c *Connection) IsAdmin() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authenticated && c.role == entity.RoleAdmin
}

func (c *Connection) SubscribedToJobs() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subscribedToJobs
}

func (c *Connection) SetSubscribedToJobs(v bool) {
	c.mu.Lock()
	c.subscribedToJobs = v
	c.mu.Unlock()
}

func (c *Connection) LastActivity() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastActivity
}

// Touch records inbound activity.
func (c *Connection) Touch() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}

func (c *Connection) IsAlive() bool {
	return c.isAlive.Load()
}

// MarkAlive is called when the peer answers a heartbeat ping.
func (c *Connection) MarkAlive() {
	c.isAlive.Store(true)
}

func (c *Connection) IsClosed() bool {
	return c.closed.Load()
}

// IsOpen reports whether frames can still be written to the peer.
func (c *Connection) IsOpen() bool {
	return !c.closed.Load() && c.transport.IsOpen()
}

// Authenticate binds the connection to an identity. It is a no-op on an
// already authenticated connection.
func (c *Connection) Authenticate(userId string, role entity.Role) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.authenticated {
		return
	}
	c.userId = userId
	c.role = role
	c.authenticated = true
	if c.authTimer != nil {
		c.authTimer.Stop()
		c.authTimer = nil
	}
}

// ArmAuthDeadline closes the connection if it has not authenticated within d.
func (c *Connection) ArmAuthDeadline(d time.Duration) {
	if d <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.authenticated || c.closed.Load() {
		return
	}
	c.authTimer = time.AfterFunc(d, func() {
		if c.IsAuthenticated() {
			return
		}
		c.logger.Info().Dur("timeout", d).Msg("Authentication deadline exceeded")
		c.Close()
	})
}

// StartHeartbeat launches the liveness probe. Starting on a closed connection
// or starting twice does nothing.
func (c *Connection) StartHeartbeat(interval time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() || c.heartbeat != nil || interval <= 0 {
		return
	}
	c.isAlive.Store(true)
	c.heartbeat = newHeartbeat(c, interval)
	go c.heartbeat.run()
}

// Send encodes frame as JSON and hands it to the transport.
func (c *Connection) Send(frame any) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return c.SendRaw(data)
}

func (c *Connection) SendRaw(data []byte) error {
	if !c.IsOpen() {
		return ErrConnectionClosed
	}
	if err := c.transport.Send(data); err != nil {
		if errors.Is(err, ErrSendBufferFull) {
			c.logger.Warn().Str("userId", c.UserID()).Msg("Send buffer full, closing connection")
			c.Close()
		}
		return err
	}
	return nil
}

// Close cancels timers, closes the transport and notifies the owner. Every
// teardown path ends here; calls after the first are no-ops.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)

		c.mu.Lock()
		hb := c.heartbeat
		if c.authTimer != nil {
			c.authTimer.Stop()
			c.authTimer = nil
		}
		c.mu.Unlock()

		if hb != nil {
			hb.cancel()
		}

		if err := c.transport.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Transport close error")
		}

		if c.onClose != nil {
			c.onClose(c)
		}
	})
}

type ConnectionInfo struct {
	ConnectionId     string      `json:"connectionId"`
	UserId           string      `json:"userId"`
	Role             entity.Role `json:"role"`
	SubscribedToJobs bool        `json:"subscribedToJobs"`
	ConnectedAt      time.Time   `json:"connectedAt"`
	LastActivity     time.Time   `json:"lastActivity"`
}

func (c *Connection) Info() ConnectionInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ConnectionInfo{
		ConnectionId:     c.id,
		UserId:           c.userId,
		Role:             c.role,
		SubscribedToJobs: c.subscribedToJobs,
		ConnectedAt:      c.connectedAt,
		LastActivity:     c.lastActivity,
	}
}
