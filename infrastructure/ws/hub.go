package ws

import (
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	HeartbeatInterval     time.Duration
	AuthTimeout           time.Duration
	MaxConnectionsPerUser int
	MaxConnections        int
}

// Hub owns the Registry and the components built on it. There is one Hub
// per process; it is created explicitly and shut down explicitly.
type Hub struct {
	Config     Config
	Registry   *Registry
	Dispatcher *Dispatcher
	Admin      *Admin
	logger     zerolog.Logger
}

func NewHub(cfg Config, logger zerolog.Logger) *Hub {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
	registry := NewRegistry(cfg.MaxConnectionsPerUser, cfg.MaxConnections, logger)
	return &Hub{
		Config:     cfg,
		Registry:   registry,
		Dispatcher: NewDispatcher(registry, logger),
		Admin:      NewAdmin(registry, logger),
		logger:     logger,
	}
}

// NewConnection creates an unauthenticated connection whose teardown
// unregisters it from this hub.
func (h *Hub) NewConnection(transport Transport) *Connection {
	return NewConnection(transport, h.logger, func(c *Connection) {
		if c.IsAuthenticated() {
			h.Registry.Unregister(c.UserID(), c.ID())
		}
	})
}

// Shutdown refuses new admissions and disconnects everyone.
func (h *Hub) Shutdown() {
	n := h.Admin.Shutdown()
	h.logger.Info().Int("connections", n).Msg("Hub shut down")
}
