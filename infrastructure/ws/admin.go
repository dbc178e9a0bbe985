package ws

import "github.com/rs/zerolog"

type ConnectionStats struct {
	TotalConnections int      `json:"totalConnections"`
	ActiveUsers      int      `json:"activeUsers"`
	UserIds          []string `json:"userIds"`
}

// Admin exposes introspection and forced disconnects for operators. It never
// touches Registry bookkeeping directly: every disconnect goes through
// Connection.Close, whose hook unregisters.
type Admin struct {
	registry *Registry
	logger   zerolog.Logger
}

func NewAdmin(registry *Registry, logger zerolog.Logger) *Admin {
	return &Admin{registry: registry, logger: logger}
}

func (a *Admin) Stats() ConnectionStats {
	ids := a.registry.UserIDs()
	return ConnectionStats{
		TotalConnections: a.registry.Count(),
		ActiveUsers:      len(ids),
		UserIds:          ids,
	}
}

func (a *Admin) Connections() []ConnectionInfo {
	conns := a.registry.Connections()
	out := make([]ConnectionInfo, 0, len(conns))
	for _, c := range conns {
		out = append(out, c.Info())
	}
	return out
}

// DisconnectUser closes every connection of userId and returns how many were closed.
func (a *Admin) DisconnectUser(userId string) int {
	conns := a.registry.UserConnections(userId)
	for _, c := range conns {
		c.Close()
	}
	if len(conns) > 0 {
		a.logger.Info().Str("userId", userId).Int("connections", len(conns)).Msg("Disconnected user")
	}
	return len(conns)
}

// DisconnectConnection closes one connection, leaving the user's other sessions open.
func (a *Admin) DisconnectConnection(userId, connectionId string) bool {
	c, ok := a.registry.Connection(userId, connectionId)
	if !ok {
		return false
	}
	c.Close()
	a.logger.Info().Str("userId", userId).Str("connectionId", connectionId).Msg("Disconnected connection")
	return true
}

func (a *Admin) DisconnectAll() int {
	conns := a.registry.Connections()
	for _, c := range conns {
		c.Close()
	}
	a.logger.Info().Int("connections", len(conns)).Msg("Disconnected all connections")
	return len(conns)
}

// Shutdown stops admissions and closes everything that is connected.
func (a *Admin) Shutdown() int {
	a.registry.Shutdown()
	return a.DisconnectAll()
}
