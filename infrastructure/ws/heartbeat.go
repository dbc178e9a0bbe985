package ws

import (
	"sync"
	"time"
)

var pingFrame = []byte(`{"type":"ping"}`)

// heartbeat probes one authenticated connection. A peer that has not
// answered the previous ping by the next tick is closed, so a dead peer is
// reclaimed within two intervals.
type heartbeat struct {
	conn     *Connection
	interval time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

func newHeartbeat(conn *Connection, interval time.Duration) *heartbeat {
	return &heartbeat{
		conn:     conn,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

func (h *heartbeat) run() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !h.beat() {
				return
			}
		case <-h.stop:
			return
		}
	}
}

// beat runs one tick and reports whether the connection is still considered live.
func (h *heartbeat) beat() bool {
	if !h.conn.isAlive.Load() {
		h.conn.logger.Info().
			Str("userId", h.conn.UserID()).
			Msg("Heartbeat timeout, closing connection")
		h.conn.Close()
		return false
	}

	h.conn.isAlive.Store(false)
	if err := h.conn.SendRaw(pingFrame); err != nil {
		h.conn.logger.Debug().Err(err).Msg("Heartbeat ping failed")
	}
	return true
}

func (h *heartbeat) cancel() {
	h.stopOnce.Do(func() {
		close(h.stop)
	})
}
