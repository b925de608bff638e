package sync

import (
	"context"
	"log/slog"
	"time"
)

// slowRTT is the round-trip threshold above which a link is treated as slow
// regardless of its type.
const slowRTT = 500 * time.Millisecond

// Probe measures reachability by hitting the server health endpoint and
// updates the connectivity snapshot. Transitions between offline and idle
// drive the state machine; a restored connection nudges the run loop so
// queued changes do not wait for the next interval.
func (e *Engine) Probe(ctx context.Context) {
	start := time.Now()
	_, err := e.client.Health()
	rtt := time.Since(start)

	e.mu.Lock()
	wasConnected := e.net.Connected
	e.net.Connected = err == nil
	e.net.Reachable = err == nil
	e.net.RTT = rtt
	e.net.Slow = e.net.Type == "cellular" || rtt > slowRTT
	e.mu.Unlock()

	switch {
	case err != nil && wasConnected:
		slog.Info("network lost", "err", err)
		if fsmErr := e.machine.Event(ctx, "network_lost"); fsmErr != nil {
			slog.Debug("network_lost transition", "err", fsmErr)
		}
	case err == nil && !wasConnected:
		slog.Info("network restored", "rtt", rtt)
		if fsmErr := e.machine.Event(ctx, "network_restored"); fsmErr != nil {
			slog.Debug("network_restored transition", "err", fsmErr)
		}
		select {
		case e.nudge <- struct{}{}:
		default:
		}
	}
}

// SetNetworkType records the link type reported by the platform, feeding the
// slow-network classification on the next probe.
func (e *Engine) SetNetworkType(t string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.net.Type = t
	e.net.Slow = t == "cellular" || e.net.RTT > slowRTT
}
