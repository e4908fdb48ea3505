package ws

import "sync/atomic"

// Metrics counts hub activity for the /metrics endpoint
type Metrics struct {
	Connections       int64
	Joins             int64
	RejectedJoins     int64
	InboundEvents     int64
	DroppedViolations int64
	RoomBroadcasts    int64
	TargetedSends     int64
	DroppedSends      int64
}

func (m *Metrics) IncConnections() { atomic.AddInt64(&m.Connections, 1) }
func (m *Metrics) DecConnections() { atomic.AddInt64(&m.Connections, -1) }
func (m *Metrics) IncJoins() { atomic.AddInt64(&m.Joins, 1) }
func (m *Metrics) IncRejectedJoins() { atomic.AddInt64(&m.RejectedJoins, 1) }
func (m *Metrics) IncInbound() { atomic.AddInt64(&m.InboundEvents, 1) }
func (m *Metrics) IncViolations() { atomic.AddInt64(&m.DroppedViolations, 1) }
func (m *Metrics) IncRoomBroadcasts() { atomic.AddInt64(&m.RoomBroadcasts, 1) }
func (m *Metrics) IncTargetedSends() { atomic.AddInt64(&m.TargetedSends, 1) }
func (m *Metrics) IncDroppedSends() { atomic.AddInt64(&m.DroppedSends, 1) }

func (m *Metrics) Snapshot() map[string]any {
	return map[string]any{
		"active_connections": atomic.LoadInt64(&m.Connections),
		"joins":              atomic.LoadInt64(&m.Joins),
		"rejected_joins":     atomic.LoadInt64(&m.RejectedJoins),
		"inbound_events":     atomic.LoadInt64(&m.InboundEvents),
		"dropped_violations": atomic.LoadInt64(&m.DroppedViolations),
		"room_broadcasts":    atomic.LoadInt64(&m.RoomBroadcasts),
		"targeted_sends":     atomic.LoadInt64(&m.TargetedSends),
		"dropped_sends":      atomic.LoadInt64(&m.DroppedSends),
	}
}
