package game

import (
	"github.com/merkleship/merkleship/pkg/events"
	"github.com/merkleship/merkleship/pkg/game/types"
	"github.com/merkleship/merkleship/pkg/log"
)

// EmergencyStop sets the global emergency flag. While set, every mutating
// operation except EmergencyResolve and Withdraw rejects. The reason is
// recorded for audit only.
func (m *Manager) EmergencyStop(caller, reason string) error {
	if caller != m.admin {
		return &types.ErrUnauthorized{Reason: "only the admin can stop the contract"}
	}
	m.mu.Lock()
	m.stopped = true
	m.stopReason = reason
	m.mu.Unlock()

	log.Warn("emergency stop: %s", reason)
	m.emit(events.TypeEmergency, 0, caller, map[string]string{
		"stopped": "true",
		"reason":  reason,
	})
	return nil
}

// EmergencyResume clears the emergency flag and returns the system to
// ordinary operation.
func (m *Manager) EmergencyResume(caller string) error {
	if caller != m.admin {
		return &types.ErrUnauthorized{Reason: "only the admin can resume the contract"}
	}
	m.mu.Lock()
	m.stopped = false
	m.stopReason = ""
	m.mu.Unlock()

	m.emit(events.TypeEmergency, 0, caller, map[string]string{
		"stopped": "false",
	})
	return nil
}

// Stopped reports the emergency flag and its recorded reason.
func (m *Manager) Stopped() (bool, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stopped, m.stopReason
}

// EmergencyResolve forces a conservative, refund-oriented termination of a
// stuck game. Available only to the admin and only while the emergency
// flag is set; it grants no power over ordinary play.
func (m *Manager) EmergencyResolve(caller string, id uint32) (*types.Game, error) {
	if caller != m.admin {
		return nil, &types.ErrUnauthorized{Reason: "only the admin can force-resolve"}
	}
	stopped, _ := m.Stopped()
	if !stopped {
		return nil, &types.ErrStopped{Stopped: false}
	}

	g, err := m.ledger.Update(id, func(g *types.Game) error {
		if g.State.Terminal() {
			return &types.ErrWrongState{Op: "emergency resolution", State: g.State}
		}
		g.State = types.StateComplete
		g.VictoryReason = types.ReasonEmergency
		g.Turn = ""
		g.TurnStartTime = m.timestamp()
		if g.Wager > 0 {
			// Refund each escrowed party their own wager; no winner is
			// declared by the breaker.
			if err := m.escrow.Settle(g.PlayerA, g.Wager); err != nil {
				return err
			}
			if g.PlayerB != "" {
				if err := m.escrow.Settle(g.PlayerB, g.Wager); err != nil {
					return err
				}
			}
		}
		g.Winner = ""
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.emit(events.TypeWinner, g.ID, caller, map[string]string{
		"reason": g.VictoryReason,
	})
	return g, nil
}
