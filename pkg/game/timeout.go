package game

import (
	"time"

	"github.com/merkleship/merkleship/pkg/events"
	"github.com/merkleship/merkleship/pkg/game/constants"
	"github.com/merkleship/merkleship/pkg/game/types"
)

// The timeout resolvers are permissionless: their effect depends only on
// elapsed time, so neither player has to be trusted to trigger settlement.

func (m *Manager) elapsed(g *types.Game) time.Duration {
	return time.Duration(m.timestamp()-g.TurnStartTime) * time.Second
}

// ResolveAbandonedGame forfeits an active game against the player who
// failed to take their turn within the abandon threshold.
func (m *Manager) ResolveAbandonedGame(caller string, id uint32) (*types.Game, error) {
	if err := m.guardStopped(); err != nil {
		return nil, err
	}
	g, err := m.ledger.Update(id, func(g *types.Game) error {
		if g.State != types.StateActive {
			return &types.ErrWrongState{Op: "abandonment resolution", State: g.State}
		}
		if m.elapsed(g) <= constants.AbandonThreshold {
			return &types.ErrTooEarly{Op: "abandonment resolution"}
		}
		return m.settleGame(g, g.Opponent(g.Turn), types.ReasonAbandonment)
	})
	if err != nil {
		return nil, err
	}

	m.emit(events.TypeWinner, g.ID, caller, map[string]string{
		"winner": g.Winner,
		"reason": g.VictoryReason,
	})
	return g, nil
}

// ResolveUnclaimedVictory finalizes a pending victory that went
// unchallenged for the respond window.
func (m *Manager) ResolveUnclaimedVictory(caller string, id uint32) (*types.Game, error) {
	if err := m.guardStopped(); err != nil {
		return nil, err
	}
	g, err := m.ledger.Update(id, func(g *types.Game) error {
		if g.State != types.StateVictoryPending {
			return &types.ErrWrongState{Op: "unclaimed victory resolution", State: g.State}
		}
		if m.elapsed(g) <= constants.RespondThreshold {
			return &types.ErrTooEarly{Op: "unclaimed victory resolution"}
		}
		return m.settleGame(g, g.Winner, types.ReasonUnchallenged)
	})
	if err != nil {
		return nil, err
	}

	m.emit(events.TypeWinner, g.ID, caller, map[string]string{
		"winner": g.Winner,
		"reason": g.VictoryReason,
	})
	return g, nil
}

// ResolveUnansweredChallenge settles a challenge the claimant never
// answered; the challenger wins by default.
func (m *Manager) ResolveUnansweredChallenge(caller string, id uint32) (*types.Game, error) {
	if err := m.guardStopped(); err != nil {
		return nil, err
	}
	g, err := m.ledger.Update(id, func(g *types.Game) error {
		if g.State != types.StateVictoryChallenged {
			return &types.ErrWrongState{Op: "unanswered challenge resolution", State: g.State}
		}
		if m.elapsed(g) <= constants.RespondThreshold {
			return &types.ErrTooEarly{Op: "unanswered challenge resolution"}
		}
		return m.settleGame(g, g.Opponent(g.Winner), types.ReasonUnansweredChallenge)
	})
	if err != nil {
		return nil, err
	}

	m.emit(events.TypeWinner, g.ID, caller, map[string]string{
		"winner": g.Winner,
		"reason": g.VictoryReason,
	})
	return g, nil
}
