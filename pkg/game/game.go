package game

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/merkleship/merkleship/pkg/escrow"
	"github.com/merkleship/merkleship/pkg/events"
	"github.com/merkleship/merkleship/pkg/game/types"
	"github.com/merkleship/merkleship/pkg/log"
	"github.com/merkleship/merkleship/pkg/merkle"
	"github.com/merkleship/merkleship/pkg/state"
)

// Manager drives every game through its lifecycle. All transitions are
// atomic: they either commit fully or leave state untouched. Timeouts are
// advisory clocks checked at call time, never background timers.
type Manager struct {
	ledger  *state.Ledger
	escrow  *escrow.Ledger
	emitter *events.Emitter
	admin   string
	now     func() time.Time

	mu         sync.RWMutex
	stopped    bool
	stopReason string
}

type NewManagerOptions struct {
	Ledger  *state.Ledger
	Escrow  *escrow.Ledger
	Emitter *events.Emitter
	// Admin is the only identity allowed to operate the circuit breaker.
	Admin string
	// Now overrides the clock, used by tests. Defaults to time.Now.
	Now func() time.Time
}

func NewManager(opts NewManagerOptions) *Manager {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		ledger:  opts.Ledger,
		escrow:  opts.Escrow,
		emitter: opts.Emitter,
		admin:   opts.Admin,
		now:     now,
	}
}

func (m *Manager) timestamp() int64 {
	return m.now().Unix()
}

// guardStopped rejects ordinary mutating operations while the emergency
// flag is set.
func (m *Manager) guardStopped() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.stopped {
		return &types.ErrStopped{Stopped: true}
	}
	return nil
}

func (m *Manager) emit(typ events.Type, gameID uint32, actor string, attributes map[string]string) {
	m.emitter.Emit(events.New(typ, gameID, actor, m.timestamp(), attributes))
}

// pot is the total escrowed value of a game.
func (m *Manager) pot(g *types.Game) uint64 {
	if g.PlayerB == "" {
		return g.Wager
	}
	return 2 * g.Wager
}

// settleGame records the terminal outcome and credits the winner's
// withdrawable balance. Funds are never pushed; the winner pulls them
// through Withdraw.
func (m *Manager) settleGame(g *types.Game, winner, reason string) error {
	g.State = types.StateComplete
	g.Winner = winner
	g.VictoryReason = reason
	g.Turn = ""
	g.TurnStartTime = m.timestamp()
	if g.Wager > 0 {
		if err := m.escrow.Settle(winner, m.pot(g)); err != nil {
			return fmt.Errorf("failed to settle pot for game %d: %v", g.ID, err)
		}
	}
	return nil
}

// ProposeGame opens a new game. The caller becomes player A, escrows the
// wager, and commits to their board with a Merkle root.
func (m *Manager) ProposeGame(player string, wager, value uint64, root merkle.Digest) (*types.Game, error) {
	if err := m.guardStopped(); err != nil {
		return nil, err
	}
	if player == "" {
		return nil, &types.ErrUnauthorized{Reason: "proposer identity required"}
	}
	if value != wager {
		return nil, &types.ErrWrongValue{Want: wager, Got: value}
	}
	if root.IsZero() {
		return nil, &types.ErrVerificationFailed{Reason: "board commitment required"}
	}
	if wager > 0 {
		if err := m.escrow.Escrow(player, wager); err != nil {
			return nil, &types.ErrInsufficientFunds{Participant: player, Need: wager}
		}
	}

	g := m.ledger.Create(func(id uint32) *types.Game {
		return &types.Game{
			ID:            id,
			TurnStartTime: m.timestamp(),
			Wager:         wager,
			PlayerA:       player,
			State:         types.StateProposed,
			RootA:         root,
		}
	})

	log.Debug("game %d proposed by %s with wager %d", g.ID, player, wager)
	m.emit(events.TypeProposed, g.ID, player, map[string]string{
		"wager": strconv.FormatUint(wager, 10),
	})
	return g, nil
}

// CancelProposedGame withdraws a proposal before anyone accepts it and
// refunds the proposer's escrow.
func (m *Manager) CancelProposedGame(player string, id uint32) (*types.Game, error) {
	if err := m.guardStopped(); err != nil {
		return nil, err
	}
	g, err := m.ledger.Update(id, func(g *types.Game) error {
		if g.State != types.StateProposed {
			return &types.ErrWrongState{Op: "cancel", State: g.State}
		}
		if player != g.PlayerA {
			return &types.ErrUnauthorized{Reason: "only the proposer can cancel"}
		}
		g.State = types.StateCanceled
		if g.Wager > 0 {
			if err := m.escrow.Settle(player, g.Wager); err != nil {
				return fmt.Errorf("failed to refund wager for game %d: %v", g.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.emit(events.TypeCanceled, g.ID, player, nil)
	return g, nil
}

// AcceptGame joins a proposed game as player B, matching the wager and
// committing to a board. Play starts immediately with player A to move.
func (m *Manager) AcceptGame(player string, id uint32, value uint64, root merkle.Digest) (*types.Game, error) {
	if err := m.guardStopped(); err != nil {
		return nil, err
	}
	g, err := m.ledger.Update(id, func(g *types.Game) error {
		if g.State != types.StateProposed {
			return &types.ErrWrongState{Op: "accept", State: g.State}
		}
		if player == "" || player == g.PlayerA {
			return &types.ErrUnauthorized{Reason: "proposer cannot accept their own game"}
		}
		if value != g.Wager {
			return &types.ErrWrongValue{Want: g.Wager, Got: value}
		}
		if root.IsZero() {
			return &types.ErrVerificationFailed{Reason: "board commitment required"}
		}
		if g.Wager > 0 {
			if err := m.escrow.Escrow(player, g.Wager); err != nil {
				return &types.ErrInsufficientFunds{Participant: player, Need: g.Wager}
			}
		}
		g.PlayerB = player
		g.RootB = root
		g.State = types.StateActive
		g.Turn = g.PlayerA
		g.TurnStartTime = m.timestamp()
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Debug("game %d accepted by %s", g.ID, player)
	m.emit(events.TypeAccepted, g.ID, player, map[string]string{
		"wager": strconv.FormatUint(g.Wager, 10),
	})
	return g, nil
}

// ConcedeGame ends an active game immediately; the opponent wins the pot.
func (m *Manager) ConcedeGame(player string, id uint32) (*types.Game, error) {
	if err := m.guardStopped(); err != nil {
		return nil, err
	}
	g, err := m.ledger.Update(id, func(g *types.Game) error {
		if g.State != types.StateActive {
			return &types.ErrWrongState{Op: "concede", State: g.State}
		}
		if !g.IsPlayer(player) {
			return &types.ErrUnauthorized{Reason: "only a participant can concede"}
		}
		return m.settleGame(g, g.Opponent(player), types.ReasonConcession)
	})
	if err != nil {
		return nil, err
	}

	m.emit(events.TypeWinner, g.ID, player, map[string]string{
		"winner": g.Winner,
		"reason": g.VictoryReason,
	})
	return g, nil
}

// GetGame returns a copy of a game.
func (m *Manager) GetGame(id uint32) (*types.Game, error) {
	return m.ledger.Get(id)
}

// ListGames returns copies of all games ordered by identifier.
func (m *Manager) ListGames() []*types.Game {
	return m.ledger.List()
}

// GameCount returns the number of games ever proposed.
func (m *Manager) GameCount() uint32 {
	return m.ledger.Count()
}
