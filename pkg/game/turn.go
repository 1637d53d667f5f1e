package game

import (
	"strconv"

	"github.com/merkleship/merkleship/pkg/board"
	"github.com/merkleship/merkleship/pkg/events"
	"github.com/merkleship/merkleship/pkg/game/constants"
	"github.com/merkleship/merkleship/pkg/game/types"
	"github.com/merkleship/merkleship/pkg/log"
	"github.com/merkleship/merkleship/pkg/merkle"
)

// GuessAndReveal is the single recurring action of active play. One call
// reveals the truth of the opponent's previous guess against the caller's
// own board commitment, then submits the caller's next guess. The very
// first call of a game has nothing to reveal; the leaf and proof are
// ignored.
//
// If the reveal confirms the opponent's threshold hit, the game moves to
// VictoryPending with the opponent as winner-candidate and no new guess is
// recorded as pending.
func (m *Manager) GuessAndReveal(player string, id uint32, square board.Square, proof merkle.Proof, leafData, message string) (*types.Game, error) {
	if err := m.guardStopped(); err != nil {
		return nil, err
	}

	var (
		revealedSquare board.Square
		revealed       bool
		isHit          bool
		victory        bool
	)
	g, err := m.ledger.Update(id, func(g *types.Game) error {
		if g.State != types.StateActive {
			return &types.ErrWrongState{Op: "guess", State: g.State}
		}
		if player != g.Turn {
			return &types.ErrUnauthorized{Reason: "not your turn"}
		}
		if int(square) >= constants.Squares {
			return &types.ErrVerificationFailed{Reason: "guess square is off the board"}
		}
		opponent := g.Opponent(player)

		if g.PendingSquare != nil {
			// Reveal the caller's own square that the opponent guessed
			// last turn. The proof binds the leaf to the caller's
			// committed board; the leaf's coordinates bind it to the
			// guessed square.
			if !merkle.VerifyProof(leafData, proof, g.Root(player)) {
				return &types.ErrVerificationFailed{Reason: "proof does not reconstruct the committed root"}
			}
			ship, x, y, _, err := board.DecodeLeaf(leafData)
			if err != nil {
				return &types.ErrVerificationFailed{Reason: err.Error()}
			}
			px, py := board.SquareXY(*g.PendingSquare)
			if x != px || y != py {
				return &types.ErrVerificationFailed{Reason: "revealed leaf does not match the guessed square"}
			}

			revealedSquare = *g.PendingSquare
			revealed = true
			isHit = ship
			if ship {
				// The opponent made the guess being confirmed, so the
				// opponent's hit count advances.
				if opponent == g.PlayerA {
					g.HitCountA++
				} else {
					g.HitCountB++
				}
			}
		}

		if player == g.PlayerA {
			g.GuessesA = append(g.GuessesA, square)
		} else {
			g.GuessesB = append(g.GuessesB, square)
		}
		g.PendingSquare = &square
		g.TurnStartTime = m.timestamp()

		if g.HitCount(opponent) >= constants.HitThreshold {
			victory = true
			g.State = types.StateVictoryPending
			g.Winner = opponent
			g.Turn = ""
			return nil
		}

		g.Turn = opponent
		return nil
	})
	if err != nil {
		return nil, err
	}

	if revealed {
		m.emit(events.TypeReveal, g.ID, player, map[string]string{
			"square": strconv.Itoa(int(revealedSquare)),
			"isHit":  strconv.FormatBool(isHit),
		})
	}
	m.emit(events.TypeGuess, g.ID, player, map[string]string{
		"square": strconv.Itoa(int(square)),
	})
	if message != "" {
		m.emit(events.TypeSmackTalk, g.ID, player, map[string]string{
			"message": message,
		})
	}
	if victory {
		log.Debug("game %d victory pending for %s", g.ID, g.Winner)
		m.emit(events.TypeVictoryPending, g.ID, g.Winner, map[string]string{
			"hits": strconv.Itoa(int(g.HitCount(g.Winner))),
		})
	}
	return g, nil
}
