package game

import (
	"strconv"

	"github.com/merkleship/merkleship/pkg/board"
	"github.com/merkleship/merkleship/pkg/events"
	"github.com/merkleship/merkleship/pkg/game/constants"
	"github.com/merkleship/merkleship/pkg/game/types"
	"github.com/merkleship/merkleship/pkg/merkle"
)

// ChallengeVictory disputes a pending victory claim. Only the non-claiming
// participant can challenge; the claimant then has the respond window to
// answer with a full board reveal.
func (m *Manager) ChallengeVictory(player string, id uint32) (*types.Game, error) {
	if err := m.guardStopped(); err != nil {
		return nil, err
	}
	g, err := m.ledger.Update(id, func(g *types.Game) error {
		if g.State != types.StateVictoryPending {
			return &types.ErrWrongState{Op: "challenge", State: g.State}
		}
		if !g.IsPlayer(player) || player == g.Winner {
			return &types.ErrUnauthorized{Reason: "only the non-claiming player can challenge"}
		}
		g.State = types.StateVictoryChallenged
		g.TurnStartTime = m.timestamp()
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.emit(events.TypeVictoryChallenged, g.ID, player, nil)
	return g, nil
}

// AnswerChallenge settles a challenged victory with a full board reveal.
// All 64 leaf preimages are supplied in square-index order and re-derive
// the truth from scratch:
//
//   - every leaf must carry the coordinates of its index,
//   - hashing and sorting the leaves must rebuild the claimant's root,
//   - the board must carry exactly HitThreshold ship squares,
//   - the challenger's true hit count is recomputed from the recorded
//     guess history against the revealed board, overriding anything
//     accumulated during play.
//
// A reveal that fails the root check is rejected outright (the claimant
// may retry within the window). A reveal that verifies but exposes an
// illegal board hands the win to the challenger.
func (m *Manager) AnswerChallenge(player string, id uint32, leaves []string) (*types.Game, error) {
	if err := m.guardStopped(); err != nil {
		return nil, err
	}
	g, err := m.ledger.Update(id, func(g *types.Game) error {
		if g.State != types.StateVictoryChallenged {
			return &types.ErrWrongState{Op: "answer", State: g.State}
		}
		claimant := g.Winner
		if player != claimant {
			return &types.ErrUnauthorized{Reason: "only the claimant can answer a challenge"}
		}
		if len(leaves) != constants.Squares {
			return &types.ErrVerificationFailed{Reason: "answer requires exactly 64 leaves"}
		}

		ships := make([]bool, constants.Squares)
		shipCount := 0
		for i, leaf := range leaves {
			ship, x, y, _, err := board.DecodeLeaf(leaf)
			if err != nil {
				return &types.ErrVerificationFailed{Reason: err.Error()}
			}
			wx, wy := board.SquareXY(board.Square(i))
			if x != wx || y != wy {
				return &types.ErrVerificationFailed{Reason: "leaf coordinates do not match square order"}
			}
			ships[i] = ship
			if ship {
				shipCount++
			}
		}

		tree, err := merkle.BuildTree(leaves)
		if err != nil {
			return &types.ErrVerificationFailed{Reason: err.Error()}
		}
		if tree.Root() != g.Root(claimant) {
			return &types.ErrVerificationFailed{Reason: "revealed board does not match the committed root"}
		}

		// The board verifies against the commitment. Recompute the
		// challenger's true hits on it and check the board was legal.
		challenger := g.Opponent(claimant)
		trueHits := uint8(0)
		for _, guess := range g.Guesses(challenger) {
			if ships[guess] {
				trueHits++
			}
		}
		if challenger == g.PlayerA {
			g.HitCountA = trueHits
		} else {
			g.HitCountB = trueHits
		}

		winner := claimant
		if shipCount != int(constants.HitThreshold) {
			// The claimant committed to an illegal board; the genuine
			// winner is the challenger.
			winner = challenger
		}
		return m.settleGame(g, winner, types.ReasonHitCount)
	})
	if err != nil {
		return nil, err
	}

	m.emit(events.TypeWinner, g.ID, player, map[string]string{
		"winner": g.Winner,
		"reason": g.VictoryReason,
		"hitsA":  strconv.Itoa(int(g.HitCountA)),
		"hitsB":  strconv.Itoa(int(g.HitCountB)),
	})
	return g, nil
}
