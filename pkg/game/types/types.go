package types

import (
	"github.com/merkleship/merkleship/pkg/board"
	"github.com/merkleship/merkleship/pkg/merkle"
)

// State is the lifecycle state of a game. Canceled and Complete are
// absorbing; no other value is ever constructed.
type State uint8

const (
	StateProposed State = iota
	StateCanceled
	StateActive
	StateVictoryPending
	StateVictoryChallenged
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateProposed:
		return "proposed"
	case StateCanceled:
		return "canceled"
	case StateActive:
		return "active"
	case StateVictoryPending:
		return "victory-pending"
	case StateVictoryChallenged:
		return "victory-challenged"
	case StateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return s == StateCanceled || s == StateComplete
}

// Victory reasons recorded on terminal resolution.
const (
	ReasonHitCount            = "verified victory by hit count"
	ReasonUnchallenged        = "victory by unchallenged hit count"
	ReasonUnansweredChallenge = "victory by unanswered challenge"
	ReasonAbandonment         = "victory by abandonment"
	ReasonConcession          = "victory by concession"
	ReasonEmergency           = "game resolved in an emergency"
)

// Game is the authoritative record of one game.
type Game struct {
	ID            uint32        `json:"id"`
	TurnStartTime int64         `json:"turnStartTime"` // unix seconds; resets on every clocked action
	Wager         uint64        `json:"wager"`
	PlayerA       string        `json:"playerA"`
	PlayerB       string        `json:"playerB,omitempty"`
	Winner        string        `json:"winner,omitempty"`
	VictoryReason string        `json:"victoryReason,omitempty"`
	HitCountA     uint8         `json:"hitCountA"`
	HitCountB     uint8         `json:"hitCountB"`
	State         State         `json:"state"`
	Turn          string        `json:"turn,omitempty"` // player whose move is expected
	RootA         merkle.Digest `json:"rootA"`
	RootB         merkle.Digest `json:"rootB"`
	// PendingSquare is the square guessed on the previous turn, awaiting
	// reveal by the current turn holder. Nil before the first guess.
	PendingSquare *board.Square `json:"pendingSquare,omitempty"`
	// GuessesA and GuessesB record every square each player has guessed,
	// in order. Needed to recompute true hit counts on challenge.
	GuessesA []board.Square `json:"guessesA,omitempty"`
	GuessesB []board.Square `json:"guessesB,omitempty"`
}

// IsPlayer reports whether p is one of the game's participants.
func (g *Game) IsPlayer(p string) bool {
	return p != "" && (p == g.PlayerA || p == g.PlayerB)
}

// Opponent returns the other participant, or "" if p is not in the game.
func (g *Game) Opponent(p string) string {
	switch p {
	case g.PlayerA:
		return g.PlayerB
	case g.PlayerB:
		return g.PlayerA
	}
	return ""
}

// HitCount returns the confirmed hit count for a participant.
func (g *Game) HitCount(p string) uint8 {
	if p == g.PlayerA {
		return g.HitCountA
	}
	return g.HitCountB
}

// Root returns the board commitment for a participant.
func (g *Game) Root(p string) merkle.Digest {
	if p == g.PlayerA {
		return g.RootA
	}
	return g.RootB
}

// Guesses returns the guess history for a participant.
func (g *Game) Guesses(p string) []board.Square {
	if p == g.PlayerA {
		return g.GuessesA
	}
	return g.GuessesB
}

// Copy returns a deep copy of the game.
func (g *Game) Copy() *Game {
	c := *g
	if g.PendingSquare != nil {
		square := *g.PendingSquare
		c.PendingSquare = &square
	}
	c.GuessesA = append([]board.Square(nil), g.GuessesA...)
	c.GuessesB = append([]board.Square(nil), g.GuessesB...)
	return &c
}
