package game

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/merkleship/merkleship/pkg/board"
	"github.com/merkleship/merkleship/pkg/escrow"
	"github.com/merkleship/merkleship/pkg/events"
	"github.com/merkleship/merkleship/pkg/game/constants"
	"github.com/merkleship/merkleship/pkg/game/types"
	"github.com/merkleship/merkleship/pkg/merkle"
	"github.com/merkleship/merkleship/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alice = "alice"
	bob   = "bob"
	carol = "carol"
	admin = "admin"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1700000000, 0)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// testBoard is a full board with its commitment tree, so tests can produce
// valid reveals for any square.
type testBoard struct {
	leaves []string
	tree   *merkle.Tree
	ships  map[board.Square]bool
}

func newTestBoard(t *testing.T, shipSquares ...board.Square) *testBoard {
	t.Helper()
	ships := make(map[board.Square]bool, len(shipSquares))
	for _, s := range shipSquares {
		ships[s] = true
	}

	leaves := make([]string, constants.Squares)
	for i := range leaves {
		x, y := board.SquareXY(board.Square(i))
		leaves[i] = board.EncodeLeaf(ships[board.Square(i)], x, y, fmt.Sprintf("secret%02d", i))
	}

	tree, err := merkle.BuildTree(leaves)
	require.NoError(t, err)
	return &testBoard{
		leaves: leaves,
		tree:   tree,
		ships:  ships,
	}
}

// standardBoard places exactly HitThreshold ships on the first squares.
func standardBoard(t *testing.T) *testBoard {
	t.Helper()
	squares := make([]board.Square, constants.HitThreshold)
	for i := range squares {
		squares[i] = board.Square(i)
	}
	return newTestBoard(t, squares...)
}

func (b *testBoard) root() merkle.Digest {
	return b.tree.Root()
}

func (b *testBoard) reveal(t *testing.T, square board.Square) (string, merkle.Proof) {
	t.Helper()
	leaf := b.leaves[square]
	proof, err := b.tree.Prove(leaf)
	require.NoError(t, err)
	return leaf, proof
}

type fixture struct {
	manager *Manager
	escrow  *escrow.Ledger
	clock   *fakeClock
	emitted []*events.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		escrow: escrow.NewLedger(),
		clock:  newFakeClock(),
	}
	emitter := events.NewEmitter()
	emitter.Subscribe(func(ev *events.Event) {
		f.emitted = append(f.emitted, ev)
	})
	f.manager = NewManager(NewManagerOptions{
		Ledger:  state.NewLedger(),
		Escrow:  f.escrow,
		Emitter: emitter,
		Admin:   admin,
		Now:     f.clock.now,
	})
	return f
}

func (f *fixture) fund(players ...string) {
	for _, p := range players {
		f.escrow.Deposit(p, 1000)
	}
}

// startGame funds both players and takes a game to the active state.
func (f *fixture) startGame(t *testing.T, wager uint64, boardA, boardB *testBoard) *types.Game {
	t.Helper()
	f.fund(alice, bob)
	g, err := f.manager.ProposeGame(alice, wager, wager, boardA.root())
	require.NoError(t, err)
	g, err = f.manager.AcceptGame(bob, g.ID, wager, boardB.root())
	require.NoError(t, err)
	return g
}

// move plays one turn for player: reveal the pending guess against the
// player's own board if there is one, then guess square.
func (f *fixture) move(t *testing.T, player string, id uint32, square board.Square, own *testBoard) *types.Game {
	t.Helper()
	g, err := f.manager.GetGame(id)
	require.NoError(t, err)

	var leaf string
	var proof merkle.Proof
	if g.PendingSquare != nil {
		leaf, proof = own.reveal(t, *g.PendingSquare)
	}

	g, err = f.manager.GuessAndReveal(player, id, square, proof, leaf, "")
	require.NoError(t, err)
	return g
}

// playToVictory drives alice to the hit threshold against bob's board and
// returns the game in the VictoryPending state with alice as claimant.
func (f *fixture) playToVictory(t *testing.T, id uint32, boardA, boardB *testBoard) *types.Game {
	t.Helper()
	var g *types.Game
	for i := uint8(0); i < constants.HitThreshold; i++ {
		f.move(t, alice, id, board.Square(i), boardA)
		// Bob reveals the hit and guesses open water on alice's board.
		g = f.move(t, bob, id, board.Square(40+i), boardB)
	}
	require.Equal(t, types.StateVictoryPending, g.State)
	require.Equal(t, alice, g.Winner)
	return g
}

func TestProposeGame(t *testing.T) {
	f := newFixture(t)
	f.fund(alice)

	g, err := f.manager.ProposeGame(alice, 100, 100, standardBoard(t).root())
	require.NoError(t, err)
	assert.Equal(t, uint32(1), g.ID)
	assert.Equal(t, types.StateProposed, g.State)
	assert.Equal(t, alice, g.PlayerA)
	assert.Equal(t, uint64(100), g.Wager)
	assert.Equal(t, uint32(1), f.manager.GameCount())

	// The wager left the proposer's balance but stays custodied.
	assert.Equal(t, uint64(900), f.manager.Balance(alice))
	assert.Equal(t, uint64(1000), f.manager.TotalHeld())
}

func TestProposeGameRejections(t *testing.T) {
	f := newFixture(t)
	f.fund(alice)
	root := standardBoard(t).root()

	_, err := f.manager.ProposeGame(alice, 100, 99, root)
	assert.True(t, types.IsWrongValue(err))

	_, err = f.manager.ProposeGame(alice, 100, 100, merkle.Digest{})
	assert.True(t, types.IsVerificationFailed(err))

	_, err = f.manager.ProposeGame(carol, 100, 100, root)
	assert.True(t, types.IsInsufficientFunds(err))
	assert.Equal(t, uint32(0), f.manager.GameCount())
}

func TestCancelProposedGame(t *testing.T) {
	f := newFixture(t)
	f.fund(alice)
	g, err := f.manager.ProposeGame(alice, 100, 100, standardBoard(t).root())
	require.NoError(t, err)

	_, err = f.manager.CancelProposedGame(bob, g.ID)
	assert.True(t, types.IsUnauthorized(err))

	g, err = f.manager.CancelProposedGame(alice, g.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StateCanceled, g.State)
	assert.Equal(t, uint64(1000), f.manager.Balance(alice))

	// Canceled is absorbing.
	_, err = f.manager.CancelProposedGame(alice, g.ID)
	assert.True(t, types.IsWrongState(err))
}

func TestAcceptGame(t *testing.T) {
	f := newFixture(t)
	f.fund(alice, bob)
	boardA, boardB := standardBoard(t), standardBoard(t)

	g, err := f.manager.ProposeGame(alice, 100, 100, boardA.root())
	require.NoError(t, err)

	_, err = f.manager.AcceptGame(alice, g.ID, 100, boardB.root())
	assert.True(t, types.IsUnauthorized(err))

	_, err = f.manager.AcceptGame(bob, g.ID, 50, boardB.root())
	assert.True(t, types.IsWrongValue(err))

	g, err = f.manager.AcceptGame(bob, g.ID, 100, boardB.root())
	require.NoError(t, err)
	assert.Equal(t, types.StateActive, g.State)
	assert.Equal(t, bob, g.PlayerB)
	assert.Equal(t, alice, g.Turn)
	assert.Equal(t, uint64(900), f.manager.Balance(bob))
	assert.Equal(t, uint64(2000), f.manager.TotalHeld())

	// An active game cannot be accepted again.
	_, err = f.manager.AcceptGame(carol, g.ID, 100, boardB.root())
	assert.True(t, types.IsWrongState(err))
}

func TestConcedeGame(t *testing.T) {
	f := newFixture(t)
	g := f.startGame(t, 100, standardBoard(t), standardBoard(t))

	_, err := f.manager.ConcedeGame(carol, g.ID)
	assert.True(t, types.IsUnauthorized(err))

	g, err = f.manager.ConcedeGame(alice, g.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StateComplete, g.State)
	assert.Equal(t, bob, g.Winner)
	assert.Equal(t, types.ReasonConcession, g.VictoryReason)

	// Bob's balance holds his remaining deposit plus the whole pot.
	assert.Equal(t, uint64(1100), f.manager.Balance(bob))
	assert.Equal(t, uint64(900), f.manager.Balance(alice))
}

func TestGuessAndRevealTurnFlow(t *testing.T) {
	f := newFixture(t)
	boardA, boardB := standardBoard(t), standardBoard(t)
	g := f.startGame(t, 100, boardA, boardB)

	// Bob cannot move first.
	_, err := f.manager.GuessAndReveal(bob, g.ID, 0, merkle.Proof{}, "", "")
	assert.True(t, types.IsUnauthorized(err))

	// Alice's first guess reveals nothing.
	g = f.move(t, alice, g.ID, 3, boardA)
	assert.Equal(t, bob, g.Turn)
	require.NotNil(t, g.PendingSquare)
	assert.Equal(t, board.Square(3), *g.PendingSquare)
	assert.Equal(t, []board.Square{3}, g.GuessesA)

	// Square 3 holds a ship on bob's board, so the reveal credits alice.
	g = f.move(t, bob, g.ID, 40, boardB)
	assert.Equal(t, uint8(1), g.HitCountA)
	assert.Equal(t, uint8(0), g.HitCountB)
	assert.Equal(t, alice, g.Turn)

	// Square 40 is open water on alice's board.
	g = f.move(t, alice, g.ID, 50, boardA)
	assert.Equal(t, uint8(1), g.HitCountA)
	assert.Equal(t, uint8(0), g.HitCountB)
}

func TestGuessAndRevealRejectsOffBoardGuess(t *testing.T) {
	f := newFixture(t)
	g := f.startGame(t, 0, standardBoard(t), standardBoard(t))

	_, err := f.manager.GuessAndReveal(alice, g.ID, 64, merkle.Proof{}, "", "")
	assert.True(t, types.IsVerificationFailed(err))
}

func TestGuessAndRevealRejectsBadProof(t *testing.T) {
	f := newFixture(t)
	boardA, boardB := standardBoard(t), standardBoard(t)
	g := f.startGame(t, 100, boardA, boardB)

	f.move(t, alice, g.ID, 3, boardA)

	// Bob claims a miss on the guessed square with a forged leaf.
	x, y := board.SquareXY(3)
	forged := board.EncodeLeaf(false, x, y, "secret03")
	_, proof := boardB.reveal(t, 3)
	_, err := f.manager.GuessAndReveal(bob, g.ID, 40, proof, forged, "")
	assert.True(t, types.IsVerificationFailed(err))

	// The rejection left the game untouched: still bob's turn, no hits.
	g, err = f.manager.GetGame(g.ID)
	require.NoError(t, err)
	assert.Equal(t, bob, g.Turn)
	assert.Equal(t, uint8(0), g.HitCountA)
	assert.Empty(t, g.GuessesB)
}

func TestGuessAndRevealRejectsWrongSquareLeaf(t *testing.T) {
	f := newFixture(t)
	boardA, boardB := standardBoard(t), standardBoard(t)
	g := f.startGame(t, 100, boardA, boardB)

	f.move(t, alice, g.ID, 3, boardA)

	// A valid proof for a different square than the one guessed.
	leaf, proof := boardB.reveal(t, 20)
	_, err := f.manager.GuessAndReveal(bob, g.ID, 40, proof, leaf, "")
	assert.True(t, types.IsVerificationFailed(err))
}

func TestVictoryByHitCount(t *testing.T) {
	f := newFixture(t)
	boardA, boardB := standardBoard(t), standardBoard(t)
	g := f.startGame(t, 100, boardA, boardB)

	g = f.playToVictory(t, g.ID, boardA, boardB)
	assert.Equal(t, uint8(constants.HitThreshold), g.HitCountA)
	assert.Empty(t, g.Turn)

	// No further moves once victory is pending.
	_, err := f.manager.GuessAndReveal(bob, g.ID, 60, merkle.Proof{}, "", "")
	assert.True(t, types.IsWrongState(err))
}

func TestChallengeAndVerifiedAnswer(t *testing.T) {
	f := newFixture(t)
	boardA, boardB := standardBoard(t), standardBoard(t)
	g := f.startGame(t, 100, boardA, boardB)
	g = f.playToVictory(t, g.ID, boardA, boardB)

	// The claimant cannot challenge their own claim.
	_, err := f.manager.ChallengeVictory(alice, g.ID)
	assert.True(t, types.IsUnauthorized(err))

	g, err = f.manager.ChallengeVictory(bob, g.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StateVictoryChallenged, g.State)

	// Only the claimant can answer.
	_, err = f.manager.AnswerChallenge(bob, g.ID, boardB.leaves)
	assert.True(t, types.IsUnauthorized(err))

	g, err = f.manager.AnswerChallenge(alice, g.ID, boardA.leaves)
	require.NoError(t, err)
	assert.Equal(t, types.StateComplete, g.State)
	assert.Equal(t, alice, g.Winner)
	assert.Equal(t, types.ReasonHitCount, g.VictoryReason)

	// Bob's guesses were all open water on alice's board.
	assert.Equal(t, uint8(0), g.HitCountB)
	assert.Equal(t, uint64(1100), f.manager.Balance(alice))
}

func TestAnswerChallengeWrongBoardRejected(t *testing.T) {
	f := newFixture(t)
	boardA, boardB := standardBoard(t), standardBoard(t)
	g := f.startGame(t, 100, boardA, boardB)
	g = f.playToVictory(t, g.ID, boardA, boardB)

	_, err := f.manager.ChallengeVictory(bob, g.ID)
	require.NoError(t, err)

	// A board that does not hash to the commitment is rejected outright
	// and the claimant may retry.
	other := newTestBoard(t, 0, 1, 2)
	_, err = f.manager.AnswerChallenge(alice, g.ID, other.leaves)
	assert.True(t, types.IsVerificationFailed(err))

	g, err = f.manager.GetGame(g.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StateVictoryChallenged, g.State)

	g, err = f.manager.AnswerChallenge(alice, g.ID, boardA.leaves)
	require.NoError(t, err)
	assert.Equal(t, alice, g.Winner)
}

func TestAnswerChallengeIllegalBoardLosesToChallenger(t *testing.T) {
	f := newFixture(t)
	// Alice committed to one ship too many.
	squares := make([]board.Square, constants.HitThreshold+1)
	for i := range squares {
		squares[i] = board.Square(i)
	}
	boardA := newTestBoard(t, squares...)
	boardB := standardBoard(t)

	g := f.startGame(t, 100, boardA, boardB)
	g = f.playToVictory(t, g.ID, boardA, boardB)

	_, err := f.manager.ChallengeVictory(bob, g.ID)
	require.NoError(t, err)

	// The reveal verifies against the commitment but exposes the illegal
	// ship count, so the challenger takes the pot.
	g, err = f.manager.AnswerChallenge(alice, g.ID, boardA.leaves)
	require.NoError(t, err)
	assert.Equal(t, types.StateComplete, g.State)
	assert.Equal(t, bob, g.Winner)
	assert.Equal(t, types.ReasonHitCount, g.VictoryReason)
	assert.Equal(t, uint64(1100), f.manager.Balance(bob))
}

func TestResolveAbandonedGame(t *testing.T) {
	f := newFixture(t)
	g := f.startGame(t, 100, standardBoard(t), standardBoard(t))

	_, err := f.manager.ResolveAbandonedGame(bob, g.ID)
	assert.True(t, types.IsTooEarly(err))

	f.clock.advance(constants.AbandonThreshold + time.Second)

	// Alice sat on her turn, so bob wins by abandonment.
	g, err = f.manager.ResolveAbandonedGame(bob, g.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StateComplete, g.State)
	assert.Equal(t, bob, g.Winner)
	assert.Equal(t, types.ReasonAbandonment, g.VictoryReason)
	assert.Equal(t, uint64(1100), f.manager.Balance(bob))
}

func TestResolveUnclaimedVictory(t *testing.T) {
	f := newFixture(t)
	boardA, boardB := standardBoard(t), standardBoard(t)
	g := f.startGame(t, 100, boardA, boardB)
	g = f.playToVictory(t, g.ID, boardA, boardB)

	_, err := f.manager.ResolveUnclaimedVictory(alice, g.ID)
	assert.True(t, types.IsTooEarly(err))

	f.clock.advance(constants.RespondThreshold + time.Second)

	g, err = f.manager.ResolveUnclaimedVictory(alice, g.ID)
	require.NoError(t, err)
	assert.Equal(t, alice, g.Winner)
	assert.Equal(t, types.ReasonUnchallenged, g.VictoryReason)
	assert.Equal(t, uint64(1100), f.manager.Balance(alice))
}

func TestResolveUnansweredChallenge(t *testing.T) {
	f := newFixture(t)
	boardA, boardB := standardBoard(t), standardBoard(t)
	g := f.startGame(t, 100, boardA, boardB)
	g = f.playToVictory(t, g.ID, boardA, boardB)

	_, err := f.manager.ChallengeVictory(bob, g.ID)
	require.NoError(t, err)

	_, err = f.manager.ResolveUnansweredChallenge(bob, g.ID)
	assert.True(t, types.IsTooEarly(err))

	f.clock.advance(constants.RespondThreshold + time.Second)

	// The claimant never answered, so the challenger wins by default.
	g, err = f.manager.ResolveUnansweredChallenge(bob, g.ID)
	require.NoError(t, err)
	assert.Equal(t, bob, g.Winner)
	assert.Equal(t, types.ReasonUnansweredChallenge, g.VictoryReason)
	assert.Equal(t, uint64(1100), f.manager.Balance(bob))
}

func TestEmergencyStopGatesOperations(t *testing.T) {
	f := newFixture(t)
	f.fund(alice, bob)
	root := standardBoard(t).root()

	_, err := f.manager.ProposeGame(alice, 100, 100, root)
	require.NoError(t, err)

	assert.True(t, types.IsUnauthorized(f.manager.EmergencyStop(alice, "nope")))
	require.NoError(t, f.manager.EmergencyStop(admin, "suspected exploit"))

	stopped, reason := f.manager.Stopped()
	assert.True(t, stopped)
	assert.Equal(t, "suspected exploit", reason)

	_, err = f.manager.ProposeGame(bob, 100, 100, root)
	assert.True(t, types.IsStopped(err))
	err = f.manager.Deposit(bob, 10)
	assert.True(t, types.IsStopped(err))

	// Withdrawal is never gated.
	amount, err := f.manager.Withdraw(bob)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), amount)

	require.NoError(t, f.manager.EmergencyResume(admin))
	_, err = f.manager.ProposeGame(alice, 100, 100, root)
	require.NoError(t, err)
}

func TestEmergencyResolve(t *testing.T) {
	f := newFixture(t)
	g := f.startGame(t, 100, standardBoard(t), standardBoard(t))

	// Only allowed while the breaker is engaged.
	_, err := f.manager.EmergencyResolve(admin, g.ID)
	assert.True(t, types.IsStopped(err))

	require.NoError(t, f.manager.EmergencyStop(admin, "drill"))

	_, err = f.manager.EmergencyResolve(alice, g.ID)
	assert.True(t, types.IsUnauthorized(err))

	g, err = f.manager.EmergencyResolve(admin, g.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StateComplete, g.State)
	assert.Empty(t, g.Winner)
	assert.Equal(t, types.ReasonEmergency, g.VictoryReason)

	// Each player got their own wager back.
	assert.Equal(t, uint64(1000), f.manager.Balance(alice))
	assert.Equal(t, uint64(1000), f.manager.Balance(bob))

	_, err = f.manager.EmergencyResolve(admin, g.ID)
	assert.True(t, types.IsWrongState(err))
}

func TestZeroWagerGame(t *testing.T) {
	f := newFixture(t)
	boardA, boardB := standardBoard(t), standardBoard(t)

	// No deposits needed when nothing is at stake.
	g, err := f.manager.ProposeGame(alice, 0, 0, boardA.root())
	require.NoError(t, err)
	g, err = f.manager.AcceptGame(bob, g.ID, 0, boardB.root())
	require.NoError(t, err)

	g, err = f.manager.ConcedeGame(bob, g.ID)
	require.NoError(t, err)
	assert.Equal(t, alice, g.Winner)
	assert.Equal(t, uint64(0), f.manager.TotalHeld())
}

func TestSmackTalkEvent(t *testing.T) {
	f := newFixture(t)
	boardA := standardBoard(t)
	g := f.startGame(t, 0, boardA, standardBoard(t))

	_, err := f.manager.GuessAndReveal(alice, g.ID, 0, merkle.Proof{}, "", "you sunk my battleship")
	require.NoError(t, err)

	var found bool
	for _, ev := range f.emitted {
		if ev.Type == events.TypeSmackTalk && ev.GameID == g.ID {
			found = true
			assert.Equal(t, "you sunk my battleship", ev.Attributes["message"])
		}
	}
	assert.True(t, found, "expected a smack talk event")
}
