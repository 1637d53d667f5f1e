package escrow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDepositAndWithdraw(t *testing.T) {
	l := NewLedger()

	l.Deposit("alice", 100)
	l.Deposit("alice", 50)
	assert.Equal(t, uint64(150), l.Balance("alice"))

	amount, err := l.Withdraw("alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(150), amount)
	assert.Equal(t, uint64(0), l.Balance("alice"))

	_, err = l.Withdraw("alice")
	assert.Error(t, err)
}

func TestEscrowAndSettle(t *testing.T) {
	l := NewLedger()
	l.Deposit("alice", 100)
	l.Deposit("bob", 100)

	require.NoError(t, l.Escrow("alice", 40))
	require.NoError(t, l.Escrow("bob", 40))
	assert.Equal(t, uint64(60), l.Balance("alice"))
	assert.Equal(t, uint64(60), l.Balance("bob"))

	// The winner takes the whole pot.
	require.NoError(t, l.Settle("bob", 80))
	assert.Equal(t, uint64(140), l.Balance("bob"))
	assert.Equal(t, uint64(60), l.Balance("alice"))
}

func TestEscrowInsufficientBalance(t *testing.T) {
	l := NewLedger()
	l.Deposit("alice", 10)

	assert.Error(t, l.Escrow("alice", 11))
	assert.Equal(t, uint64(10), l.Balance("alice"))
}

func TestSettleExceedsPool(t *testing.T) {
	l := NewLedger()
	l.Deposit("alice", 100)
	require.NoError(t, l.Escrow("alice", 50))

	assert.Error(t, l.Settle("alice", 51))
	require.NoError(t, l.Settle("alice", 50))
}

func TestTotalHeldConservation(t *testing.T) {
	l := NewLedger()
	l.Deposit("alice", 100)
	l.Deposit("bob", 200)
	assert.Equal(t, uint64(300), l.TotalHeld())

	// Escrow moves value between pools without changing the total.
	require.NoError(t, l.Escrow("alice", 70))
	assert.Equal(t, uint64(300), l.TotalHeld())

	require.NoError(t, l.Settle("bob", 70))
	assert.Equal(t, uint64(300), l.TotalHeld())

	amount, err := l.Withdraw("bob")
	require.NoError(t, err)
	assert.Equal(t, uint64(270), amount)
	assert.Equal(t, uint64(30), l.TotalHeld())
}

func TestBalancesSnapshotAndRestore(t *testing.T) {
	l := NewLedger()
	l.Deposit("alice", 100)
	require.NoError(t, l.Escrow("alice", 25))

	snapshot := l.Balances()
	assert.Equal(t, map[string]uint64{"alice": 75}, snapshot)

	// Mutating the snapshot does not touch the ledger.
	snapshot["alice"] = 0
	assert.Equal(t, uint64(75), l.Balance("alice"))

	restored := NewLedger()
	restored.Restore(l.Balances(), 25)
	assert.Equal(t, uint64(75), restored.Balance("alice"))
	assert.Equal(t, uint64(100), restored.TotalHeld())
}
