package escrow

import (
	"fmt"
	"sync"
)

// Ledger custodies wagered value. Settlement never pushes funds to a
// participant; it credits a withdrawable balance that only the owner can
// drain (pull payments). Funds committed to a live game sit in the inPlay
// pool until a terminal transition credits them back out.
type Ledger struct {
	mu       sync.Mutex
	balances map[string]uint64
	inPlay   uint64
}

func NewLedger() *Ledger {
	return &Ledger{
		balances: make(map[string]uint64),
	}
}

// Deposit adds withdrawable value for a participant.
func (l *Ledger) Deposit(participant string, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[participant] += amount
}

// Escrow moves value from a participant's balance into the in-play pool.
func (l *Ledger) Escrow(participant string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[participant] < amount {
		return fmt.Errorf("insufficient balance: have %d, need %d", l.balances[participant], amount)
	}
	l.balances[participant] -= amount
	l.inPlay += amount
	return nil
}

// Settle moves value from the in-play pool to a participant's balance.
func (l *Ledger) Settle(participant string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inPlay < amount {
		return fmt.Errorf("settlement exceeds in-play pool: have %d, need %d", l.inPlay, amount)
	}
	l.inPlay -= amount
	l.balances[participant] += amount
	return nil
}

// Withdraw drains a participant's balance to zero and returns the amount.
func (l *Ledger) Withdraw(participant string) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	amount := l.balances[participant]
	if amount == 0 {
		return 0, fmt.Errorf("nothing to withdraw")
	}
	delete(l.balances, participant)
	return amount, nil
}

// Balance returns a participant's withdrawable balance.
func (l *Ledger) Balance(participant string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[participant]
}

// TotalHeld returns all value currently custodied: withdrawable balances
// plus everything escrowed in live games. At every point in time this
// equals total deposits minus total withdrawals.
func (l *Ledger) TotalHeld() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := l.inPlay
	for _, b := range l.balances {
		total += b
	}
	return total
}

// Balances returns a snapshot of withdrawable balances for persistence.
func (l *Ledger) Balances() map[string]uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	snapshot := make(map[string]uint64, len(l.balances))
	for p, b := range l.balances {
		snapshot[p] = b
	}
	return snapshot
}

// Restore replaces the ledger contents, used when loading from a repository.
// inPlay is recomputed by the caller from non-terminal games.
func (l *Ledger) Restore(balances map[string]uint64, inPlay uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances = make(map[string]uint64, len(balances))
	for p, b := range balances {
		l.balances[p] = b
	}
	l.inPlay = inPlay
}
