package game

import (
	"fmt"
	"strconv"

	"github.com/merkleship/merkleship/pkg/events"
)

// Deposit adds withdrawable value to a participant's escrow account.
func (m *Manager) Deposit(player string, amount uint64) error {
	if err := m.guardStopped(); err != nil {
		return err
	}
	if amount == 0 {
		return fmt.Errorf("deposit amount must be positive")
	}
	m.escrow.Deposit(player, amount)
	m.emit(events.TypeDeposit, 0, player, map[string]string{
		"amount": strconv.FormatUint(amount, 10),
	})
	return nil
}

// Withdraw drains the caller's balance to zero and returns the amount.
// Withdrawal stays available during an emergency stop so funds are never
// trapped.
func (m *Manager) Withdraw(player string) (uint64, error) {
	amount, err := m.escrow.Withdraw(player)
	if err != nil {
		return 0, err
	}
	m.emit(events.TypeWithdraw, 0, player, map[string]string{
		"amount": strconv.FormatUint(amount, 10),
	})
	return amount, nil
}

// Balance returns a participant's withdrawable balance.
func (m *Manager) Balance(player string) uint64 {
	return m.escrow.Balance(player)
}

// TotalHeld returns all value custodied by the escrow ledger.
func (m *Manager) TotalHeld() uint64 {
	return m.escrow.TotalHeld()
}
