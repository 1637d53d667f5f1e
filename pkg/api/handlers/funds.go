package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/merkleship/merkleship/pkg/game"
)

type DepositRequest struct {
	Amount uint64 `json:"amount"`
}

type BalanceResponse struct {
	PlayerID string `json:"playerId"`
	Balance  uint64 `json:"balance"`
}

type WithdrawResponse struct {
	PlayerID string `json:"playerId"`
	Amount   uint64 `json:"amount"`
}

func HandleDeposit(manager *game.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player, ok := playerFromContext(w, r)
		if !ok {
			return
		}
		var req DepositRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Failed to decode request body", http.StatusBadRequest)
			return
		}

		if err := manager.Deposit(player, req.Amount); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, BalanceResponse{
			PlayerID: player,
			Balance:  manager.Balance(player),
		})
	}
}

func HandleWithdraw(manager *game.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player, ok := playerFromContext(w, r)
		if !ok {
			return
		}

		amount, err := manager.Withdraw(player)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, WithdrawResponse{
			PlayerID: player,
			Amount:   amount,
		})
	}
}

func HandleBalance(manager *game.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player, ok := playerFromContext(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, BalanceResponse{
			PlayerID: player,
			Balance:  manager.Balance(player),
		})
	}
}
