package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/merkleship/merkleship/pkg/api/middleware"
	"github.com/merkleship/merkleship/pkg/board"
	"github.com/merkleship/merkleship/pkg/game"
	gametypes "github.com/merkleship/merkleship/pkg/game/types"
	"github.com/merkleship/merkleship/pkg/log"
	"github.com/merkleship/merkleship/pkg/merkle"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response: %v", err)
	}
}

// writeError maps the engine's typed rejections onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case gametypes.IsNotFound(err):
		status = http.StatusNotFound
	case gametypes.IsUnauthorized(err):
		status = http.StatusForbidden
	case gametypes.IsWrongState(err), gametypes.IsTooEarly(err):
		status = http.StatusConflict
	case gametypes.IsWrongValue(err), gametypes.IsVerificationFailed(err):
		status = http.StatusBadRequest
	case gametypes.IsInsufficientFunds(err):
		status = http.StatusPaymentRequired
	case gametypes.IsStopped(err):
		status = http.StatusServiceUnavailable
	}
	http.Error(w, err.Error(), status)
}

func playerFromContext(w http.ResponseWriter, r *http.Request) (string, bool) {
	player, ok := r.Context().Value(middleware.PlayerContextKey).(string)
	if !ok || player == "" {
		log.Error("failed to get player from context")
		http.Error(w, "Failed to get player from context", http.StatusInternalServerError)
		return "", false
	}
	return player, true
}

func gameIDFromPath(w http.ResponseWriter, r *http.Request) (uint32, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["gameID"], 10, 32)
	if err != nil {
		http.Error(w, "Failed to parse gameID", http.StatusBadRequest)
		return 0, false
	}
	return uint32(id), true
}

func parseProof(hexDigests []string) (merkle.Proof, error) {
	var proof merkle.Proof
	if len(hexDigests) != len(proof) {
		return proof, fmt.Errorf("proof requires exactly %d digests", len(proof))
	}
	for i, h := range hexDigests {
		d, err := merkle.ParseDigest(h)
		if err != nil {
			return proof, fmt.Errorf("invalid proof digest %d: %v", i, err)
		}
		proof[i] = d
	}
	return proof, nil
}

type ProposeGameRequest struct {
	Wager uint64 `json:"wager"`
	Value uint64 `json:"value"`
	Root  string `json:"root"`
}

func HandleProposeGame(manager *game.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player, ok := playerFromContext(w, r)
		if !ok {
			return
		}
		var req ProposeGameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Failed to decode request body", http.StatusBadRequest)
			return
		}
		root, err := merkle.ParseDigest(req.Root)
		if err != nil {
			http.Error(w, "Failed to parse board commitment", http.StatusBadRequest)
			return
		}

		g, err := manager.ProposeGame(player, req.Wager, req.Value, root)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, g)
	}
}

type AcceptGameRequest struct {
	Value uint64 `json:"value"`
	Root  string `json:"root"`
}

func HandleAcceptGame(manager *game.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player, ok := playerFromContext(w, r)
		if !ok {
			return
		}
		id, ok := gameIDFromPath(w, r)
		if !ok {
			return
		}
		var req AcceptGameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Failed to decode request body", http.StatusBadRequest)
			return
		}
		root, err := merkle.ParseDigest(req.Root)
		if err != nil {
			http.Error(w, "Failed to parse board commitment", http.StatusBadRequest)
			return
		}

		g, err := manager.AcceptGame(player, id, req.Value, root)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, g)
	}
}

func HandleCancelGame(manager *game.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player, ok := playerFromContext(w, r)
		if !ok {
			return
		}
		id, ok := gameIDFromPath(w, r)
		if !ok {
			return
		}

		g, err := manager.CancelProposedGame(player, id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, g)
	}
}

type MoveRequest struct {
	Square  uint8    `json:"square"`
	Leaf    string   `json:"leaf,omitempty"`
	Proof   []string `json:"proof,omitempty"`
	Message string   `json:"message,omitempty"`
}

func HandleMove(manager *game.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player, ok := playerFromContext(w, r)
		if !ok {
			return
		}
		id, ok := gameIDFromPath(w, r)
		if !ok {
			return
		}
		var req MoveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Failed to decode request body", http.StatusBadRequest)
			return
		}

		var proof merkle.Proof
		if len(req.Proof) > 0 {
			parsed, err := parseProof(req.Proof)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			proof = parsed
		}

		g, err := manager.GuessAndReveal(player, id, board.Square(req.Square), proof, req.Leaf, req.Message)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, g)
	}
}

func HandleConcedeGame(manager *game.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player, ok := playerFromContext(w, r)
		if !ok {
			return
		}
		id, ok := gameIDFromPath(w, r)
		if !ok {
			return
		}

		g, err := manager.ConcedeGame(player, id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, g)
	}
}

func HandleChallengeVictory(manager *game.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player, ok := playerFromContext(w, r)
		if !ok {
			return
		}
		id, ok := gameIDFromPath(w, r)
		if !ok {
			return
		}

		g, err := manager.ChallengeVictory(player, id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, g)
	}
}

type AnswerChallengeRequest struct {
	Leaves []string `json:"leaves"`
}

func HandleAnswerChallenge(manager *game.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player, ok := playerFromContext(w, r)
		if !ok {
			return
		}
		id, ok := gameIDFromPath(w, r)
		if !ok {
			return
		}
		var req AnswerChallengeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Failed to decode request body", http.StatusBadRequest)
			return
		}

		g, err := manager.AnswerChallenge(player, id, req.Leaves)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, g)
	}
}

// resolver is any of the timeout-gated settlement operations.
type resolver func(caller string, id uint32) (*gametypes.Game, error)

func handleResolve(manager *game.Manager, resolve resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player, ok := playerFromContext(w, r)
		if !ok {
			return
		}
		id, ok := gameIDFromPath(w, r)
		if !ok {
			return
		}

		g, err := resolve(player, id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, g)
	}
}

func HandleResolveAbandoned(manager *game.Manager) http.HandlerFunc {
	return handleResolve(manager, manager.ResolveAbandonedGame)
}

func HandleResolveUnclaimed(manager *game.Manager) http.HandlerFunc {
	return handleResolve(manager, manager.ResolveUnclaimedVictory)
}

func HandleResolveUnanswered(manager *game.Manager) http.HandlerFunc {
	return handleResolve(manager, manager.ResolveUnansweredChallenge)
}

func HandleGetGame(manager *game.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := gameIDFromPath(w, r)
		if !ok {
			return
		}

		g, err := manager.GetGame(id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, g)
	}
}

func HandleListGames(manager *game.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, manager.ListGames())
	}
}
