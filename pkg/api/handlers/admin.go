package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/merkleship/merkleship/pkg/game"
)

type EmergencyStopRequest struct {
	Reason string `json:"reason"`
}

type StatusResponse struct {
	Stopped    bool   `json:"stopped"`
	StopReason string `json:"stopReason,omitempty"`
	GameCount  uint32 `json:"gameCount"`
	TotalHeld  uint64 `json:"totalHeld"`
}

// The admin handlers run behind the admin token middleware; the admin
// identity configured on the manager is the acting party.

func HandleEmergencyStop(manager *game.Manager, admin string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req EmergencyStopRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Failed to decode request body", http.StatusBadRequest)
			return
		}

		if err := manager.EmergencyStop(admin, req.Reason); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func HandleEmergencyResume(manager *game.Manager, admin string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := manager.EmergencyResume(admin); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func HandleEmergencyResolve(manager *game.Manager, admin string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := gameIDFromPath(w, r)
		if !ok {
			return
		}

		g, err := manager.EmergencyResolve(admin, id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, g)
	}
}

func HandleStatus(manager *game.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stopped, reason := manager.Stopped()
		writeJSON(w, http.StatusOK, StatusResponse{
			Stopped:    stopped,
			StopReason: reason,
			GameCount:  manager.GameCount(),
			TotalHeld:  manager.TotalHeld(),
		})
	}
}
