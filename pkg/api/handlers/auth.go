package handlers

import (
	"encoding/json"
	"net/http"

	authproviders "github.com/merkleship/merkleship/pkg/auth/providers"
	"github.com/merkleship/merkleship/pkg/game/constants"
	"github.com/merkleship/merkleship/pkg/log"
	"github.com/merkleship/merkleship/pkg/repositories"
)

type RegisterRequest struct {
	Name string `json:"name"`
}

func HandleRegister(authProvider authproviders.AuthProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Failed to decode request body", http.StatusBadRequest)
			return
		}

		registration, err := authProvider.Register(r.Context(), req.Name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusCreated, registration)
	}
}

type ConfigResponse struct {
	Rows           uint8 `json:"rows"`
	Columns        uint8 `json:"columns"`
	HitThreshold   uint8 `json:"hitThreshold"`
	AbandonSeconds int64 `json:"abandonSeconds"`
	RespondSeconds int64 `json:"respondSeconds"`
	ProofDepth     int   `json:"proofDepth"`
}

func HandleConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, ConfigResponse{
			Rows:           constants.Rows,
			Columns:        constants.Columns,
			HitThreshold:   constants.HitThreshold,
			AbandonSeconds: int64(constants.AbandonThreshold.Seconds()),
			RespondSeconds: int64(constants.RespondThreshold.Seconds()),
			ProofDepth:     constants.ProofDepth,
		})
	}
}

func HandleListEvents(repository repositories.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := gameIDFromPath(w, r)
		if !ok {
			return
		}

		list, err := repository.ListEvents(r.Context(), id)
		if err != nil {
			log.Error("failed to list events: %v", err)
			http.Error(w, "Failed to list events", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}
