package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/merkleship/merkleship/pkg/api/handlers"
	"github.com/merkleship/merkleship/pkg/api/middleware"
	authproviders "github.com/merkleship/merkleship/pkg/auth/providers"
	"github.com/merkleship/merkleship/pkg/events"
	"github.com/merkleship/merkleship/pkg/game"
	"github.com/merkleship/merkleship/pkg/log"
	"github.com/merkleship/merkleship/pkg/repositories"
)

type APIServer struct {
	server *http.Server
	tls    *TLSConfig
}

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type NewAPIServerOptions struct {
	Port         int
	TLS          *TLSConfig
	AuthProvider authproviders.AuthProvider
	Manager      *game.Manager
	Repository   repositories.Repository
	Emitter      *events.Emitter
	// AdminIdentity is the acting party for emergency operations.
	AdminIdentity string
	// AdminToken gates the emergency endpoints. Empty disables them.
	AdminToken string
}

// NewAPIServer creates a new http.Server for handling API requests
func NewAPIServer(opts NewAPIServerOptions) *APIServer {
	authMiddleware := middleware.NewAuthMiddleware(opts.AuthProvider)
	adminMiddleware := middleware.NewAdminMiddleware(opts.AdminToken)
	feed := NewEventFeed(opts.Emitter)

	r := mux.NewRouter()

	// Public surface.
	r.HandleFunc("/register", handlers.HandleRegister(opts.AuthProvider)).Methods(http.MethodPost)
	r.HandleFunc("/config", handlers.HandleConfig()).Methods(http.MethodGet)
	r.HandleFunc("/status", handlers.HandleStatus(opts.Manager)).Methods(http.MethodGet)
	r.HandleFunc("/games", handlers.HandleListGames(opts.Manager)).Methods(http.MethodGet)
	r.HandleFunc("/games/{gameID}", handlers.HandleGetGame(opts.Manager)).Methods(http.MethodGet)
	r.HandleFunc("/games/{gameID}/events", handlers.HandleListEvents(opts.Repository)).Methods(http.MethodGet)
	r.HandleFunc("/events/ws", feed.HandleEvents()).Methods(http.MethodGet)

	// Player surface.
	player := r.NewRoute().Subrouter()
	player.Use(authMiddleware)
	player.HandleFunc("/games", handlers.HandleProposeGame(opts.Manager)).Methods(http.MethodPost)
	player.HandleFunc("/games/{gameID}/accept", handlers.HandleAcceptGame(opts.Manager)).Methods(http.MethodPost)
	player.HandleFunc("/games/{gameID}/cancel", handlers.HandleCancelGame(opts.Manager)).Methods(http.MethodPost)
	player.HandleFunc("/games/{gameID}/move", handlers.HandleMove(opts.Manager)).Methods(http.MethodPost)
	player.HandleFunc("/games/{gameID}/concede", handlers.HandleConcedeGame(opts.Manager)).Methods(http.MethodPost)
	player.HandleFunc("/games/{gameID}/challenge", handlers.HandleChallengeVictory(opts.Manager)).Methods(http.MethodPost)
	player.HandleFunc("/games/{gameID}/answer", handlers.HandleAnswerChallenge(opts.Manager)).Methods(http.MethodPost)
	player.HandleFunc("/games/{gameID}/resolve/abandoned", handlers.HandleResolveAbandoned(opts.Manager)).Methods(http.MethodPost)
	player.HandleFunc("/games/{gameID}/resolve/unclaimed", handlers.HandleResolveUnclaimed(opts.Manager)).Methods(http.MethodPost)
	player.HandleFunc("/games/{gameID}/resolve/unanswered", handlers.HandleResolveUnanswered(opts.Manager)).Methods(http.MethodPost)
	player.HandleFunc("/funds/deposit", handlers.HandleDeposit(opts.Manager)).Methods(http.MethodPost)
	player.HandleFunc("/funds/withdraw", handlers.HandleWithdraw(opts.Manager)).Methods(http.MethodPost)
	player.HandleFunc("/funds/balance", handlers.HandleBalance(opts.Manager)).Methods(http.MethodGet)

	// Emergency surface.
	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(adminMiddleware)
	admin.HandleFunc("/stop", handlers.HandleEmergencyStop(opts.Manager, opts.AdminIdentity)).Methods(http.MethodPost)
	admin.HandleFunc("/resume", handlers.HandleEmergencyResume(opts.Manager, opts.AdminIdentity)).Methods(http.MethodPost)
	admin.HandleFunc("/resolve/{gameID}", handlers.HandleEmergencyResolve(opts.Manager, opts.AdminIdentity)).Methods(http.MethodPost)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: r,
	}
	return &APIServer{
		server: server,
		tls:    opts.TLS,
	}
}

// Start starts the APIServer
func (s *APIServer) Start() {
	var listenAndServe func() error
	if s.tls != nil {
		log.Info("API server listening on %s with TLS", s.server.Addr)
		listenAndServe = func() error {
			return s.server.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
		}
	} else {
		log.Info("API server listening on %s", s.server.Addr)
		listenAndServe = s.server.ListenAndServe
	}
	if err := listenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			log.Info("API server closed")
			return
		}
		log.Error("API server error: %v", err)
	}
}

// Stop stops the APIServer
func (s *APIServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
