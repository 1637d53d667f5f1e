package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/merkleship/merkleship/pkg/api"
	authproviders "github.com/merkleship/merkleship/pkg/auth/providers"
	"github.com/merkleship/merkleship/pkg/escrow"
	"github.com/merkleship/merkleship/pkg/events"
	"github.com/merkleship/merkleship/pkg/game"
	gametypes "github.com/merkleship/merkleship/pkg/game/types"
	"github.com/merkleship/merkleship/pkg/log"
	"github.com/merkleship/merkleship/pkg/queue"
	"github.com/merkleship/merkleship/pkg/repositories"
	"github.com/merkleship/merkleship/pkg/state"
	"github.com/merkleship/merkleship/pkg/version"
	"github.com/merkleship/merkleship/pkg/workers"
)

func main() {
	port := flag.Int("port", 8080, "API port to listen on")
	logLevel := flag.String("log-level", "info", "Log level")
	storage := flag.String("storage", "sqlite", "Storage backend (postgres, sqlite, leveldb)")
	sqlitePath := flag.String("sqlite-path", "merkleship.db", "Path to the SQLite database file")
	migrationsPath := flag.String("migrations-path", "migrations/sqlite", "Path to the SQLite migrations directory")
	leveldbPath := flag.String("leveldb-path", "merkleship.leveldb", "Path to the LevelDB database directory")
	adminToken := flag.String("admin-token", os.Getenv("ADMIN_TOKEN"), "Bearer token for the emergency endpoints")
	saveInterval := flag.Duration("save-interval", 10*time.Second, "Interval between state flushes")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	logger := log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel)
	log.SetDefaultLogger(logger)
	log.Info("Log level set to %s", parsedLogLevel)

	log.Info("Starting server version %s", version.Get())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repository, err := newRepository(ctx, *storage, *sqlitePath, *migrationsPath, *leveldbPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to create repository: %v", err))
	}
	defer repository.Close(ctx)

	ledger := state.NewLedger()
	escrowLedger := escrow.NewLedger()
	if err := restore(ctx, repository, ledger, escrowLedger); err != nil {
		panic(fmt.Sprintf("Failed to restore state: %v", err))
	}

	emitter := events.NewEmitter()
	eventQueue := queue.NewInMemoryQueue(10000)
	emitter.Subscribe(func(ev *events.Event) {
		eventQueue.Enqueue(ev)
	})

	manager := game.NewManager(game.NewManagerOptions{
		Ledger:  ledger,
		Escrow:  escrowLedger,
		Emitter: emitter,
		Admin:   "admin",
	})

	auditWorker := workers.NewAuditLogWorker(workers.NewAuditLogWorkerOptions{
		Repository: repository,
		EventQueue: eventQueue,
		Interval:   time.Second,
	})
	go auditWorker.Start(ctx)

	saveWorker := workers.NewSaveStateWorker(workers.NewSaveStateWorkerOptions{
		Repository: repository,
		Ledger:     ledger,
		Escrow:     escrowLedger,
		Interval:   *saveInterval,
	})
	go saveWorker.Start(ctx)

	authProvider := authproviders.NewInMemoryProvider()

	apiServer := api.NewAPIServer(api.NewAPIServerOptions{
		Port:          *port,
		AuthProvider:  authProvider,
		Manager:       manager,
		Repository:    repository,
		Emitter:       emitter,
		AdminIdentity: "admin",
		AdminToken:    *adminToken,
	})
	go apiServer.Start()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop API server: %v", err)
	}
	cancel()
	saveWorker.Flush(shutdownCtx)
	auditWorker.Drain(shutdownCtx)
}

func newRepository(ctx context.Context, storage, sqlitePath, migrationsPath, leveldbPath string) (repositories.Repository, error) {
	switch storage {
	case "postgres":
		connStr := os.Getenv("DATABASE_URL")
		if connStr == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable must be set")
		}
		return repositories.NewPostgresRepository(ctx, connStr)
	case "sqlite":
		return repositories.NewSQLiteRepository(ctx, sqlitePath, migrationsPath)
	case "leveldb":
		return repositories.NewLevelDBRepository(leveldbPath)
	}
	return nil, fmt.Errorf("unknown storage backend %q", storage)
}

// restore loads the persisted games and balances. The in-play pool is
// recomputed from non-terminal games so the escrow conservation invariant
// survives a restart.
func restore(ctx context.Context, repository repositories.Repository, ledger *state.Ledger, escrowLedger *escrow.Ledger) error {
	games, err := repository.ListGames(ctx)
	if err != nil {
		return fmt.Errorf("failed to list games: %v", err)
	}

	var inPlay uint64
	for _, g := range games {
		ledger.Restore(g)
		if g.State.Terminal() {
			continue
		}
		inPlay += g.Wager
		if g.State != gametypes.StateProposed {
			inPlay += g.Wager
		}
	}

	balances, err := repository.LoadBalances(ctx)
	if err != nil {
		return fmt.Errorf("failed to load balances: %v", err)
	}
	escrowLedger.Restore(balances, inPlay)

	if len(games) > 0 {
		log.Info("Restored %d games and %d balances", len(games), len(balances))
	}
	return nil
}
