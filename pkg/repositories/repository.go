package repositories

import (
	"context"

	"github.com/merkleship/merkleship/pkg/events"
	gametypes "github.com/merkleship/merkleship/pkg/game/types"
)

// Repository persists the game ledger, the append-only audit log, and the
// escrow balances. The server is memory-authoritative; the repository is
// durability only and is never read back during a transition.
type Repository interface {
	Close(ctx context.Context) error
	SaveGame(ctx context.Context, game *gametypes.Game) error
	LoadGame(ctx context.Context, id uint32) (*gametypes.Game, error)
	ListGames(ctx context.Context) ([]*gametypes.Game, error)
	SaveEvent(ctx context.Context, event *events.Event) error
	ListEvents(ctx context.Context, gameID uint32) ([]*events.Event, error)
	SaveBalances(ctx context.Context, balances map[string]uint64) error
	LoadBalances(ctx context.Context) (map[string]uint64, error)
}

type ErrNotFound struct {
}

func (e *ErrNotFound) Error() string {
	return "not found"
}

func IsNotFound(err error) bool {
	_, ok := err.(*ErrNotFound)
	return ok
}
