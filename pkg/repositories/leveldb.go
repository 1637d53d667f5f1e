package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/merkleship/merkleship/pkg/events"
	gametypes "github.com/merkleship/merkleship/pkg/game/types"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDBRepository is an embedded key-value backend for single-node
// deployments that do not want a SQL server. Games are keyed by
// zero-padded id, events by game id plus timestamp plus event id so a
// prefix scan returns them in order.
type LevelDBRepository struct {
	db *leveldb.DB
}

const (
	gameKeyPrefix    = "game:"
	eventKeyPrefix   = "event:"
	balancesStoreKey = "balances"
)

func NewLevelDBRepository(path string) (Repository, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}
	return &LevelDBRepository{
		db: db,
	}, nil
}

func (r *LevelDBRepository) Close(ctx context.Context) error {
	return r.db.Close()
}

func gameKey(id uint32) []byte {
	return []byte(fmt.Sprintf("%s%010d", gameKeyPrefix, id))
}

func eventKey(event *events.Event) []byte {
	return []byte(fmt.Sprintf("%s%010d:%019d:%s", eventKeyPrefix, event.GameID, event.Timestamp, event.ID))
}

func (r *LevelDBRepository) SaveGame(ctx context.Context, game *gametypes.Game) error {
	data, err := json.Marshal(game)
	if err != nil {
		return fmt.Errorf("failed to marshal game: %v", err)
	}
	if err := r.db.Put(gameKey(game.ID), data, nil); err != nil {
		return fmt.Errorf("failed to put game: %v", err)
	}
	return nil
}

func (r *LevelDBRepository) LoadGame(ctx context.Context, id uint32) (*gametypes.Game, error) {
	data, err := r.db.Get(gameKey(id), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to get game: %v", err)
	}

	game := &gametypes.Game{}
	if err := json.Unmarshal(data, game); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game: %v", err)
	}
	return game, nil
}

func (r *LevelDBRepository) ListGames(ctx context.Context) ([]*gametypes.Game, error) {
	iter := r.db.NewIterator(util.BytesPrefix([]byte(gameKeyPrefix)), nil)
	defer iter.Release()

	var games []*gametypes.Game
	for iter.Next() {
		game := &gametypes.Game{}
		if err := json.Unmarshal(iter.Value(), game); err != nil {
			return nil, fmt.Errorf("failed to unmarshal game: %v", err)
		}
		games = append(games, game)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("failed to iterate games: %v", err)
	}

	return games, nil
}

func (r *LevelDBRepository) SaveEvent(ctx context.Context, event *events.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %v", err)
	}
	if err := r.db.Put(eventKey(event), data, nil); err != nil {
		return fmt.Errorf("failed to put event: %v", err)
	}
	return nil
}

func (r *LevelDBRepository) ListEvents(ctx context.Context, gameID uint32) ([]*events.Event, error) {
	prefix := fmt.Sprintf("%s%010d:", eventKeyPrefix, gameID)
	iter := r.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	defer iter.Release()

	var list []*events.Event
	for iter.Next() {
		event := &events.Event{}
		if err := json.Unmarshal(iter.Value(), event); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event: %v", err)
		}
		list = append(list, event)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %v", err)
	}

	return list, nil
}

func (r *LevelDBRepository) SaveBalances(ctx context.Context, balances map[string]uint64) error {
	data, err := json.Marshal(balances)
	if err != nil {
		return fmt.Errorf("failed to marshal balances: %v", err)
	}
	if err := r.db.Put([]byte(balancesStoreKey), data, nil); err != nil {
		return fmt.Errorf("failed to put balances: %v", err)
	}
	return nil
}

func (r *LevelDBRepository) LoadBalances(ctx context.Context) (map[string]uint64, error) {
	data, err := r.db.Get([]byte(balancesStoreKey), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return map[string]uint64{}, nil
		}
		return nil, fmt.Errorf("failed to get balances: %v", err)
	}

	balances := make(map[string]uint64)
	if err := json.Unmarshal(data, &balances); err != nil {
		return nil, fmt.Errorf("failed to unmarshal balances: %v", err)
	}
	return balances, nil
}
