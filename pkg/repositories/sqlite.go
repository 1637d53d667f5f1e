package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/merkleship/merkleship/pkg/events"
	gametypes "github.com/merkleship/merkleship/pkg/game/types"
	_ "github.com/mattn/go-sqlite3"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(ctx context.Context, path string, migrations string) (Repository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	dir, err := os.ReadDir(migrations)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %v", err)
	}

	for _, entry := range dir {
		if entry.IsDir() {
			continue
		}

		migrationPath := filepath.Join(migrations, entry.Name())
		migration, err := os.ReadFile(migrationPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %v", migrationPath, err)
		}

		if _, err := db.ExecContext(ctx, string(migration)); err != nil {
			return nil, fmt.Errorf("failed to execute migration %s: %v", migrationPath, err)
		}
	}

	return &SQLiteRepository{
		db: db,
	}, nil
}

func (r *SQLiteRepository) Close(ctx context.Context) error {
	return r.db.Close()
}

func (r *SQLiteRepository) SaveGame(ctx context.Context, game *gametypes.Game) error {
	data, err := json.Marshal(game)
	if err != nil {
		return fmt.Errorf("failed to marshal game: %v", err)
	}

	q := `
	INSERT OR REPLACE INTO games (id, state, data)
	VALUES (?, ?, ?);
	`
	if _, err := r.db.ExecContext(ctx, q, game.ID, game.State.String(), string(data)); err != nil {
		return fmt.Errorf("failed to insert game: %v", err)
	}

	return nil
}

func (r *SQLiteRepository) LoadGame(ctx context.Context, id uint32) (*gametypes.Game, error) {
	q := `
	SELECT data FROM games WHERE id = ?;
	`
	var data string
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan game: %v", err)
	}

	game := &gametypes.Game{}
	if err := json.Unmarshal([]byte(data), game); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game: %v", err)
	}
	return game, nil
}

func (r *SQLiteRepository) ListGames(ctx context.Context) ([]*gametypes.Game, error) {
	q := `
	SELECT data FROM games ORDER BY id;
	`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query games: %v", err)
	}
	defer rows.Close()

	var games []*gametypes.Game
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan game: %v", err)
		}
		game := &gametypes.Game{}
		if err := json.Unmarshal([]byte(data), game); err != nil {
			return nil, fmt.Errorf("failed to unmarshal game: %v", err)
		}
		games = append(games, game)
	}

	return games, rows.Err()
}

func (r *SQLiteRepository) SaveEvent(ctx context.Context, event *events.Event) error {
	attributes, err := json.Marshal(event.Attributes)
	if err != nil {
		return fmt.Errorf("failed to marshal event attributes: %v", err)
	}

	q := `
	INSERT OR IGNORE INTO events (id, game_id, type, actor, timestamp, attributes)
	VALUES (?, ?, ?, ?, ?, ?);
	`
	if _, err := r.db.ExecContext(ctx, q, event.ID, event.GameID, string(event.Type), event.Actor, event.Timestamp, string(attributes)); err != nil {
		return fmt.Errorf("failed to insert event: %v", err)
	}

	return nil
}

func (r *SQLiteRepository) ListEvents(ctx context.Context, gameID uint32) ([]*events.Event, error) {
	q := `
	SELECT id, game_id, type, actor, timestamp, attributes
	FROM events WHERE game_id = ? ORDER BY timestamp, id;
	`
	rows, err := r.db.QueryContext(ctx, q, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %v", err)
	}
	defer rows.Close()

	var list []*events.Event
	for rows.Next() {
		event := &events.Event{}
		var typ string
		var attributes string
		if err := rows.Scan(&event.ID, &event.GameID, &typ, &event.Actor, &event.Timestamp, &attributes); err != nil {
			return nil, fmt.Errorf("failed to scan event: %v", err)
		}
		event.Type = events.Type(typ)
		if err := json.Unmarshal([]byte(attributes), &event.Attributes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event attributes: %v", err)
		}
		list = append(list, event)
	}

	return list, rows.Err()
}

func (r *SQLiteRepository) SaveBalances(ctx context.Context, balances map[string]uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM balances;`); err != nil {
		return fmt.Errorf("failed to clear balances: %v", err)
	}
	for participant, balance := range balances {
		q := `
		INSERT INTO balances (participant, balance)
		VALUES (?, ?);
		`
		if _, err := tx.ExecContext(ctx, q, participant, balance); err != nil {
			return fmt.Errorf("failed to insert balance: %v", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}

	return nil
}

func (r *SQLiteRepository) LoadBalances(ctx context.Context) (map[string]uint64, error) {
	q := `
	SELECT participant, balance FROM balances;
	`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query balances: %v", err)
	}
	defer rows.Close()

	balances := make(map[string]uint64)
	for rows.Next() {
		var participant string
		var balance uint64
		if err := rows.Scan(&participant, &balance); err != nil {
			return nil, fmt.Errorf("failed to scan balance: %v", err)
		}
		balances[participant] = balance
	}

	return balances, rows.Err()
}
