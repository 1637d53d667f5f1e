package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/merkleship/merkleship/pkg/events"
	gametypes "github.com/merkleship/merkleship/pkg/game/types"
	"github.com/merkleship/merkleship/pkg/log"
)

type PostgresRepository struct {
	conn *pgx.Conn
}

// NewPostgresRepository connects to the database and ensures the schema
// exists. The caller is responsible for calling Close() on the repository.
func NewPostgresRepository(ctx context.Context, connStr string) (Repository, error) {
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	var username string
	var database string
	if err := conn.QueryRow(ctx, "SELECT current_user, current_database()").Scan(&username, &database); err != nil {
		return nil, fmt.Errorf("failed to query database: %v", err)
	}
	log.Info("Connected to %s as %s", database, username)

	schema := `
	CREATE TABLE IF NOT EXISTS games (
		id BIGINT PRIMARY KEY,
		state TEXT NOT NULL,
		data JSONB NOT NULL
	);
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		game_id BIGINT NOT NULL,
		type TEXT NOT NULL,
		actor TEXT NOT NULL,
		timestamp BIGINT NOT NULL,
		attributes JSONB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS events_game_id_idx ON events (game_id, timestamp);
	CREATE TABLE IF NOT EXISTS balances (
		participant TEXT PRIMARY KEY,
		balance BIGINT NOT NULL
	);
	`
	if _, err := conn.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to ensure schema: %v", err)
	}

	return &PostgresRepository{
		conn: conn,
	}, nil
}

func (r *PostgresRepository) Close(ctx context.Context) error {
	return r.conn.Close(ctx)
}

func (r *PostgresRepository) SaveGame(ctx context.Context, game *gametypes.Game) error {
	data, err := json.Marshal(game)
	if err != nil {
		return fmt.Errorf("failed to marshal game: %v", err)
	}

	q := `
	INSERT INTO games (id, state, data) VALUES ($1, $2, $3)
	ON CONFLICT (id) DO UPDATE SET state = $2, data = $3;
	`
	if _, err := r.conn.Exec(ctx, q, game.ID, game.State.String(), data); err != nil {
		return fmt.Errorf("failed to insert game: %v", err)
	}

	return nil
}

func (r *PostgresRepository) LoadGame(ctx context.Context, id uint32) (*gametypes.Game, error) {
	q := `
	SELECT data FROM games WHERE id = $1;
	`
	var data []byte
	if err := r.conn.QueryRow(ctx, q, id).Scan(&data); err != nil {
		if err == pgx.ErrNoRows {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan game: %v", err)
	}

	game := &gametypes.Game{}
	if err := json.Unmarshal(data, game); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game: %v", err)
	}
	return game, nil
}

func (r *PostgresRepository) ListGames(ctx context.Context) ([]*gametypes.Game, error) {
	q := `
	SELECT data FROM games ORDER BY id;
	`
	rows, err := r.conn.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query games: %v", err)
	}
	defer rows.Close()

	var games []*gametypes.Game
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan game: %v", err)
		}
		game := &gametypes.Game{}
		if err := json.Unmarshal(data, game); err != nil {
			return nil, fmt.Errorf("failed to unmarshal game: %v", err)
		}
		games = append(games, game)
	}

	return games, rows.Err()
}

func (r *PostgresRepository) SaveEvent(ctx context.Context, event *events.Event) error {
	attributes, err := json.Marshal(event.Attributes)
	if err != nil {
		return fmt.Errorf("failed to marshal event attributes: %v", err)
	}

	q := `
	INSERT INTO events (id, game_id, type, actor, timestamp, attributes)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO NOTHING;
	`
	if _, err := r.conn.Exec(ctx, q, event.ID, event.GameID, string(event.Type), event.Actor, event.Timestamp, attributes); err != nil {
		return fmt.Errorf("failed to insert event: %v", err)
	}

	return nil
}

func (r *PostgresRepository) ListEvents(ctx context.Context, gameID uint32) ([]*events.Event, error) {
	q := `
	SELECT id, game_id, type, actor, timestamp, attributes
	FROM events WHERE game_id = $1 ORDER BY timestamp, id;
	`
	rows, err := r.conn.Query(ctx, q, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %v", err)
	}
	defer rows.Close()

	var list []*events.Event
	for rows.Next() {
		event := &events.Event{}
		var typ string
		var attributes []byte
		if err := rows.Scan(&event.ID, &event.GameID, &typ, &event.Actor, &event.Timestamp, &attributes); err != nil {
			return nil, fmt.Errorf("failed to scan event: %v", err)
		}
		event.Type = events.Type(typ)
		if err := json.Unmarshal(attributes, &event.Attributes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event attributes: %v", err)
		}
		list = append(list, event)
	}

	return list, rows.Err()
}

func (r *PostgresRepository) SaveBalances(ctx context.Context, balances map[string]uint64) error {
	tx, err := r.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM balances;`); err != nil {
		return fmt.Errorf("failed to clear balances: %v", err)
	}
	for participant, balance := range balances {
		q := `
		INSERT INTO balances (participant, balance) VALUES ($1, $2);
		`
		if _, err := tx.Exec(ctx, q, participant, balance); err != nil {
			return fmt.Errorf("failed to insert balance: %v", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}

	return nil
}

func (r *PostgresRepository) LoadBalances(ctx context.Context) (map[string]uint64, error) {
	q := `
	SELECT participant, balance FROM balances;
	`
	rows, err := r.conn.Query(ctx, q)
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
