package state

import (
	"sort"
	"sync"

	"github.com/merkleship/merkleship/pkg/game/types"
)

// Ledger is the shared in-memory game store. Every transition runs through
// Update, which serializes writers per game and commits all-or-nothing:
// the mutation function works on a copy, and an error discards it.
type Ledger struct {
	mu    sync.RWMutex
	games map[uint32]*types.Game
	locks map[uint32]*sync.Mutex
	count uint32
	dirty map[uint32]bool
}

func NewLedger() *Ledger {
	return &Ledger{
		games: make(map[uint32]*types.Game),
		locks: make(map[uint32]*sync.Mutex),
		dirty: make(map[uint32]bool),
	}
}

// Create allocates the next game identifier (the first game is 1, so zero
// always means "no game") and stores the game built by the callback.
func (l *Ledger) Create(build func(id uint32) *types.Game) *types.Game {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.count++
	id := l.count
	g := build(id)
	l.games[id] = g
	l.locks[id] = &sync.Mutex{}
	l.dirty[id] = true
	return g.Copy()
}

// Get returns a copy of the game.
func (l *Ledger) Get(id uint32) (*types.Game, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	g, ok := l.games[id]
	if !ok {
		return nil, &types.ErrNotFound{ID: id}
	}
	return g.Copy(), nil
}

// Update applies fn to a copy of the game under the game's lock and commits
// the copy only if fn returns nil. Concurrent updates to different games do
// not contend.
func (l *Ledger) Update(id uint32, fn func(g *types.Game) error) (*types.Game, error) {
	l.mu.RLock()
	lock, ok := l.locks[id]
	l.mu.RUnlock()
	if !ok {
		return nil, &types.ErrNotFound{ID: id}
	}

	lock.Lock()
	defer lock.Unlock()

	l.mu.RLock()
	g := l.games[id]
	l.mu.RUnlock()

	next := g.Copy()
	if err := fn(next); err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.games[id] = next
	l.dirty[id] = true
	l.mu.Unlock()

	return next.Copy(), nil
}

// Count returns the number of games ever created.
func (l *Ledger) Count() uint32 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.count
}

// List returns copies of all games ordered by identifier.
func (l *Ledger) List() []*types.Game {
	l.mu.RLock()
	defer l.mu.RUnlock()
	games := make([]*types.Game, 0, len(l.games))
	for _, g := range l.games {
		games = append(games, g.Copy())
	}
	sort.Slice(games, func(i, j int) bool { return games[i].ID < games[j].ID })
	return games
}

// Restore inserts a game loaded from a repository and advances the counter
// past its identifier.
func (l *Ledger) Restore(g *types.Game) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.games[g.ID] = g.Copy()
	l.locks[g.ID] = &sync.Mutex{}
	if g.ID > l.count {
		l.count = g.ID
	}
}

// FlushDirty returns copies of games modified since the last flush.
func (l *Ledger) FlushDirty() []*types.Game {
	l.mu.Lock()
	defer l.mu.Unlock()
	games := make([]*types.Game, 0, len(l.dirty))
	for id := range l.dirty {
		games = append(games, l.games[id].Copy())
	}
	l.dirty = make(map[uint32]bool)
	sort.Slice(games, func(i, j int) bool { return games[i].ID < games[j].ID })
	return games
}
