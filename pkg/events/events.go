package events

import (
	"sync"

	"github.com/google/uuid"
	"github.com/merkleship/merkleship/pkg/log"
)

// Type labels the semantic outcome of a state transition.
type Type string

const (
	TypeProposed          Type = "gameProposed"
	TypeAccepted          Type = "gameAccepted"
	TypeCanceled          Type = "gameCanceled"
	TypeGuess             Type = "guess"
	TypeReveal            Type = "reveal"
	TypeSmackTalk         Type = "smackTalk"
	TypeVictoryPending    Type = "victoryPending"
	TypeVictoryChallenged Type = "victoryChallenged"
	TypeWinner            Type = "winner"
	TypeEmergency         Type = "emergency"
	TypeDeposit           Type = "deposit"
	TypeWithdraw          Type = "withdraw"
)

// Event is one append-only audit record. Every state transition emits one
// or more events; the core never reads them back.
type Event struct {
	ID         string            `json:"id"`
	Type       Type              `json:"type"`
	GameID     uint32            `json:"gameId,omitempty"`
	Actor      string            `json:"actor,omitempty"`
	Timestamp  int64             `json:"timestamp"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// New constructs an event with a fresh identifier.
func New(typ Type, gameID uint32, actor string, timestamp int64, attributes map[string]string) *Event {
	return &Event{
		ID:         uuid.NewString(),
		Type:       typ,
		GameID:     gameID,
		Actor:      actor,
		Timestamp:  timestamp,
		Attributes: attributes,
	}
}

// Handler is a callback invoked for every emitted event.
type Handler func(*Event)

// Emitter fans events out to subscribers. Subscribe before Emit.
type Emitter struct {
	mu       sync.RWMutex
	handlers []Handler
}

func NewEmitter() *Emitter {
	return &Emitter{}
}

// Subscribe registers h to be called for every emitted event.
func (e *Emitter) Subscribe(h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, h)
}

// Emit delivers ev to all subscribers synchronously. Handlers are guarded
// by panic recovery so a misbehaving subscriber cannot abort a transition
// that already committed.
func (e *Emitter) Emit(ev *Event) {
	e.mu.RLock()
	handlers := e.handlers
	e.mu.RUnlock()
	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error("event handler panicked for %s: %v", ev.Type, r)
				}
			}()
			h(ev)
		}()
	}
}
