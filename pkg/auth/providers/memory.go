package providers

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// InMemoryProvider issues opaque bearer tokens mapped to player identifiers.
// Tokens live for the lifetime of the process; a restart requires players to
// register again under the same name to receive a fresh token.
type InMemoryProvider struct {
	mu     sync.RWMutex
	tokens map[string]string
	names  map[string]string
}

func NewInMemoryProvider() *InMemoryProvider {
	return &InMemoryProvider{
		tokens: make(map[string]string),
		names:  make(map[string]string),
	}
}

func (p *InMemoryProvider) Register(ctx context.Context, name string) (*Registration, error) {
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	playerID, ok := p.names[name]
	if !ok {
		playerID = uuid.NewString()
		p.names[name] = playerID
	}

	token := uuid.NewString()
	p.tokens[token] = playerID

	return &Registration{
		PlayerID: playerID,
		Token:    token,
	}, nil
}

func (p *InMemoryProvider) VerifyToken(ctx context.Context, idToken string) (*TokenClaims, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	playerID, ok := p.tokens[idToken]
	if !ok {
		return nil, fmt.Errorf("unknown token")
	}
	return &TokenClaims{
		PlayerID: playerID,
	}, nil
}
