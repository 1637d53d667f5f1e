package providers

import "context"

type AuthProvider interface {
	Register(ctx context.Context, name string) (*Registration, error)
	VerifyToken(ctx context.Context, idToken string) (*TokenClaims, error)
}

type TokenClaims struct {
	PlayerID string `json:"playerId"`
}

type Registration struct {
	PlayerID string `json:"playerId"`
	Token    string `json:"token"`
}
