package auth

import (
	"context"
	"sync"
)

// StubValidator resolves tokens from a fixed table, for development and
// tests that do not want to mint real JWTs.
type StubValidator struct {
	mu     sync.RWMutex
	tokens map[string]Identity
}

// NewStubValidator creates an empty stub validator.
func NewStubValidator() *StubValidator {
	return &StubValidator{tokens: make(map[string]Identity)}
}

// Allow registers a token as valid for the given identity.
func (s *StubValidator) Allow(token string, identity Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = identity
}

// ValidateToken resolves a previously allowed token.
func (s *StubValidator) ValidateToken(ctx context.Context, token string) (Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if identity, ok := s.tokens[token]; ok {
		return identity, nil
	}
	return Identity{}, ErrInvalidToken
}
