package api

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenStore holds the session's id and refresh tokens.
type TokenStore interface {
	IDToken() string
	RefreshToken() string
	SetIDToken(string)
	SetRefreshToken(string)
	Clear()
}

// MemoryTokenStore keeps tokens for the lifetime of the process.
type MemoryTokenStore struct {
	mu      sync.RWMutex
	id      string
	refresh string
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (m *MemoryTokenStore) IDToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.id
}

func (m *MemoryTokenStore) RefreshToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.refresh
}

func (m *MemoryTokenStore) SetIDToken(tok string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.id = tok
}

func (m *MemoryTokenStore) SetRefreshToken(tok string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refresh = tok
}

func (m *MemoryTokenStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.id = ""
	m.refresh = ""
}

// tokenExpired reads the exp claim without verifying the signature; the
// service verifies. Tokens that do not parse or carry no exp are treated as
// valid and left for the service to reject.
func tokenExpired(tok string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !now.Before(exp.Time)
}
