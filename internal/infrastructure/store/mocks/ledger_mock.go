package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type mockClaim struct {
	token   string
	expires time.Time
}

// MockLedger is an in-memory settlement claim ledger
type MockLedger struct {
	mu        sync.Mutex
	claims    map[string]mockClaim
	completed map[string]bool
	issued    int

	ClaimCalls    []string
	ReleaseCalls  []string
	CompleteCalls []string
	ClaimErr      error
}

func NewMockLedger() *MockLedger {
	return &MockLedger{
		claims:    make(map[string]mockClaim),
		completed: make(map[string]bool),
	}
}

// Hold marks a session as claimed by another worker
func (m *MockLedger) Hold(sessionID string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claims[sessionID] = mockClaim{token: "held-elsewhere", expires: time.Now().Add(ttl)}
}

// Held reports whether an unexpired claim exists for the session.
func (m *MockLedger) Held(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[sessionID]
	return ok && time.Now().Before(c.expires)
}

func (m *MockLedger) Claim(_ context.Context, sessionID string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ClaimCalls = append(m.ClaimCalls, sessionID)

	if m.ClaimErr != nil {
		return "", m.ClaimErr
	}
	if m.completed[sessionID] {
		return "", nil
	}
	if c, ok := m.claims[sessionID]; ok && time.Now().Before(c.expires) {
		return "", nil
	}
	m.issued++
	token := fmt.Sprintf("claim-%d", m.issued)
	m.claims[sessionID] = mockClaim{token: token, expires: time.Now().Add(ttl)}
	return token, nil
}

func (m *MockLedger) Release(_ context.Context, sessionID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReleaseCalls = append(m.ReleaseCalls, sessionID)
	if c, ok := m.claims[sessionID]; ok && c.token == token {
		delete(m.claims, sessionID)
	}
	return nil
}

func (m *MockLedger) Complete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CompleteCalls = append(m.CompleteCalls, sessionID)
	delete(m.claims, sessionID)
	m.completed[sessionID] = true
	return nil
}
