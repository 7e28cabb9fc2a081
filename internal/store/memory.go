package store

import (
	"context"
	"sort"
	"sync"

	"qrattend/internal/model"
)

// Memory is a mutex-guarded in-process gateway for dev mode and tests. All
// reads return copies so callers can never mutate stored records in place.
type Memory struct {
	mu       sync.RWMutex
	accounts map[string]model.Account
	sessions map[string]model.Session
	checkIns []model.CheckIn
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[string]model.Account),
		sessions: make(map[string]model.Session),
	}
}

// ListAccounts returns all accounts in no particular order.
func (m *Memory) ListAccounts(ctx context.Context) ([]model.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, a)
	}
	return out, nil
}

// ListSessions returns all sessions, newest first.
func (m *Memory) ListSessions(ctx context.Context) ([]model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// ListCheckIns returns all check-ins, newest first.
func (m *Memory) ListCheckIns(ctx context.Context) ([]model.CheckIn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.CheckIn, len(m.checkIns))
	copy(out, m.checkIns)
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

// UpsertAccount inserts the account or replaces it by identifier. A different
// account already holding the same email is a duplicate.
func (m *Memory) UpsertAccount(ctx context.Context, a model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.accounts {
		if id != a.ID && existing.Email == a.Email {
			return ErrDuplicate
		}
	}
	m.accounts[a.ID] = a
	return nil
}

// UpsertSession inserts the session or replaces it by identifier. A different
// session already holding the same token is a duplicate; a token is never
// silently reassigned.
func (m *Memory) UpsertSession(ctx context.Context, s model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.sessions {
		if id != s.ID && existing.Token == s.Token {
			return ErrDuplicate
		}
	}
	m.sessions[s.ID] = s
	return nil
}

// AppendCheckIn inserts a new check-in. An existing record for the same
// (account, session) pair is a duplicate.
func (m *Memory) AppendCheckIn(ctx context.Context, c model.CheckIn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.checkIns {
		if existing.AccountID == c.AccountID && existing.SessionID == c.SessionID {
			return ErrDuplicate
		}
	}
	m.checkIns = append(m.checkIns, c)
	return nil
}

// GetAccountByID returns the account for id, or nil if not found.
func (m *Memory) GetAccountByID(ctx context.Context, id string) (*model.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if a, ok := m.accounts[id]; ok {
		return &a, nil
	}
	return nil, nil
}

// GetAccountByEmail returns the account with the given email, or nil if not
// found. Matching is exact and case-sensitive.
func (m *Memory) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.accounts {
		if a.Email == email {
			match := a
			return &match, nil
		}
	}
	return nil, nil
}

// GetSessionByID returns the session for id, or nil if not found.
func (m *Memory) GetSessionByID(ctx context.Context, id string) (*model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[id]; ok {
		return &s, nil
	}
	return nil, nil
}

// GetSessionByToken returns the session whose token equals token, or nil if
// none matches. Matching is exact and case-sensitive.
func (m *Memory) GetSessionByToken(ctx context.Context, token string) (*model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sessions {
		if s.Token == token {
			match := s
			return &match, nil
		}
	}
	return nil, nil
}

// ListCheckInsByAccount returns the account's check-ins, newest first.
func (m *Memory) ListCheckInsByAccount(ctx context.Context, accountID string) ([]model.CheckIn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.CheckIn
	for _, c := range m.checkIns {
		if c.AccountID == accountID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}
