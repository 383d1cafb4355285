package server

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jcob-sikorski/mech-mashup/internal/models"
	"github.com/jcob-sikorski/mech-mashup/internal/repositories"
)

// memoryAccounts is an in-process AccountRepository for exercising the full
// router without Postgres.
type memoryAccounts struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]models.Account
}

func newMemoryAccounts() *memoryAccounts {
	return &memoryAccounts{nextID: 1, rows: map[int64]models.Account{}}
}

func (m *memoryAccounts) ListAccounts(_ context.Context) ([]models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Account, 0, len(m.rows))
	for _, a := range m.rows {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DateJoined.Equal(out[j].DateJoined) {
			return out[i].DateJoined.After(out[j].DateJoined)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *memoryAccounts) GetAccountByID(_ context.Context, id int64) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &a, nil
}

func (m *memoryAccounts) GetAccountByUsername(_ context.Context, username string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byUsername(username)
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &a, nil
}

func (m *memoryAccounts) CreateAccount(_ context.Context, account models.Account) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byUsername(account.Username); ok {
		return nil, repositories.ErrDuplicateUsername
	}
	account.ID = m.nextID
	m.nextID++
	m.rows[account.ID] = account
	return &account, nil
}

func (m *memoryAccounts) UpdateAccount(_ context.Context, id int64, update models.AccountUpdate) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	if update.Username != nil {
		if other, ok := m.byUsername(*update.Username); ok && other.ID != id {
			return nil, repositories.ErrDuplicateUsername
		}
		a.Username = *update.Username
	}
	if update.Email != nil {
		a.Email = *update.Email
	}
	if update.FirstName != nil {
		a.FirstName = *update.FirstName
	}
	if update.LastName != nil {
		a.LastName = *update.LastName
	}
	m.rows[id] = a
	return &a, nil
}

func (m *memoryAccounts) SetStaff(_ context.Context, username string, isStaff bool) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byUsername(username)
	if !ok {
		return nil, repositories.ErrNotFound
	}
	a.IsStaff = isStaff
	m.rows[a.ID] = a
	return &a, nil
}

func (m *memoryAccounts) CheckUsernameExists(_ context.Context, username string, excludeID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byUsername(username)
	return ok && a.ID != excludeID, nil
}

func (m *memoryAccounts) Login(_ context.Context, username string, verify func(*models.Account) error, now time.Time, recordLogin bool) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byUsername(username)
	if !ok {
		return nil, repositories.ErrNotFound
	}
	if err := verify(&a); err != nil {
		return nil, err
	}
	if recordLogin {
		a.LastLogin = &now
		m.rows[a.ID] = a
	}
	return &a, nil
}

func (m *memoryAccounts) byUsername(username string) (models.Account, bool) {
	for _, a := range m.rows {
		if a.Username == username {
			return a, true
		}
	}
	return models.Account{}, false
}

type memoryBlacklist struct {
	mu   sync.Mutex
	jtis map[string]models.BlacklistedToken
}

func newMemoryBlacklist() *memoryBlacklist {
	return &memoryBlacklist{jtis: map[string]models.BlacklistedToken{}}
}

func (b *memoryBlacklist) Add(_ context.Context, token models.BlacklistedToken) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.jtis[token.JTI]; !ok {
		b.jtis[token.JTI] = token
	}
	return nil
}

func (b *memoryBlacklist) Contains(_ context.Context, jti string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.jtis[jti]
	return ok, nil
}
