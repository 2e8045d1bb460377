package auth

import (
	"context"
	"sync"
	"time"

	"github.com/shutterbook/studio-api/internal/domain"
)

// memStore is an in-memory user and code store with the same atomicity the real
// stores give: every method runs under one lock.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]domain.User
	codes  map[int64]domain.OneTimeCode
}

func newMemStore() *memStore {
	return &memStore{users: map[int64]domain.User{}, codes: map[int64]domain.OneTimeCode{}}
}

func (m *memStore) find(match func(domain.User) bool) (*domain.User, error) {
	for _, u := range m.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memStore) Get(_ context.Context, id int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.find(func(u domain.User) bool { return u.ID == id })
}

func (m *memStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.find(func(u domain.User) bool { return u.Email == email })
}

func (m *memStore) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.find(func(u domain.User) bool { return u.Username == username })
}

func (m *memStore) taken(id int64, email, username string) bool {
	_, err := m.find(func(u domain.User) bool {
		return u.ID != id && (u.Email == email || u.Username == username)
	})
	return err == nil
}

func (m *memStore) Create(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.taken(0, u.Email, u.Username) {
		return domain.ErrConflict
	}
	m.nextID++
	u.ID = m.nextID
	m.users[u.ID] = *u
	return nil
}

func (m *memStore) Update(_ context.Context, id int64, upd domain.UserUpdate, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.Username != nil {
		u.Username = *upd.Username
	}
	if m.taken(id, u.Email, u.Username) {
		return domain.ErrConflict
	}
	u.UpdatedAt = at
	m.users[id] = u
	return nil
}

func (m *memStore) SetActive(_ context.Context, id int64, active bool, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.IsActive = active
	u.UpdatedAt = at
	m.users[id] = u
	return nil
}

func (m *memStore) Replace(_ context.Context, c *domain.OneTimeCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[c.UserID] = *c
	return nil
}

func (m *memStore) code(userID int64) (domain.OneTimeCode, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[userID]
	return c, ok
}

func (m *memStore) Consume(_ context.Context, userID int64, code string, now time.Time) (*domain.OneTimeCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[userID]
	if !ok || c.Code != code || !c.Live(now) {
		return nil, domain.ErrNotFound
	}
	c.IsUsed = true
	m.codes[userID] = c
	return &c, nil
}

func (m *memStore) DeleteUsed(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.codes[userID]; ok && c.IsUsed {
		delete(m.codes, userID)
	}
	return nil
}

func (m *memStore) DeleteByUser(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.codes, userID)
	return nil
}
