package handler

import (
	"context"
	"sync"
	"time"

	"github.com/xxxsen/mtodo/internal/model"
	appErr "github.com/xxxsen/mtodo/internal/pkg/errors"
)

type memUsers struct {
	mu   sync.Mutex
	byID map[string]*model.User
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[string]*model.User{}}
}

func (m *memUsers) find(match func(*model.User) bool) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, appErr.ErrNotFound
}

func (m *memUsers) Create(_ context.Context, user *model.User) error {
	if _, err := m.GetByEmail(context.Background(), user.Email); err == nil {
		return appErr.ErrConflict
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *user
	m.byID[user.ID] = &cp
	return nil
}

func (m *memUsers) GetByID(_ context.Context, userID string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.ID == userID })
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.Email == email })
}

func (m *memUsers) GetByVerificationToken(_ context.Context, token, purpose string, now int64) (*model.User, error) {
	return m.find(func(u *model.User) bool {
		return token != "" && u.VerificationToken == token && u.TokenPurpose == purpose && u.VerificationTokenExpiry > now
	})
}

func (m *memUsers) List(_ context.Context) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.User, 0, len(m.byID))
	for _, u := range m.byID {
		out = append(out, *u)
	}
	return out, nil
}

func (m *memUsers) mutate(userID string, fn func(*model.User) bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[userID]
	if !ok || !fn(u) {
		return appErr.ErrNotFound
	}
	return nil
}

func (m *memUsers) SetVerificationToken(_ context.Context, userID, token, purpose string, expiry, mtime int64) error {
	return m.mutate(userID, func(u *model.User) bool {
		u.VerificationToken, u.TokenPurpose, u.VerificationTokenExpiry, u.Mtime = token, purpose, expiry, mtime
		return true
	})
}

func (m *memUsers) MarkVerified(_ context.Context, userID, token string, mtime int64) error {
	return m.mutate(userID, func(u *model.User) bool {
		if u.VerificationToken != token || u.TokenPurpose != model.TokenPurposeVerify {
			return false
		}
		u.IsVerified, u.VerificationToken, u.TokenPurpose, u.VerificationTokenExpiry, u.Mtime = true, "", "", 0, mtime
		return true
	})
}

func (m *memUsers) ResetPassword(_ context.Context, userID, token, hash string, mtime int64) error {
	return m.mutate(userID, func(u *model.User) bool {
		if u.VerificationToken != token || u.TokenPurpose != model.TokenPurposeReset {
			return false
		}
		u.PasswordHash, u.VerificationToken, u.TokenPurpose, u.VerificationTokenExpiry, u.Mtime = hash, "", "", 0, mtime
		return true
	})
}

func (m *memUsers) setRole(email, role string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			u.Role = role
		}
	}
}

type memTodos struct {
	mu    sync.Mutex
	items []*model.Todo
}

func (m *memTodos) Create(_ context.Context, todo *model.Todo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *todo
	m.items = append(m.items, &cp)
	return nil
}

func (m *memTodos) GetByID(_ context.Context, todoID string) (*model.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.items {
		if t.ID == todoID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, appErr.ErrNotFound
}

func (m *memTodos) GetByOwner(ctx context.Context, userID, todoID string) (*model.Todo, error) {
	t, err := m.GetByID(ctx, todoID)
	if err != nil || t.UserID != userID {
		return nil, appErr.ErrNotFound
	}
	return t, nil
}

func (m *memTodos) ListByUser(_ context.Context, userID string) ([]model.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Todo{}
	for i := len(m.items) - 1; i >= 0; i-- {
		if m.items[i].UserID == userID {
			out = append(out, *m.items[i])
		}
	}
	return out, nil
}

func (m *memTodos) owned(userID, todoID string) (int, bool) {
	for i, t := range m.items {
		if t.ID == todoID && t.UserID == userID {
			return i, true
		}
	}
	return 0, false
}

func (m *memTodos) Update(_ context.Context, todo *model.Todo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.owned(todo.UserID, todo.ID)
	if !ok {
		return appErr.ErrNotFound
	}
	m.items[i].Title, m.items[i].Description, m.items[i].Mtime = todo.Title, todo.Description, todo.Mtime
	return nil
}

func (m *memTodos) ToggleCompleted(_ context.Context, userID, todoID string, mtime int64) (*model.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.owned(userID, todoID)
	if !ok {
		return nil, appErr.ErrNotFound
	}
	m.items[i].Completed = !m.items[i].Completed
	m.items[i].Mtime = mtime
	cp := *m.items[i]
	return &cp, nil
}

func (m *memTodos) Delete(_ context.Context, userID, todoID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.owned(userID, todoID)
	if !ok {
		return appErr.ErrNotFound
	}
	m.items = append(m.items[:i], m.items[i+1:]...)
	return nil
}

type captureMailer struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (c *captureMailer) remember(to, token string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[to] = token
	return true
}

func (c *captureMailer) SendVerification(_ context.Context, to, _, token string, _ time.Duration) bool {
	return c.remember(to, token)
}

func (c *captureMailer) SendPasswordReset(_ context.Context, to, _, token string, _ time.Duration) bool {
	return c.remember(to, token)
}

func (c *captureMailer) token(to string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokens[to]
}
