package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xxxsen/mtodo/internal/model"
	appErr "github.com/xxxsen/mtodo/internal/pkg/errors"
)

type memUserStore struct {
	mu    sync.Mutex
	users map[string]*model.User
	// failSetToken, when set, is returned by SetVerificationToken.
	failSetToken error
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: map[string]*model.User{}}
}

func (m *memUserStore) Create(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return appErr.ErrConflict
		}
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memUserStore) GetByID(_ context.Context, userID string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUserStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, appErr.ErrNotFound
}

func (m *memUserStore) GetByVerificationToken(_ context.Context, token, purpose string, now int64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if token == "" {
		return nil, appErr.ErrNotFound
	}
	for _, u := range m.users {
		if u.VerificationToken == token && u.TokenPurpose == purpose && u.VerificationTokenExpiry > now {
			cp := *u
			return &cp, nil
		}
	}
	return nil, appErr.ErrNotFound
}

func (m *memUserStore) List(_ context.Context) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (m *memUserStore) SetVerificationToken(_ context.Context, userID, token, purpose string, expiry, mtime int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSetToken != nil {
		return m.failSetToken
	}
	u, ok := m.users[userID]
	if !ok {
		return appErr.ErrNotFound
	}
	u.VerificationToken = token
	u.TokenPurpose = purpose
	u.VerificationTokenExpiry = expiry
	u.Mtime = mtime
	return nil
}

func (m *memUserStore) MarkVerified(_ context.Context, userID, token string, mtime int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok || token == "" || u.VerificationToken != token || u.TokenPurpose != model.TokenPurposeVerify {
		return appErr.ErrNotFound
	}
	u.IsVerified = true
	u.VerificationToken = ""
	u.TokenPurpose = ""
	u.VerificationTokenExpiry = 0
	u.Mtime = mtime
	return nil
}

func (m *memUserStore) ResetPassword(_ context.Context, userID, token, passwordHash string, mtime int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok || token == "" || u.VerificationToken != token || u.TokenPurpose != model.TokenPurposeReset {
		return appErr.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.VerificationToken = ""
	u.TokenPurpose = ""
	u.VerificationTokenExpiry = 0
	u.Mtime = mtime
	return nil
}

func (m *memUserStore) delete(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, userID)
}

type sentMail struct {
	kind  string
	to    string
	token string
	ttl   time.Duration
}

type fakeMailer struct {
	fail bool
	sent []sentMail
}

func (f *fakeMailer) SendVerification(_ context.Context, to, _, token string, ttl time.Duration) bool {
	f.sent = append(f.sent, sentMail{kind: "verification", to: to, token: token, ttl: ttl})
	return !f.fail
}

func (f *fakeMailer) SendPasswordReset(_ context.Context, to, _, token string, ttl time.Duration) bool {
	f.sent = append(f.sent, sentMail{kind: "reset", to: to, token: token, ttl: ttl})
	return !f.fail
}

func (f *fakeMailer) last() sentMail {
	if len(f.sent) == 0 {
		return sentMail{}
	}
	return f.sent[len(f.sent)-1]
}

type allowAll struct{}

func (allowAll) Acquire(context.Context, string) (bool, error) { return true, nil }
func (allowAll) Release(context.Context, string) error { return nil }

type memTodoStore struct {
	mu    sync.Mutex
	seq   int64
	order map[string]int64
	todos map[string]*model.Todo
}

func newMemTodoStore() *memTodoStore {
	return &memTodoStore{order: map[string]int64{}, todos: map[string]*model.Todo{}}
}

func (m *memTodoStore) Create(_ context.Context, todo *model.Todo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	cp := *todo
	m.order[todo.ID] = m.seq
	m.todos[todo.ID] = &cp
	return nil
}

func (m *memTodoStore) GetByID(_ context.Context, todoID string) (*model.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.todos[todoID]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTodoStore) GetByOwner(ctx context.Context, userID, todoID string) (*model.Todo, error) {
	t, err := m.GetByID(ctx, todoID)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, appErr.ErrNotFound
	}
	return t, nil
}

func (m *memTodoStore) ListByUser(_ context.Context, userID string) ([]model.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Todo{}
	for _, t := range m.todos {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return m.order[out[i].ID] > m.order[out[j].ID] })
	return out, nil
}

func (m *memTodoStore) Update(_ context.Context, todo *model.Todo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.todos[todo.ID]
	if !ok || t.UserID != todo.UserID {
		return appErr.ErrNotFound
	}
	t.Title = todo.Title
	t.Description = todo.Description
	t.Mtime = todo.Mtime
	return nil
}

func (m *memTodoStore) ToggleCompleted(_ context.Context, userID, todoID string, mtime int64) (*model.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.todos[todoID]
	if !ok || t.UserID != userID {
		return nil, appErr.ErrNotFound
	}
	t.Completed = !t.Completed
	t.Mtime = mtime
	cp := *t
	return &cp, nil
}

func (m *memTodoStore) Delete(_ context.Context, userID, todoID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.todos[todoID]
	if !ok || t.UserID != userID {
		return appErr.ErrNotFound
	}
	delete(m.todos, todoID)
	return nil
}
