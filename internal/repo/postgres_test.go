package repo

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/mtodo/internal/config"
	"github.com/xxxsen/mtodo/internal/db"
	"github.com/xxxsen/mtodo/internal/model"
	appErr "github.com/xxxsen/mtodo/internal/pkg/errors"
)

// openTestDB connects to a real Postgres when TEST_DB_HOST is set.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set, skipping postgres test")
	}
	conn, err := db.Open(config.DatabaseConfig{
		Host:     host,
		Port:     5432,
		User:     "mtodo",
		Password: "mtodo_pass",
		DBName:   "mtodo_test",
		SSLMode:  "disable",
	})
	require.NoError(t, err)
	require.NoError(t, db.ApplyMigrations(conn))
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func newPGUser(email string) *model.User {
	return &model.User{
		ID:                      uuid.NewString(),
		Name:                    "Tester",
		Email:                   email,
		PasswordHash:            "hash",
		Role:                    model.RoleUser,
		VerificationToken:       uuid.NewString(),
		VerificationTokenExpiry: 2000,
		TokenPurpose:            model.TokenPurposeVerify,
		Ctime:                   1000,
		Mtime:                   1000,
	}
}

func TestPostgres_UserTokenLifecycle(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	users := NewUserRepo(conn)

	user := newPGUser(uuid.NewString() + "@example.com")
	require.NoError(t, users.Create(ctx, user))
	require.ErrorIs(t, users.Create(ctx, newPGUser(user.Email)), appErr.ErrConflict)

	got, err := users.GetByVerificationToken(ctx, user.VerificationToken, model.TokenPurposeVerify, 1999)
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)
	_, err = users.GetByVerificationToken(ctx, user.VerificationToken, model.TokenPurposeVerify, 2000)
	require.ErrorIs(t, err, appErr.ErrNotFound)
	_, err = users.GetByVerificationToken(ctx, user.VerificationToken, model.TokenPurposeReset, 1999)
	require.ErrorIs(t, err, appErr.ErrNotFound)
	require.ErrorIs(t, users.ResetPassword(ctx, user.ID, user.VerificationToken, "stolen", 1500), appErr.ErrNotFound)

	require.NoError(t, users.MarkVerified(ctx, user.ID, user.VerificationToken, 1500))
	require.ErrorIs(t, users.MarkVerified(ctx, user.ID, user.VerificationToken, 1500), appErr.ErrNotFound)

	got, err = users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, got.IsVerified)
	require.Empty(t, got.VerificationToken)

	require.NoError(t, users.SetVerificationToken(ctx, user.ID, "reset-"+user.ID, model.TokenPurposeReset, 1600, 1500))
	require.NoError(t, users.ResetPassword(ctx, user.ID, "reset-"+user.ID, "new-hash", 1550))
	got, err = users.GetByEmail(ctx, user.Email)
	require.NoError(t, err)
	require.Equal(t, "new-hash", got.PasswordHash)

	require.NoError(t, users.SetVerificationToken(ctx, user.ID, "stale-"+user.ID, model.TokenPurposeReset, 1600, 1500))
	cleared, err := users.ClearExpiredTokens(ctx, 1600)
	require.NoError(t, err)
	require.GreaterOrEqual(t, cleared, int64(1))
	got, err = users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.Empty(t, got.VerificationToken)
	require.Zero(t, got.VerificationTokenExpiry)
	require.Empty(t, got.TokenPurpose)

	require.NoError(t, users.UpdateRole(ctx, user.ID, model.RoleAdmin, 1700))
	got, err = users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, got.IsAdmin())
}

func TestPostgres_TodoScoping(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	users := NewUserRepo(conn)
	todos := NewTodoRepo(conn)

	owner := newPGUser(uuid.NewString() + "@example.com")
	other := newPGUser(uuid.NewString() + "@example.com")
	require.NoError(t, users.Create(ctx, owner))
	require.NoError(t, users.Create(ctx, other))

	todo := &model.Todo{ID: uuid.NewString(), UserID: owner.ID, Title: "T", Description: "D", Ctime: 10, Mtime: 10}
	require.NoError(t, todos.Create(ctx, todo))

	items, err := todos.ListByUser(ctx, other.ID)
	require.NoError(t, err)
	require.Empty(t, items)

	toggled, err := todos.ToggleCompleted(ctx, owner.ID, todo.ID, 11)
	require.NoError(t, err)
	require.True(t, toggled.Completed)
	_, err = todos.ToggleCompleted(ctx, other.ID, todo.ID, 12)
	require.ErrorIs(t, err, appErr.ErrNotFound)

	todo.Title, todo.Description, todo.Mtime = "T2", "D2", 13
	require.NoError(t, todos.Update(ctx, todo))
	got, err := todos.GetByOwner(ctx, owner.ID, todo.ID)
	require.NoError(t, err)
	require.Equal(t, "T2", got.Title)
	_, err = todos.GetByOwner(ctx, other.ID, todo.ID)
	require.ErrorIs(t, err, appErr.ErrNotFound)

	require.ErrorIs(t, todos.Delete(ctx, other.ID, todo.ID), appErr.ErrNotFound)
	require.NoError(t, todos.Delete(ctx, owner.ID, todo.ID))
	_, err = todos.GetByID(ctx, todo.ID)
	require.ErrorIs(t, err, appErr.ErrNotFound)
}
