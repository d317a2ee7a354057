package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/mtodo/internal/model"
	"github.com/xxxsen/mtodo/internal/pkg/dbutil"
	appErr "github.com/xxxsen/mtodo/internal/pkg/errors"
)

var userFields = []string{
	"id", "name", "email", "password_hash", "is_verified", "role",
	"verification_token", "verification_token_expiry", "token_purpose", "ctime", "mtime",
}

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Create(ctx context.Context, user *model.User) error {
	data := map[string]interface{}{
		"id":                        user.ID,
		"name":                      user.Name,
		"email":                     user.Email,
		"password_hash":             user.PasswordHash,
		"is_verified":               user.IsVerified,
		"role":                      user.Role,
		"verification_token":        user.VerificationToken,
		"verification_token_expiry": user.VerificationTokenExpiry,
		"token_purpose":             user.TokenPurpose,
		"ctime":                     user.Ctime,
		"mtime":                     user.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("users", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, userID string) (*model.User, error) {
	return r.getOne(ctx, map[string]interface{}{"id": userID})
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, map[string]interface{}{"email": email})
}

// GetByVerificationToken returns the user holding token for purpose if it
// has not expired at now.
func (r *UserRepo) GetByVerificationToken(ctx context.Context, token, purpose string, now int64) (*model.User, error) {
	if token == "" || purpose == "" {
		return nil, appErr.ErrNotFound
	}
	return r.getOne(ctx, map[string]interface{}{
		"verification_token":          token,
		"token_purpose":               purpose,
		"verification_token_expiry >": now,
	})
}

func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	sqlStr, args, err := builder.BuildSelect("users", map[string]interface{}{"_orderby": "ctime desc"}, userFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	users := make([]model.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// SetVerificationToken overwrites the token pair, whatever purpose it held.
func (r *UserRepo) SetVerificationToken(ctx context.Context, userID, token, purpose string, expiry, mtime int64) error {
	return r.update(ctx, map[string]interface{}{"id": userID}, map[string]interface{}{
		"verification_token":        token,
		"verification_token_expiry": expiry,
		"token_purpose":             purpose,
		"mtime":                     mtime,
	})
}

// MarkVerified flags the user as verified and consumes token. It fails with
// ErrNotFound when the token was consumed concurrently.
func (r *UserRepo) MarkVerified(ctx context.Context, userID, token string, mtime int64) error {
	where := map[string]interface{}{
		"id":                 userID,
		"verification_token": token,
		"token_purpose":      model.TokenPurposeVerify,
	}
	return r.update(ctx, where, map[string]interface{}{
		"is_verified":               true,
		"verification_token":        "",
		"verification_token_expiry": 0,
		"token_purpose":             "",
		"mtime":                     mtime,
	})
}

// ResetPassword stores passwordHash and consumes token.
func (r *UserRepo) ResetPassword(ctx context.Context, userID, token, passwordHash string, mtime int64) error {
	where := map[string]interface{}{
		"id":                 userID,
		"verification_token": token,
		"token_purpose":      model.TokenPurposeReset,
	}
	return r.update(ctx, where, map[string]interface{}{
		"password_hash":             passwordHash,
		"verification_token":        "",
		"verification_token_expiry": 0,
		"token_purpose":             "",
		"mtime":                     mtime,
	})
}

func (r *UserRepo) UpdateRole(ctx context.Context, userID, role string, mtime int64) error {
	return r.update(ctx, map[string]interface{}{"id": userID}, map[string]interface{}{
		"role":  role,
		"mtime": mtime,
	})
}

// ClearExpiredTokens wipes token pairs whose expiry is at or before now and
// returns how many users were touched.
func (r *UserRepo) ClearExpiredTokens(ctx context.Context, now int64) (int64, error) {
	where := map[string]interface{}{
		"verification_token_expiry >":  0,
		"verification_token_expiry <=": now,
	}
	update := map[string]interface{}{
		"verification_token":        "",
		"verification_token_expiry": 0,
		"token_purpose":             "",
	}
	sqlStr, args, err := builder.BuildUpdate("users", where, update)
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *UserRepo) getOne(ctx context.Context, where map[string]interface{}) (*model.User, error) {
	sqlStr, args, err := builder.BuildSelect("users", where, userFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, appErr.ErrNotFound
	}
	return scanUser(rows)
}

func (r *UserRepo) update(ctx context.Context, where, update map[string]interface{}) error {
	sqlStr, args, err := builder.BuildUpdate("users", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(s rowScanner) (*model.User, error) {
	var user model.User
	if err := s.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.IsVerified,
		&user.Role,
		&user.VerificationToken,
		&user.VerificationTokenExpiry,
		&user.TokenPurpose,
		&user.Ctime,
		&user.Mtime,
	); err != nil {
		return nil, err
	}
	return &user, nil
}
