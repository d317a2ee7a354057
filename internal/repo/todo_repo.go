package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/mtodo/internal/model"
	"github.com/xxxsen/mtodo/internal/pkg/dbutil"
	appErr "github.com/xxxsen/mtodo/internal/pkg/errors"
)

var todoFields = []string{"id", "user_id", "title", "description", "completed", "ctime", "mtime"}

type TodoRepo struct {
	db *sql.DB
}

func NewTodoRepo(db *sql.DB) *TodoRepo {
	return &TodoRepo{db: db}
}

func (r *TodoRepo) Create(ctx context.Context, todo *model.Todo) error {
	data := map[string]interface{}{
		"id":          todo.ID,
		"user_id":     todo.UserID,
		"title":       todo.Title,
		"description": todo.Description,
		"completed":   todo.Completed,
		"ctime":       todo.Ctime,
		"mtime":       todo.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("todos", []map[string]interface{}{data})
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

// GetByID looks a todo up without any owner restriction.
func (r *TodoRepo) GetByID(ctx context.Context, todoID string) (*model.Todo, error) {
	return r.getOne(ctx, map[string]interface{}{"id": todoID})
}

func (r *TodoRepo) GetByOwner(ctx context.Context, userID, todoID string) (*model.Todo, error) {
	return r.getOne(ctx, map[string]interface{}{"id": todoID, "user_id": userID})
}

func (r *TodoRepo) ListByUser(ctx context.Context, userID string) ([]model.Todo, error) {
	sqlStr := `
		SELECT id, user_id, title, description, completed, ctime, mtime
		FROM todos
		WHERE user_id = ?
		ORDER BY ctime DESC
	`
	args := []interface{}{userID}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	items := make([]model.Todo, 0)
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *todo)
	}
	return items, rows.Err()
}

func (r *TodoRepo) Update(ctx context.Context, todo *model.Todo) error {
	where := map[string]interface{}{"id": todo.ID, "user_id": todo.UserID}
	update := map[string]interface{}{
		"title":       todo.Title,
		"description": todo.Description,
		"mtime":       todo.Mtime,
	}
	sqlStr, args, err := builder.BuildUpdate("todos", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

// ToggleCompleted flips the completed flag in a single statement and returns
// the updated row.
func (r *TodoRepo) ToggleCompleted(ctx context.Context, userID, todoID string, mtime int64) (*model.Todo, error) {
	sqlStr := `
		UPDATE todos SET completed = NOT completed, mtime = ?
		WHERE id = ? AND user_id = ?
		RETURNING id, user_id, title, description, completed, ctime, mtime
	`
	args := []interface{}{mtime, todoID, userID}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	todo, err := scanTodo(r.db.QueryRowContext(ctx, sqlStr, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return todo, nil
}

func (r *TodoRepo) Delete(ctx context.Context, userID, todoID string) error {
	sqlStr, args, err := builder.BuildDelete("todos", map[string]interface{}{"id": todoID, "user_id": userID})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *TodoRepo) getOne(ctx context.Context, where map[string]interface{}) (*model.Todo, error) {
	sqlStr, args, err := builder.BuildSelect("todos", where, todoFields)
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
	return scanTodo(rows)
}

func scanTodo(s rowScanner) (*model.Todo, error) {
	var todo model.Todo
	if err := s.Scan(
		&todo.ID,
		&todo.UserID,
		&todo.Title,
		&todo.Description,
		&todo.Completed,
		&todo.Ctime,
		&todo.Mtime,
	); err != nil {
		return nil, err
	}
	return &todo, nil
}
