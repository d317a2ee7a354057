package service

import (
	"context"
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/xxxsen/mtodo/internal/model"
)

type TodoStore interface {
	Create(ctx context.Context, todo *model.Todo) error
	GetByID(ctx context.Context, todoID string) (*model.Todo, error)
	GetByOwner(ctx context.Context, userID, todoID string) (*model.Todo, error)
	ListByUser(ctx context.Context, userID string) ([]model.Todo, error)
	Update(ctx context.Context, todo *model.Todo) error
	ToggleCompleted(ctx context.Context, userID, todoID string, mtime int64) (*model.Todo, error)
	Delete(ctx context.Context, userID, todoID string) error
}

type TodoInput struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"required"`
}

type TodoService struct {
	todos     TodoStore
	policy    *bluemonday.Policy
	scopedGet bool
	now       func() time.Time
}

// NewTodoService builds the todo service. With scopedGet false, Get returns
// any todo by id regardless of owner; every other operation is always
// restricted to the caller.
func NewTodoService(todos TodoStore, scopedGet bool) *TodoService {
	return &TodoService{
		todos:     todos,
		policy:    bluemonday.StrictPolicy(),
		scopedGet: scopedGet,
		now:       time.Now,
	}
}

func (s *TodoService) Create(ctx context.Context, userID string, input TodoInput) (*model.Todo, error) {
	input = s.clean(input)
	if err := validateInput(input); err != nil {
		return nil, err
	}
	now := s.now().Unix()
	todo := &model.Todo{
		ID:          newID(),
		UserID:      userID,
		Title:       input.Title,
		Description: input.Description,
		Completed:   false,
		Ctime:       now,
		Mtime:       now,
	}
	if err := s.todos.Create(ctx, todo); err != nil {
		return nil, err
	}
	return todo, nil
}

func (s *TodoService) List(ctx context.Context, userID string) ([]model.Todo, error) {
	return s.todos.ListByUser(ctx, userID)
}

func (s *TodoService) Get(ctx context.Context, userID, todoID string) (*model.Todo, error) {
	if s.scopedGet {
		return s.todos.GetByOwner(ctx, userID, todoID)
	}
	return s.todos.GetByID(ctx, todoID)
}

func (s *TodoService) Update(ctx context.Context, userID, todoID string, input TodoInput) (*model.Todo, error) {
	input = s.clean(input)
	if err := validateInput(input); err != nil {
		return nil, err
	}
	todo, err := s.todos.GetByOwner(ctx, userID, todoID)
	if err != nil {
		return nil, err
	}
	todo.Title = input.Title
	todo.Description = input.Description
	todo.Mtime = s.now().Unix()
	if err := s.todos.Update(ctx, todo); err != nil {
		return nil, err
	}
	return todo, nil
}

func (s *TodoService) Delete(ctx context.Context, userID, todoID string) error {
	return s.todos.Delete(ctx, userID, todoID)
}

func (s *TodoService) Toggle(ctx context.Context, userID, todoID string) (*model.Todo, error) {
	return s.todos.ToggleCompleted(ctx, userID, todoID, s.now().Unix())
}

const maxCleanPasses = 8

func (s *TodoService) clean(input TodoInput) TodoInput {
	return TodoInput{
		Title:       s.plainText(input.Title),
		Description: s.plainText(input.Description),
	}
}

// plainText strips markup and surrounding whitespace. Entities escaped by
// the policy are decoded so "a & b" is stored as typed; decoding can expose
// new markup ("&lt;b&gt;"), so the value is sanitised again until it stops
// changing. A value that never settles is kept in its escaped form.
func (s *TodoService) plainText(value string) string {
	for i := 0; i < maxCleanPasses; i++ {
		sanitized := s.policy.Sanitize(value)
		decoded := html.UnescapeString(sanitized)
		if decoded == value {
			return strings.TrimSpace(decoded)
		}
		value = decoded
	}
	return strings.TrimSpace(s.policy.Sanitize(value))
}
