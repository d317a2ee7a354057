package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/mtodo/internal/pkg/response"
	"github.com/xxxsen/mtodo/internal/service"
)

type TodoHandler struct {
	todos *service.TodoService
}

func NewTodoHandler(todos *service.TodoService) *TodoHandler {
	return &TodoHandler{todos: todos}
}

type todoRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (r todoRequest) input() service.TodoInput {
	return service.TodoInput{Title: r.Title, Description: r.Description}
}

func (h *TodoHandler) Create(c *gin.Context) {
	var req todoRequest
	if !bindJSON(c, &req) {
		return
	}
	todo, err := h.todos.Create(c.Request.Context(), getUserID(c), req.input())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, "Todo created successfully", gin.H{"todo": todo})
}

func (h *TodoHandler) List(c *gin.Context) {
	todos, err := h.todos.List(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, "Todos fetched successfully", gin.H{"todos": todos})
}

func (h *TodoHandler) Get(c *gin.Context) {
	todo, err := h.todos.Get(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, "Todo fetched successfully", gin.H{"todo": todo})
}

func (h *TodoHandler) Update(c *gin.Context) {
	var req todoRequest
	if !bindJSON(c, &req) {
		return
	}
	todo, err := h.todos.Update(c.Request.Context(), getUserID(c), c.Param("id"), req.input())
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, "Todo updated successfully", gin.H{"todo": todo})
}

func (h *TodoHandler) Delete(c *gin.Context) {
	if err := h.todos.Delete(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, "Todo deleted successfully", nil)
}

func (h *TodoHandler) Toggle(c *gin.Context) {
	todo, err := h.todos.Toggle(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, "Todo completion status updated", gin.H{"todo": todo})
}
