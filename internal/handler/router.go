package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/mtodo/internal/middleware"
)

type RouterDeps struct {
	Auth     *AuthHandler
	Todos    *TodoHandler
	Sessions middleware.SessionResolver
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// RateLimit throttles the unauthenticated auth routes; zero disables it.
	RateLimit time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/health", Health)
	if deps.Metrics != nil {
		api.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	limited := middleware.RateLimit(deps.RateLimit)
	user := api.Group("/user")
	user.POST("/register", limited, deps.Auth.Register)
	user.GET("/verify/:token", deps.Auth.VerifyEmail)
	user.POST("/login", limited, deps.Auth.Login)
	user.POST("/forget-password", limited, deps.Auth.ForgotPassword)
	user.PUT("/reset-password/:token", limited, deps.Auth.ResetPassword)

	authed := user.Group("", middleware.Auth(deps.Sessions))
	authed.GET("/me", deps.Auth.Me)
	authed.GET("/logout", deps.Auth.Logout)
	authed.GET("/admin/users", middleware.RequireAdmin(), deps.Auth.ListUsers)

	todo := api.Group("/todo", middleware.Auth(deps.Sessions))
	todo.POST("/create-todo", deps.Todos.Create)
	todo.GET("/get-todos", deps.Todos.List)
	todo.GET("/get-todos-by-user", deps.Todos.List)
	todo.GET("/get-todo/:id", deps.Todos.Get)
	todo.PUT("/update-todo/:id", deps.Todos.Update)
	todo.DELETE("/delete-todo/:id", deps.Todos.Delete)
	todo.PUT("/toggle-todo/:id", deps.Todos.Toggle)
}
