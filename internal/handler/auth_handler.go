package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/mtodo/internal/config"
	"github.com/xxxsen/mtodo/internal/middleware"
	"github.com/xxxsen/mtodo/internal/pkg/errcode"
	"github.com/xxxsen/mtodo/internal/pkg/response"
	"github.com/xxxsen/mtodo/internal/service"
)

type AuthHandler struct {
	auth            *service.AuthService
	defaultDelivery string
	secureCookie    bool
}

// NewAuthHandler builds the user routes. defaultDelivery is used when a
// login request names no mode; secureCookie marks the session cookie
// https-only.
func NewAuthHandler(auth *service.AuthService, defaultDelivery string, secureCookie bool) *AuthHandler {
	if defaultDelivery == "" {
		defaultDelivery = config.DeliveryCookie
	}
	return &AuthHandler{auth: auth, defaultDelivery: defaultDelivery, secureCookie: secureCookie}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Mode     string `json:"mode"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, "User created successfully. Please verify your email.", gin.H{"user": user})
}

func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	if err := h.auth.VerifyEmail(c.Request.Context(), c.Param("token")); err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, "Email verified successfully", nil)
}

// Login issues a session either as the "token" cookie or in the body. The
// mode comes from ?mode=, then the body, then the configured default.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	mode := strings.ToLower(strings.TrimSpace(c.Query("mode")))
	if mode == "" {
		mode = strings.ToLower(strings.TrimSpace(req.Mode))
	}
	if mode == "" {
		mode = h.defaultDelivery
	}
	if mode != config.DeliveryCookie && mode != config.DeliveryToken {
		response.Error(c, http.StatusBadRequest, "mode must be cookie or token", errcode.Validation)
		return
	}
	session, err := h.auth.Login(c.Request.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	fields := gin.H{"user": session.User}
	if mode == config.DeliveryCookie {
		h.setSessionCookie(c, session.Token, int(h.auth.SessionTTL().Seconds()))
	} else {
		fields["token"] = session.Token
		fields["expires_at"] = session.ExpiresAt.Unix()
	}
	response.OK(c, "User logged in successfully", fields)
}

func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.auth.Me(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, "User profile data fetched successfully", gin.H{"user": user})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	h.setSessionCookie(c, "", -1)
	response.OK(c, "User logged out successfully", nil)
}

func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.auth.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, "Reset password email sent successfully", nil)
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	err := h.auth.ResetPassword(c.Request.Context(), service.ResetPasswordInput{
		Token:    c.Param("token"),
		Password: req.Password,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, "Password reset successfully", nil)
}

func (h *AuthHandler) ListUsers(c *gin.Context) {
	users, err := h.auth.ListUsers(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, "Users fetched successfully", gin.H{"users": users})
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.SessionCookieName, value, maxAge, "/", "", h.secureCookie, true)
}
