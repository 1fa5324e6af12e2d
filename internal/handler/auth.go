package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/psds-microservice/helpdesk-service/internal/auth"
	"github.com/psds-microservice/helpdesk-service/internal/errs"
	"github.com/psds-microservice/helpdesk-service/internal/model"
	"github.com/psds-microservice/helpdesk-service/internal/service"
)

type AuthHandler struct {
	users  service.UserServicer
	tokens *auth.Tokens
	log    *slog.Logger
}

func NewAuthHandler(d Deps) *AuthHandler {
	return &AuthHandler{users: d.Users, tokens: d.Tokens, log: d.Log}
}

type signupRequest struct {
	Email    string     `json:"email" binding:"required,email"`
	Password string     `json:"password" binding:"required"`
	Role     model.Role `json:"role"`
}

type userResponse struct {
	ID    uint64     `json:"id"`
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
}

// Signup POST /auth/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	const op = "handler.Signup"

	log := h.log.With(slog.String("op", op))

	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if req.Role == "" {
		req.Role = model.RoleUser
	}
	if !req.Role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
		return
	}

	u, err := h.users.CreateUser(c.Request.Context(), req.Email, req.Password, req.Role)
	if err != nil {
		if errors.Is(err, errs.ErrEmailTaken) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Email already registered"})
			return
		}
		log.Error("failed to create user", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}
	c.JSON(http.StatusCreated, userResponse{ID: u.ID, Email: u.Email, Role: u.Role})
}

// loginRequest accepts JSON {email,password} or the OAuth2 password form
// (username, password).
type loginRequest struct {
	Email    string `json:"email" form:"email"`
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password" binding:"required"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Login POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	const op = "handler.Login"

	log := h.log.With(slog.String("op", op))

	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	email := req.Email
	if email == "" {
		email = req.Username
	}
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	u, err := h.users.Authenticate(c.Request.Context(), email, req.Password)
	switch {
	case errors.Is(err, errs.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	case errors.Is(err, errs.ErrWrongPassword):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Incorrect password"})
		return
	case err != nil:
		log.Error("failed to authenticate", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to login"})
		return
	}

	token, err := h.tokens.Issue(u.ID, u.Email)
	if err != nil {
		log.Error("failed to issue token", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to login"})
		return
	}
	c.JSON(http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}
