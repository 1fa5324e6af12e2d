package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/psds-microservice/helpdesk-service/internal/auth"
	"github.com/psds-microservice/helpdesk-service/internal/authz"
	"github.com/psds-microservice/helpdesk-service/internal/errs"
	"github.com/psds-microservice/helpdesk-service/internal/model"
	"github.com/psds-microservice/helpdesk-service/internal/ratelimit"
	"github.com/psds-microservice/helpdesk-service/internal/service"
)

// Authenticate resolves the bearer token and loads the current user.
func Authenticate(tokens *auth.Tokens, users service.UserServicer, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Header("WWW-Authenticate", "Bearer")
			abortError(c, http.StatusUnauthorized, "Not authenticated")
			return
		}
		u, err := resolveUser(c.Request.Context(), tokens, users, raw)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				c.Header("WWW-Authenticate", "Bearer")
				abortError(c, http.StatusUnauthorized, "Could not validate credentials")
				return
			}
			log.Error("load current user", slog.Any("error", err))
			abortError(c, http.StatusInternalServerError, "internal error")
			return
		}
		c.Set(ctxUserKey, u)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// RequireRole rejects the request before the handler runs unless the current
// user has exactly role.
func RequireRole(role model.Role) gin.HandlerFunc {
	msg := "Users only."
	if role == model.RoleAgent {
		msg = "Agents only."
	}
	return func(c *gin.Context) {
		switch err := authz.RequireRole(currentUser(c), role); {
		case err == nil:
			c.Next()
		case errors.Is(err, errs.ErrUnauthorized):
			abortError(c, http.StatusUnauthorized, "Not authenticated")
		default:
			abortError(c, http.StatusForbidden, msg)
		}
	}
}

// RateLimit limits the current user. Limiter failures let the request through.
func RateLimit(l ratelimit.Limiter, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if u := currentUser(c); u != nil {
			key = "user:" + strconv.FormatUint(u.ID, 10)
		}
		ok, err := l.Allow(c.Request.Context(), key)
		if err != nil {
			log.Warn("rate limiter unavailable", slog.Any("error", err))
			c.Next()
			return
		}
		if !ok {
			abortError(c, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}
		c.Next()
	}
}

func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		log.Log(c.Request.Context(), level, "request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", status),
			slog.Duration("latency", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
		)
	}
}
