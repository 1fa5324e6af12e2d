package handler

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/psds-microservice/helpdesk-service/internal/auth"
	"github.com/psds-microservice/helpdesk-service/internal/errs"
	"github.com/psds-microservice/helpdesk-service/internal/kafka"
	"github.com/psds-microservice/helpdesk-service/internal/model"
	"github.com/psds-microservice/helpdesk-service/internal/ratelimit"
	"github.com/psds-microservice/helpdesk-service/internal/realtime"
	"github.com/psds-microservice/helpdesk-service/internal/service"
	"github.com/psds-microservice/helpdesk-service/internal/tasks"
)

// Deps holds everything the HTTP and websocket handlers need.
type Deps struct {
	Users   service.UserServicer
	Tickets service.TicketServicer
	Tokens  *auth.Tokens
	Hub     *realtime.Registry
	Tasks   tasks.Dispatcher
	Events  kafka.TicketEventProducer
	Limiter ratelimit.Limiter
	Log     *slog.Logger

	// AllowedOrigins are websocket origin patterns, "*" allows any host.
	AllowedOrigins []string
}

const defaultSideEffectTimeout = 5 * time.Second

// Background runs side effects detached from the request that caused them.
type Background struct {
	timeout time.Duration
	log     *slog.Logger
	wg      sync.WaitGroup
}

func NewBackground(timeout time.Duration, log *slog.Logger) *Background {
	if timeout <= 0 {
		timeout = defaultSideEffectTimeout
	}
	return &Background{timeout: timeout, log: log}
}

// Go runs fn in its own goroutine with its own timeout.
func (b *Background) Go(name string, fn func(ctx context.Context) error) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			b.log.Warn("side effect failed", slog.String("task", name), slog.Any("error", err))
		}
	}()
}

// Wait blocks until every started side effect returned.
func (b *Background) Wait() {
	b.wg.Wait()
}

// resolveUser turns a raw bearer token into the stored user. Unknown users
// and bad tokens both come back as auth.ErrInvalidToken.
func resolveUser(ctx context.Context, tokens *auth.Tokens, users service.UserServicer, raw string) (*model.User, error) {
	claims, err := tokens.Resolve(raw)
	if err != nil {
		return nil, auth.ErrInvalidToken
	}
	id, err := claims.UserID()
	if err != nil {
		return nil, auth.ErrInvalidToken
	}
	u, err := users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, errs.ErrUserNotFound) {
			return nil, auth.ErrInvalidToken
		}
		return nil, err
	}
	return u, nil
}

const ctxUserKey = "currentUser"

func currentUser(c *gin.Context) *model.User {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return nil
	}
	u, _ := v.(*model.User)
	return u
}

func abortError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func parseID(s string) (uint64, bool) {
	id, err := strconv.ParseUint(s, 10, 64)
	return id, err == nil && id > 0
}
