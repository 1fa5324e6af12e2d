package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"

	"github.com/psds-microservice/helpdesk-service/internal/auth"
	"github.com/psds-microservice/helpdesk-service/internal/authz"
	"github.com/psds-microservice/helpdesk-service/internal/errs"
	"github.com/psds-microservice/helpdesk-service/internal/realtime"
	"github.com/psds-microservice/helpdesk-service/internal/service"
)

// Close codes sent on a socket that failed its checks. A code can only be
// delivered on an accepted socket, so such sockets are accepted and closed
// straight away without ever joining a room.
const (
	CloseMissingToken websocket.StatusCode = 4401
	CloseInvalidToken websocket.StatusCode = 4403
	CloseNoTicket     websocket.StatusCode = 4404
	CloseNotAllowed   websocket.StatusCode = 4405
)

type WSHandler struct {
	users   service.UserServicer
	tickets service.TicketServicer
	tokens  *auth.Tokens
	hub     *realtime.Registry
	origins []string
	log     *slog.Logger
}

func NewWSHandler(d Deps) *WSHandler {
	return &WSHandler{
		users:   d.Users,
		tickets: d.Tickets,
		tokens:  d.Tokens,
		hub:     d.Hub,
		origins: d.AllowedOrigins,
		log:     d.Log.With(slog.String("component", "ws")),
	}
}

// Serve GET /ws/tickets/:id?token=
func (h *WSHandler) Serve(c *gin.Context) {
	ctx := c.Request.Context()
	ticketID, ok := parseID(c.Param("id"))

	code, reason := CloseNoTicket, "ticket not found"
	if ok {
		code, reason = h.check(ctx, ticketID, c.Query("token"))
	}

	conn, err := websocket.Accept(rawWriter(c.Writer), c.Request, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		h.log.Debug("accept failed", slog.Any("error", err))
		return
	}
	defer conn.CloseNow()

	if code != 0 {
		conn.Close(code, reason)
		return
	}

	ch := realtime.NewWSChannel(conn)
	if err := h.hub.Connect(ticketID, ch); err != nil {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer h.hub.Disconnect(ticketID, ch)

	log := h.log.With(slog.Uint64("ticket_id", ticketID), slog.String("conn_id", ch.ID))
	log.Debug("socket subscribed")

	// inbound frames carry no meaning; reading keeps control frames flowing
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			log.Debug("socket closed", slog.Any("error", err))
			return
		}
	}
}

// rawWriter unwraps gin's ResponseWriter so the websocket library can hijack
// the underlying connection directly.
func rawWriter(w http.ResponseWriter) http.ResponseWriter {
	if u, ok := w.(interface{ Unwrap() http.ResponseWriter }); ok {
		return u.Unwrap()
	}
	return w
}

// check runs authentication then authorization. A zero code means the socket
// may subscribe.
func (h *WSHandler) check(ctx context.Context, ticketID uint64, token string) (websocket.StatusCode, string) {
	if token == "" {
		return CloseMissingToken, "missing token"
	}
	u, err := resolveUser(ctx, h.tokens, h.users, token)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			return CloseInvalidToken, "invalid token"
		}
		h.log.Error("load socket user", slog.Any("error", err))
		return websocket.StatusInternalError, "internal error"
	}
	t, err := h.tickets.GetTicket(ctx, ticketID)
	if err != nil {
		if errors.Is(err, errs.ErrTicketNotFound) {
			return CloseNoTicket, "ticket not found"
		}
		h.log.Error("load socket ticket", slog.Any("error", err))
		return websocket.StatusInternalError, "internal error"
	}
	if !authz.CanViewTicket(u, t) {
		return CloseNotAllowed, "not allowed"
	}
	return 0, ""
}
