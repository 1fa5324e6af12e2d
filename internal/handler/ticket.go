package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/psds-microservice/helpdesk-service/internal/authz"
	"github.com/psds-microservice/helpdesk-service/internal/errs"
	"github.com/psds-microservice/helpdesk-service/internal/kafka"
	"github.com/psds-microservice/helpdesk-service/internal/model"
	"github.com/psds-microservice/helpdesk-service/internal/realtime"
	"github.com/psds-microservice/helpdesk-service/internal/service"
	"github.com/psds-microservice/helpdesk-service/internal/tasks"
)

type TicketHandler struct {
	svc    service.TicketServicer
	hub    *realtime.Registry
	tasks  tasks.Dispatcher
	events kafka.TicketEventProducer
	bg     *Background
	log    *slog.Logger
}

func NewTicketHandler(d Deps, bg *Background) *TicketHandler {
	return &TicketHandler{
		svc:    d.Tickets,
		hub:    d.Hub,
		tasks:  d.Tasks,
		events: d.Events,
		bg:     bg,
		log:    d.Log,
	}
}

type createTicketRequest struct {
	Title       string  `json:"title" binding:"required"`
	Description *string `json:"description"`
}

// Create POST /tickets/
func (h *TicketHandler) Create(c *gin.Context) {
	var req createTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	u := currentUser(c)
	t, err := h.svc.CreateTicket(c.Request.Context(), req.Title, req.Description, u.ID)
	if err != nil {
		h.log.Error("failed to create ticket", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create ticket"})
		return
	}
	h.publish(kafka.EventTicketCreated, kafka.TicketPayload(t))
	c.JSON(http.StatusCreated, t)
}

// List GET /tickets/
func (h *TicketHandler) List(c *gin.Context) {
	u := currentUser(c)
	var filter service.TicketFilter
	if u.Role != model.RoleAgent {
		filter.CreatedBy = u.ID
	}
	if v := c.Query("status"); v != "" {
		st := model.TicketStatus(v)
		if !st.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		filter.Status = st
	}

	limit := 0
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	items, total, err := h.svc.ListTickets(c.Request.Context(), filter, limit, offset)
	if err != nil {
		h.log.Error("failed to list tickets", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list tickets"})
		return
	}
	if items == nil {
		items = []model.Ticket{}
	}
	c.JSON(http.StatusOK, gin.H{
		"tickets": items,
		"total":   total,
	})
}

// Get GET /tickets/:id
func (h *TicketHandler) Get(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	t, ok := h.loadTicket(c, id)
	if !ok {
		return
	}
	if !authz.CanViewTicket(currentUser(c), t) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not allowed"})
		return
	}
	replies := t.Replies
	if replies == nil {
		replies = []model.Reply{}
	}
	c.JSON(http.StatusOK, gin.H{
		"ticket":  t,
		"replies": replies,
	})
}

type replyRequest struct {
	Message string `json:"message" binding:"required"`
}

// Reply POST /tickets/:id/reply, agents only.
func (h *TicketHandler) Reply(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req replyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	t, ok := h.loadTicket(c, id)
	if !ok {
		return
	}

	agent := currentUser(c)
	reply, err := h.svc.AddReply(c.Request.Context(), id, req.Message, agent.ID)
	if err != nil {
		if errors.Is(err, errs.ErrTicketNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Ticket not found"})
			return
		}
		h.log.Error("failed to add reply", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add reply"})
		return
	}

	h.broadcast(id, realtime.ReplyEvent(reply, agent.Email))

	if t.Creator != nil && t.Creator.Email != "" {
		owner := t.Creator.Email
		h.enqueue("notify_owner_email", func() (tasks.Job, error) {
			return tasks.NotifyOwnerEmail(owner, "", fmt.Sprintf("Your ticket #%d has a new reply.", id))
		})
	}
	h.enqueue("log_reply", func() (tasks.Job, error) {
		return tasks.LogReply(id, reply.Message, agent.Email)
	})
	payload := kafka.TicketPayload(t)
	payload["reply_id"] = reply.ID
	payload["replied_by"] = agent.ID
	h.publish(kafka.EventTicketReplied, payload)

	c.JSON(http.StatusCreated, reply)
}

type statusRequest struct {
	Status model.TicketStatus `json:"status" binding:"required"`
}

// ChangeStatus PATCH /tickets/:id/status, agents only.
func (h *TicketHandler) ChangeStatus(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if !req.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}
	t, ok := h.loadTicket(c, id)
	if !ok {
		return
	}
	prev := t.Status
	t, err := h.svc.ChangeStatus(c.Request.Context(), t, req.Status)
	if err != nil {
		h.log.Error("failed to change status", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to change status"})
		return
	}

	h.broadcast(id, realtime.StatusEvent(t))
	payload := kafka.TicketPayload(t)
	payload["previous_status"] = string(prev)
	h.publish(kafka.EventTicketStatusChanged, payload)

	c.JSON(http.StatusOK, t)
}

func (h *TicketHandler) broadcast(id uint64, ev realtime.Event) {
	msg, err := ev.Encode()
	if err != nil {
		h.log.Error("encode room event", slog.Uint64("ticket_id", id), slog.Any("error", err))
		return
	}
	h.hub.Broadcast(id, msg)
}

// loadTicket writes the error response itself when it returns false.
func (h *TicketHandler) loadTicket(c *gin.Context, id uint64) (*model.Ticket, bool) {
	t, err := h.svc.GetTicket(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, errs.ErrTicketNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Ticket not found"})
			return nil, false
		}
		h.log.Error("failed to load ticket", slog.Uint64("ticket_id", id), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load ticket"})
		return nil, false
	}
	return t, true
}

func (h *TicketHandler) enqueue(name string, build func() (tasks.Job, error)) {
	h.bg.Go(name, func(ctx context.Context) error {
		job, err := build()
		if err != nil {
			return err
		}
		return h.tasks.Enqueue(ctx, job)
	})
}

func (h *TicketHandler) publish(event string, payload map[string]interface{}) {
	h.bg.Go(event, func(ctx context.Context) error {
		h.events.ProduceTicketEvent(ctx, event, payload)
		return nil
	})
}
