package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/psds-microservice/helpdesk-service/internal/errs"
	"github.com/psds-microservice/helpdesk-service/internal/model"
	"gorm.io/gorm"
)

// TicketServicer — workflow operations the HTTP layer depends on.
type TicketServicer interface {
	CreateTicket(ctx context.Context, title string, description *string, ownerID uint64) (*model.Ticket, error)
	GetTicket(ctx context.Context, id uint64) (*model.Ticket, error)
	AddReply(ctx context.Context, ticketID uint64, message string, agentID uint64) (*model.Reply, error)
	ChangeStatus(ctx context.Context, t *model.Ticket, status model.TicketStatus) (*model.Ticket, error)
	ListReplies(ctx context.Context, ticketID uint64) ([]model.Reply, error)
	ListTickets(ctx context.Context, filter TicketFilter, limit, offset int) ([]model.Ticket, int64, error)
}

// TicketFilter narrows ListTickets. Zero values mean "any".
type TicketFilter struct {
	CreatedBy uint64
	Status    model.TicketStatus
}

type TicketService struct {
	db *gorm.DB
}

func NewTicketService(db *gorm.DB) *TicketService {
	return &TicketService{db: db}
}

func (s *TicketService) CreateTicket(ctx context.Context, title string, description *string, ownerID uint64) (*model.Ticket, error) {
	t := &model.Ticket{
		Title:       title,
		Description: description,
		Status:      model.TicketStatusOpen,
		CreatedBy:   ownerID,
	}
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}
	return t, nil
}

// GetTicket loads the ticket with its owner and replies (oldest first).
func (s *TicketService) GetTicket(ctx context.Context, id uint64) (*model.Ticket, error) {
	var t model.Ticket
	err := s.db.WithContext(ctx).
		Preload("Creator").
		Preload("Replies", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		First(&t, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrTicketNotFound
		}
		return nil, err
	}
	return &t, nil
}

// AddReply checks the ticket and inserts the reply in one transaction, so a
// missing ticket never leaves an orphan row. Ticket status is not touched.
func (s *TicketService) AddReply(ctx context.Context, ticketID uint64, message string, agentID uint64) (*model.Reply, error) {
	r := &model.Reply{
		TicketID:  ticketID,
		Message:   message,
		RepliedBy: agentID,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t model.Ticket
		if err := tx.Select("id").First(&t, ticketID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.ErrTicketNotFound
			}
			return err
		}
		return tx.Create(r).Error
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ChangeStatus overwrites the status unconditionally; no transition table is
// enforced and writing the current status is a no-op update. Only the status
// column is written even when t carries preloaded associations.
func (s *TicketService) ChangeStatus(ctx context.Context, t *model.Ticket, status model.TicketStatus) (*model.Ticket, error) {
	err := s.db.WithContext(ctx).Model(&model.Ticket{ID: t.ID}).Update("status", status).Error
	if err != nil {
		return nil, fmt.Errorf("change status: %w", err)
	}
	t.Status = status
	return t, nil
}

func (s *TicketService) ListReplies(ctx context.Context, ticketID uint64) ([]model.Reply, error) {
	var items []model.Reply
	err := s.db.WithContext(ctx).
		Where("ticket_id = ?", ticketID).
		Order("created_at ASC, id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *TicketService) ListTickets(ctx context.Context, filter TicketFilter, limit, offset int) ([]model.Ticket, int64, error) {
	var items []model.Ticket
	var total int64
	tx := s.db.WithContext(ctx).Model(&model.Ticket{})
	if filter.CreatedBy != 0 {
		tx = tx.Where("created_by = ?", filter.CreatedBy)
	}
	if filter.Status != "" {
		tx = tx.Where("status = ?", filter.Status)
	}
	// Count total before pagination
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if offset > 0 {
		tx = tx.Offset(offset)
	}
	if err := tx.Order("created_at DESC").Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
