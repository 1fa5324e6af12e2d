package router

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/psds-microservice/helpdesk-service/internal/auth"
	"github.com/psds-microservice/helpdesk-service/internal/errs"
	"github.com/psds-microservice/helpdesk-service/internal/model"
	"github.com/psds-microservice/helpdesk-service/internal/service"
	"github.com/psds-microservice/helpdesk-service/internal/tasks"
)

// memStore is an in-memory stand-in for the gorm stores.
type memStore struct {
	mu      sync.Mutex
	users   map[uint64]model.User
	tickets map[uint64]model.Ticket
	replies map[uint64][]model.Reply
	seq     uint64
}

var (
	_ service.UserServicer   = (*memStore)(nil)
	_ service.TicketServicer = (*memStore)(nil)
)

func newMemStore() *memStore {
	return &memStore{
		users:   make(map[uint64]model.User),
		tickets: make(map[uint64]model.Ticket),
		replies: make(map[uint64][]model.Reply),
	}
}

func (s *memStore) next() uint64 {
	s.seq++
	return s.seq
}

func (s *memStore) CreateUser(_ context.Context, email, password string, role model.Role) (*model.User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return nil, errs.ErrEmailTaken
		}
	}
	u := model.User{ID: s.next(), Email: email, PasswordHash: hash, Role: role, CreatedAt: time.Now()}
	s.users[u.ID] = u
	return &u, nil
}

func (s *memStore) Authenticate(_ context.Context, email, password string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email != email {
			continue
		}
		if !auth.CheckPassword(u.PasswordHash, password) {
			return nil, errs.ErrWrongPassword
		}
		return &u, nil
	}
	return nil, errs.ErrUserNotFound
}

func (s *memStore) GetByID(_ context.Context, id uint64) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, errs.ErrUserNotFound
	}
	return &u, nil
}

func (s *memStore) CreateTicket(_ context.Context, title string, description *string, ownerID uint64) (*model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := model.Ticket{
		ID:          s.next(),
		Title:       title,
		Description: description,
		Status:      model.TicketStatusOpen,
		CreatedAt:   time.Now(),
		CreatedBy:   ownerID,
	}
	s.tickets[t.ID] = t
	return &t, nil
}

func (s *memStore) GetTicket(_ context.Context, id uint64) (*model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil, errs.ErrTicketNotFound
	}
	if owner, ok := s.users[t.CreatedBy]; ok {
		t.Creator = &owner
	}
	t.Replies = append([]model.Reply(nil), s.replies[id]...)
	return &t, nil
}

func (s *memStore) AddReply(_ context.Context, ticketID uint64, message string, agentID uint64) (*model.Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tickets[ticketID]; !ok {
		return nil, errs.ErrTicketNotFound
	}
	r := model.Reply{ID: s.next(), TicketID: ticketID, Message: message, CreatedAt: time.Now(), RepliedBy: agentID}
	s.replies[ticketID] = append(s.replies[ticketID], r)
	return &r, nil
}

func (s *memStore) ChangeStatus(_ context.Context, t *model.Ticket, status model.TicketStatus) (*model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.tickets[t.ID]
	if !ok {
		return nil, errs.ErrTicketNotFound
	}
	stored.Status = status
	s.tickets[t.ID] = stored
	t.Status = status
	return t, nil
}

func (s *memStore) ListReplies(_ context.Context, ticketID uint64) ([]model.Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Reply(nil), s.replies[ticketID]...), nil
}

func (s *memStore) ListTickets(_ context.Context, filter service.TicketFilter, limit, offset int) ([]model.Ticket, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Ticket
	for _, t := range s.tickets {
		if filter.CreatedBy != 0 && t.CreatedBy != filter.CreatedBy {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	total := int64(len(out))
	if offset > 0 {
		if offset >= len(out) {
			out = nil
		} else {
			out = out[offset:]
		}
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func (s *memStore) replyCount(ticketID uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.replies[ticketID])
}

type recordingQueue struct {
	mu   sync.Mutex
	jobs []tasks.Job
}

func (q *recordingQueue) Enqueue(_ context.Context, job tasks.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *recordingQueue) kinds() []tasks.Kind {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]tasks.Kind, 0, len(q.jobs))
	for _, j := range q.jobs {
		out = append(out, j.Kind)
	}
	return out
}

func (q *recordingQueue) find(kind tasks.Kind) (tasks.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, j := range q.jobs {
		if j.Kind == kind {
			return j, true
		}
	}
	return tasks.Job{}, false
}

type recordingEvents struct {
	mu     sync.Mutex
	events []string
}

func (e *recordingEvents) ProduceTicketEvent(_ context.Context, event string, _ map[string]interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
}

func (e *recordingEvents) names() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.events...)
}
