package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/psds-microservice/helpdesk-service/internal/model"
)

const (
	EventReply  = "reply"
	EventStatus = "status"
)

// Event is the JSON frame pushed to ticket rooms.
type Event struct {
	Type     string             `json:"type"`
	TicketID uint64             `json:"ticket_id"`
	Text     string             `json:"text"`
	Reply    *model.Reply       `json:"reply,omitempty"`
	Status   model.TicketStatus `json:"status,omitempty"`
}

func ReplyEvent(r *model.Reply, agentEmail string) Event {
	return Event{
		Type:     EventReply,
		TicketID: r.TicketID,
		Text:     fmt.Sprintf("New reply by %s: %s", agentEmail, r.Message),
		Reply:    r,
	}
}

func StatusEvent(t *model.Ticket) Event {
	return Event{
		Type:     EventStatus,
		TicketID: t.ID,
		Text:     fmt.Sprintf("Status changed to %s", t.Status),
		Status:   t.Status,
	}
}

func (e Event) Encode() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("realtime: encode %s event: %w", e.Type, err)
	}
	return b, nil
}
