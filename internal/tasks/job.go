// Package tasks carries side effects that must not hold up a request: owner
// notification mail and the reply audit trail. Jobs travel over a Redis
// stream and are executed by the worker command.
package tasks

import (
	"encoding/json"
	"fmt"
)

type Kind string

const (
	KindNotifyOwnerEmail Kind = "notify_owner_email"
	KindLogReply         Kind = "log_reply"
)

// Job is one unit of background work. Payload is the JSON of the matching
// *Payload type.
type Job struct {
	Kind    Kind
	Payload []byte
}

type EmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type ReplyLogPayload struct {
	TicketID   uint64 `json:"ticket_id"`
	Message    string `json:"message"`
	AgentEmail string `json:"agent_email"`
}

const defaultSubject = "Notification"

func NotifyOwnerEmail(to, subject, body string) (Job, error) {
	if subject == "" {
		subject = defaultSubject
	}
	return newJob(KindNotifyOwnerEmail, EmailPayload{To: to, Subject: subject, Body: body})
}

func LogReply(ticketID uint64, message, agentEmail string) (Job, error) {
	return newJob(KindLogReply, ReplyLogPayload{TicketID: ticketID, Message: message, AgentEmail: agentEmail})
}

func newJob(kind Kind, payload any) (Job, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Job{}, fmt.Errorf("tasks: encode %s: %w", kind, err)
	}
	return Job{Kind: kind, Payload: b}, nil
}
