package tasks

import (
	"context"
	"encoding/json"
	"fmt"
)

// Handler executes a single job.
type Handler interface {
	Execute(ctx context.Context, job Job) error
}

type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Executor runs the known job kinds against a mailer and the audit log.
type Executor struct {
	mail  Mailer
	audit *Audit
}

func NewExecutor(mail Mailer, audit *Audit) *Executor {
	return &Executor{mail: mail, audit: audit}
}

func (e *Executor) Execute(ctx context.Context, job Job) error {
	switch job.Kind {
	case KindNotifyOwnerEmail:
		var p EmailPayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return fmt.Errorf("tasks: decode %s: %w", job.Kind, err)
		}
		if err := e.mail.Send(ctx, p.To, p.Subject, p.Body); err != nil {
			e.audit.EmailFailed(p.To, err)
			return err
		}
		e.audit.Email(p.To, p.Subject, p.Body)
		return nil
	case KindLogReply:
		var p ReplyLogPayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return fmt.Errorf("tasks: decode %s: %w", job.Kind, err)
		}
		e.audit.Reply(p.TicketID, p.AgentEmail, p.Message)
		return nil
	default:
		return fmt.Errorf("tasks: unknown job kind %q", job.Kind)
	}
}
