package tasks

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Audit appends reply and mail records to a log file.
type Audit struct {
	log *slog.Logger
	c   io.Closer
}

// OpenAudit opens path for appending, creating it if needed.
func OpenAudit(path string) (*Audit, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("tasks: open audit log: %w", err)
	}
	a := NewAudit(f)
	a.c = f
	return a, nil
}

func NewAudit(w io.Writer) *Audit {
	return &Audit{log: slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))}
}

func (a *Audit) Reply(ticketID uint64, agentEmail, message string) {
	a.log.Info("reply",
		slog.Uint64("ticket_id", ticketID),
		slog.String("by", agentEmail),
		slog.String("message", message))
}

func (a *Audit) Email(to, subject, body string) {
	a.log.Info("email sent",
		slog.String("to", to),
		slog.String("subject", subject),
		slog.String("body", body))
}

func (a *Audit) EmailFailed(to string, err error) {
	a.log.Error("email failed", slog.String("to", to), slog.Any("error", err))
}

func (a *Audit) Close() error {
	if a.c == nil {
		return nil
	}
	return a.c.Close()
}
