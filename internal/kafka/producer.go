package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/psds-microservice/helpdesk-service/internal/model"
)

// Event names carried in the "event" field.
const (
	EventTicketCreated       = "ticket.created"
	EventTicketReplied       = "ticket.replied"
	EventTicketStatusChanged = "ticket.status_changed"
)

// TicketEventProducer publishes ticket lifecycle events. Mocked in handler tests.
type TicketEventProducer interface {
	ProduceTicketEvent(ctx context.Context, event string, payload map[string]interface{})
}

// Producer writes ticket events to a Kafka topic, best-effort: failures are
// logged and never reach the request.
type Producer struct {
	writer messageWriter
	log    *slog.Logger
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewProducer returns a no-op producer when brokers or topic is empty.
func NewProducer(brokers []string, topic string, log *slog.Logger) *Producer {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "kafka"))
	if len(brokers) == 0 || topic == "" {
		return &Producer{log: log}
	}
	return &Producer{
		log: log,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			BatchTimeout:           10 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
	}
}

// ProduceTicketEvent writes one event to the topic. payload is merged into the
// message next to "event" and "occurred_at"; ticket_id, when present, is the
// message key.
func (p *Producer) ProduceTicketEvent(ctx context.Context, event string, payload map[string]interface{}) {
	if p.writer == nil {
		return
	}
	msg := map[string]interface{}{"event": event, "occurred_at": time.Now().UTC().Format(time.RFC3339)}
	for k, v := range payload {
		msg[k] = v
	}
	body, err := json.Marshal(msg)
	if err != nil {
		p.log.Error("marshal ticket event", slog.String("event", event), slog.Any("error", err))
		return
	}
	km := kafka.Message{Value: body}
	if id, ok := payload["ticket_id"].(uint64); ok {
		// keyed by ticket so one ticket's events stay in one partition
		km.Key = []byte(formatID(id))
	}
	if err := p.writer.WriteMessages(ctx, km); err != nil {
		p.log.Warn("write ticket event", slog.String("event", event), slog.Any("error", err))
	}
}

// Close flushes and closes the writer.
func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// TicketPayload is the common body of every ticket event.
func TicketPayload(t *model.Ticket) map[string]interface{} {
	return map[string]interface{}{
		"ticket_id":  t.ID,
		"title":      t.Title,
		"status":     string(t.Status),
		"created_by": t.CreatedBy,
	}
}

// ParseBrokers splits "host1:9092,host2:9092" into a slice, skipping blanks.
func ParseBrokers(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func formatID(id uint64) string {
	return strconv.FormatUint(id, 10)
}
