package application

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/psds-microservice/helpdesk-service/internal/config"
	"github.com/psds-microservice/helpdesk-service/internal/tasks"
)

// Worker is the background job process (worker mode).
type Worker struct {
	log    *slog.Logger
	rdb    *redis.Client
	audit  *tasks.Audit
	worker *tasks.Worker
}

func NewWorker(cfg *config.Config, log *slog.Logger) (*Worker, error) {
	rdb, err := openRedis(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("worker needs redis: %w", err)
	}
	audit, err := tasks.OpenAudit(cfg.AuditLogPath)
	if err != nil {
		rdb.Close()
		return nil, err
	}
	mailer := tasks.NewSMTPMailer(tasks.MailConfig{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
		UseTLS:   cfg.Mail.UseTLS,
		UseSSL:   cfg.Mail.UseSSL,
	})

	host, _ := os.Hostname()
	w := tasks.NewWorker(rdb, tasks.NewExecutor(mailer, audit), log, tasks.WorkerOptions{
		Stream:   cfg.Redis.TaskStream,
		Group:    cfg.Redis.TaskGroup,
		Consumer: host + "-" + strconv.Itoa(os.Getpid()),
	})
	return &Worker{log: log, rdb: rdb, audit: audit, worker: w}, nil
}

// Run consumes jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	defer w.rdb.Close()
	defer w.audit.Close()
	err := w.worker.Run(ctx)
	w.log.Info("worker stopped")
	return err
}
