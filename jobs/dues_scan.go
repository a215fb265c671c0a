package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/anatolia-crm/anatolia-crm/internal/recon"
)

// DuesScanJob walks the open invoices past their due date and enqueues one
// reminder email per scan.
type DuesScanJob struct {
	Recon  *recon.Service
	Client *Client
	Logger *slog.Logger
	clock  func() time.Time
}

// NewDuesScanJob initialises the reminder scan handler.
func NewDuesScanJob(service *recon.Service, client *Client, logger *slog.Logger) *DuesScanJob {
	return &DuesScanJob{
		Recon:  service,
		Client: client,
		Logger: logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the reminder scan.
func (j *DuesScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Recon == nil {
		return errors.New("dues scan: handler not configured")
	}
	var payload DuesScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	asOf := j.clock()
	if payload.AsOf != "" {
		parsed, err := time.Parse(recon.DateLayout, payload.AsOf)
		if err != nil {
			return asynq.SkipRetry
		}
		asOf = parsed
	}

	overdue, err := j.Recon.OverdueInvoices(ctx, asOf)
	if err != nil {
		j.Logger.Error("dues scan failed", slog.Any("error", err))
		return err
	}
	j.Logger.Info("dues scan complete",
		slog.String("as_of", asOf.Format(recon.DateLayout)),
		slog.Int("overdue", len(overdue)))

	if len(overdue) == 0 || j.Client == nil || payload.NotifyTo == "" {
		return nil
	}

	var body strings.Builder
	total := 0.0
	for _, inv := range overdue {
		fmt.Fprintf(&body, "%s / %s (%s): %.2f açık\n",
			inv.CustomerName, inv.ProformaNo, inv.InvoiceNo, inv.Balance())
		total += inv.Balance()
	}
	fmt.Fprintf(&body, "Toplam açık bakiye: %.2f\n", total)

	if _, err := j.Client.EnqueueSendEmail(ctx, SendEmailPayload{
		To:      payload.NotifyTo,
		Subject: fmt.Sprintf("Vadesi geçmiş %d fatura", len(overdue)),
		Body:    body.String(),
	}); err != nil {
		j.Logger.Error("enqueue reminder email", slog.Any("error", err))
		return err
	}
	return nil
}
