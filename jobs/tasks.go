// Package jobs defines the background tasks of the CRM and the Asynq worker
// that runs them.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskDuesScan is the task type for the overdue-invoice reminder scan.
	TaskDuesScan = "ar:dues:scan"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// HandleSendEmailTask processes TaskTypeSendEmail tasks.
func HandleSendEmailTask(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	// Placeholder: delivery goes through SMTP/Mailpit once the relay lands.
	fmt.Printf("[jobs] send email to %s subject=%s\n", payload.To, payload.Subject)
	return nil
}

// DuesScanPayload parameterizes one reminder scan.
type DuesScanPayload struct {
	// AsOf overrides the scan date, ISO formatted. Empty means today.
	AsOf string `json:"as_of,omitempty"`
	// NotifyTo receives the reminder summary.
	NotifyTo string `json:"notify_to,omitempty"`
}

// NewDuesScanTask constructs an Asynq task for the reminder scan.
func NewDuesScanTask(payload DuesScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDuesScan, data), nil
}
