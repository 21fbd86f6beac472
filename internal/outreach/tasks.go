package outreach

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the queue both outreach task types run on.
	QueueDefault = "default"
	// TaskTypeSendEmail delivers a transactional email over SMTP.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeRegister forwards a registration to the spreadsheet webhook.
	TaskTypeRegister = "outreach:register"
)

// SendEmailPayload describes a transactional email.
type SendEmailPayload struct {
	To      string `json:"to"`
	ReplyTo string `json:"reply_to,omitempty"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs a mail:send task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// NewRegistrationTask constructs an outreach:register task.
func NewRegistrationTask(reg Registration) (*asynq.Task, error) {
	data, err := json.Marshal(reg)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeRegister, data), nil
}
