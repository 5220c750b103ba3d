package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSendMail delivers one email over SMTP.
	TaskSendMail = "mail:send"
	// TaskSendSMS posts one text message to the SMS gateway.
	TaskSendSMS = "sms:send"

	taskTimeout = 30 * time.Second
)

// Attachment references a stored object by locator. The worker resolves it
// against the blob store at send time.
type Attachment struct {
	Name    string `json:"name"`
	Locator string `json:"locator"`
}

// Mail is the payload of TaskSendMail.
type Mail struct {
	To          []string     `json:"to"`
	Subject     string       `json:"subject"`
	HTML        string       `json:"html"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// SMS is the payload of TaskSendSMS.
type SMS struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// NewSendMailTask constructs a mail task. Delivery is attempted once.
func NewSendMailTask(m Mail) (*asynq.Task, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSendMail, body, asynq.Queue(QueueDefault), asynq.MaxRetry(0), asynq.Timeout(taskTimeout)), nil
}

// NewSendSMSTask constructs an SMS task. Delivery is attempted once.
func NewSendSMSTask(s SMS) (*asynq.Task, error) {
	body, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSendSMS, body, asynq.Queue(QueueDefault), asynq.MaxRetry(0), asynq.Timeout(taskTimeout)), nil
}
