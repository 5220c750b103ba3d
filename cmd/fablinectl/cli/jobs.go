package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/fabline/fabline/jobs"
)

// JobsCLI wraps manual management helpers for the notification queue.
type JobsCLI struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

// NewJobsCLI initialises the CLI helpers against the queue's Redis.
func NewJobsCLI(opts asynq.RedisConnOpt) *JobsCLI {
	return &JobsCLI{client: asynq.NewClient(opts), inspector: asynq.NewInspector(opts)}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var errs []error
	if c.inspector != nil {
		errs = append(errs, c.inspector.Close())
	}
	if c.client != nil {
		errs = append(errs, c.client.Close())
	}
	return errors.Join(errs...)
}

// Trigger enqueues a test delivery. Mail targets are email addresses, SMS
// targets are phone numbers.
func (c *JobsCLI) Trigger(ctx context.Context, name, target string) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, errors.New("jobs cli: target required")
	}
	var task *asynq.Task
	var err error
	switch name {
	case jobs.TaskSendMail:
		task, err = jobs.NewSendMailTask(jobs.Mail{
			To:      []string{target},
			Subject: "Fabline test message",
			HTML:    "<p>Mail delivery is configured.</p>",
		})
	case jobs.TaskSendSMS:
		task, err = jobs.NewSendSMSTask(jobs.SMS{Phone: target, Message: "Fabline test message"})
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task)
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Archived  int    `json:"archived"`
}

// InspectQueue reports the queue metrics for the default queue.
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if errors.Is(err, asynq.ErrQueueNotFound) {
		return QueueStats{Queue: jobs.QueueDefault}, nil
	}
	if err != nil {
		return QueueStats{}, err
	}
	return QueueStats{
		Queue:     jobs.QueueDefault,
		Pending:   info.Pending,
		Active:    info.Active,
		Scheduled: info.Scheduled,
		Archived:  info.Archived,
	}, nil
}

// ListPending returns queued task infos.
func (c *JobsCLI) ListPending(ctx context.Context, size int) ([]*asynq.TaskInfo, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	if size <= 0 {
		size = 10
	}
	tasks, err := c.inspector.ListPendingTasks(jobs.QueueDefault, asynq.PageSize(size), asynq.Page(1))
	if errors.Is(err, asynq.ErrQueueNotFound) {
		return nil, nil
	}
	return tasks, err
}

// ListArchived returns deliveries that failed and will not be retried.
func (c *JobsCLI) ListArchived(ctx context.Context, size int) ([]*asynq.TaskInfo, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	if size <= 0 {
		size = 10
	}
	tasks, err := c.inspector.ListArchivedTasks(jobs.QueueDefault, asynq.PageSize(size), asynq.Page(1))
	if errors.Is(err, asynq.ErrQueueNotFound) {
		return nil, nil
	}
	return tasks, err
}
