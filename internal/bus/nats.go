// Package bus publishes finished-job events on NATS.
package bus

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"pdfmerger/internal/models"
)

type Client struct{ nc *nats.Conn }

func Connect(url string) (*Client, error) {
	nc, err := nats.Connect(url,
		nats.Name("pdfmerger"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &Client{nc: nc}, nil
}

func (c *Client) Close() {
	if c.nc != nil {
		_ = c.nc.Drain()
	}
}

func (c *Client) PublishJSON(subject string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.nc.Publish(subject, b)
}

func (c *Client) SubscribeJSON(subject string, handler func(ctx context.Context, data []byte)) (*nats.Subscription, error) {
	return c.nc.Subscribe(subject, func(msg *nats.Msg) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		handler(ctx, msg.Data)
	})
}

// JobEvent is published once per job when it reaches a terminal state.
type JobEvent struct {
	JobID      string           `json:"job_id"`
	Status     models.JobStatus `json:"status"`
	OutputName string           `json:"output_name"`
	TotalPages int              `json:"total_pages"`
	Error      string           `json:"error,omitempty"`
	DurationMS int64            `json:"duration_ms"`
	FinishedAt time.Time        `json:"finished_at"`
}

type jsonPublisher interface {
	PublishJSON(subject string, v any) error
}

// Notifier turns terminal snapshots into JobEvents.
type Notifier struct {
	pub     jsonPublisher
	subject string
	logger  *slog.Logger
}

func NewNotifier(pub jsonPublisher, subject string, logger *slog.Logger) *Notifier {
	return &Notifier{pub: pub, subject: subject, logger: logger}
}

// JobFinished publishes s. Failures are logged and otherwise ignored.
func (n *Notifier) JobFinished(s models.Snapshot, elapsed time.Duration) {
	if !s.Status.Terminal() {
		return
	}
	evt := JobEvent{
		JobID:      s.JobID,
		Status:     s.Status,
		OutputName: s.OutputName,
		TotalPages: s.TotalPages,
		Error:      s.Error,
		DurationMS: elapsed.Milliseconds(),
		FinishedAt: s.UpdatedAt,
	}
	if err := n.pub.PublishJSON(n.subject, evt); err != nil {
		n.logger.Warn("failed to publish job event", "job_id", s.JobID, "subject", n.subject, "error", err)
	}
}
