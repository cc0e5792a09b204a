// Package notify publishes job lifecycle events so downstream review
// tooling can react without polling. Delivery is best effort; a failed
// publish is logged and never fails the pipeline.
package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/civicdata/codecrawler/internal/store"
)

// Event types emitted over the job lifecycle.
const (
	EventJobReview   = "job.review"
	EventJobApproved = "job.approved"
	EventJobFailed   = "job.failed"
)

// Event is the payload published for every lifecycle change.
type Event struct {
	Type            string    `json:"type"`
	JobID           string    `json:"job_id"`
	JurisdictionID  string    `json:"jurisdiction_id"`
	Status          string    `json:"status"`
	ItemsFound      int       `json:"items_found,omitempty"`
	ItemsNeedReview int       `json:"items_need_review,omitempty"`
	ConfidenceScore float64   `json:"confidence_score,omitempty"`
	Error           string    `json:"error,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// Publisher is the transport surface a backend must provide.
type Publisher interface {
	// Publish sends the payload to the topic and returns the message ID.
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Notifier emits lifecycle events through a Publisher.
type Notifier struct {
	pub    Publisher
	topic  string
	logger *zap.Logger
}

// New builds a Notifier. A nil publisher disables notifications.
func New(pub Publisher, topic string, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{pub: pub, topic: topic, logger: logger.Named("notify")}
}

// JobReview announces that a job finished extraction and awaits review.
func (n *Notifier) JobReview(ctx context.Context, job *store.ExtractionJob) {
	n.emit(ctx, Event{
		Type:            EventJobReview,
		JobID:           job.ID,
		JurisdictionID:  job.JurisdictionID,
		Status:          string(store.StatusReview),
		ItemsFound:      job.ItemsFound,
		ItemsNeedReview: job.ItemsNeedReview,
		ConfidenceScore: job.ConfidenceScore,
	})
}

// JobApproved announces that a reviewer approved a job.
func (n *Notifier) JobApproved(ctx context.Context, job *store.ExtractionJob) {
	n.emit(ctx, Event{
		Type:           EventJobApproved,
		JobID:          job.ID,
		JurisdictionID: job.JurisdictionID,
		Status:         string(store.StatusApproved),
	})
}

// JobFailed announces a terminal pipeline failure.
func (n *Notifier) JobFailed(ctx context.Context, job *store.ExtractionJob, failure error) {
	evt := Event{
		Type:           EventJobFailed,
		JobID:          job.ID,
		JurisdictionID: job.JurisdictionID,
		Status:         string(store.StatusFailed),
	}
	if failure != nil {
		evt.Error = failure.Error()
	}
	n.emit(ctx, evt)
}

func (n *Notifier) emit(ctx context.Context, evt Event) {
	if n == nil || n.pub == nil {
		return
	}
	evt.OccurredAt = time.Now().UTC()
	id, err := n.pub.Publish(ctx, n.topic, evt)
	if err != nil {
		n.logger.Warn("failed to publish job event",
			zap.String("type", evt.Type),
			zap.String("job_id", evt.JobID),
			zap.Error(err))
		return
	}
	n.logger.Debug("published job event",
		zap.String("type", evt.Type),
		zap.String("job_id", evt.JobID),
		zap.String("message_id", id))
}
