package service

import (
	"context"
	"encoding/json"
	"time"
)

// Evaluation event types.
const (
	EventEvaluationCompleted = "evaluation.completed"
	EventEvaluationFailed    = "evaluation.failed"
)

// EvaluationEvent is published once per terminal evaluation outcome.
type EvaluationEvent struct {
	Type         string         `json:"type"`
	EvaluationID string         `json:"evaluation_id"`
	RepoURL      string         `json:"repo_url"`
	Title        string         `json:"title"`
	Kind         string         `json:"kind"`
	TotalScore   int            `json:"total_score,omitempty"`
	TotalMarks   int            `json:"total_marks,omitempty"`
	Scores       map[string]int `json:"scores,omitempty"`
	Cached       bool           `json:"cached,omitempty"`
	Error        string         `json:"error,omitempty"`
	DurationMS   int64          `json:"duration_ms"`
	OccurredAt   time.Time      `json:"occurred_at"`
}

// EventPublisher announces evaluation outcomes to other services.
type EventPublisher interface {
	Publish(ctx context.Context, event EvaluationEvent) error
}

// MessagePublisher is the subset of *nats.Conn used for events.
type MessagePublisher interface {
	Publish(subject string, data []byte) error
}

type natsEventPublisher struct {
	conn    MessagePublisher
	subject string
}

// NewNATSEventPublisher publishes events as JSON on subject. conn is usually a *nats.Conn.
func NewNATSEventPublisher(conn MessagePublisher, subject string) EventPublisher {
	if subject == "" {
		subject = "grader.evaluations"
	}
	return &natsEventPublisher{conn: conn, subject: subject}
}

func (p *natsEventPublisher) Publish(ctx context.Context, event EvaluationEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.conn.Publish(p.subject, payload)
}
