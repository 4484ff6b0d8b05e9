package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingConn struct {
	subject string
	data    []byte
	err     error
}

func (r *recordingConn) Publish(subject string, data []byte) error {
	r.subject = subject
	r.data = append([]byte(nil), data...)
	return r.err
}

func TestNATSEventPublisherEncodesEvent(t *testing.T) {
	conn := &recordingConn{}
	publisher := NewNATSEventPublisher(conn, "grader.test")

	event := EvaluationEvent{
		Type:         EventEvaluationCompleted,
		EvaluationID: "abc",
		RepoURL:      "https://example.com/memory.git",
		Kind:         "html_asset",
		TotalScore:   7,
		TotalMarks:   10,
		OccurredAt:   time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, publisher.Publish(context.Background(), event))

	require.Equal(t, "grader.test", conn.subject)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(conn.data, &decoded))
	require.Equal(t, "evaluation.completed", decoded["type"])
	require.Equal(t, "abc", decoded["evaluation_id"])
	require.Equal(t, float64(7), decoded["total_score"])
	require.NotContains(t, decoded, "error")
}

func TestNATSEventPublisherHonoursCancelledContext(t *testing.T) {
	conn := &recordingConn{}
	publisher := NewNATSEventPublisher(conn, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, publisher.Publish(ctx, EvaluationEvent{Type: EventEvaluationFailed}), context.Canceled)
	require.Empty(t, conn.subject)
}
