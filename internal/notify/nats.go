// Package notify publishes conversion completion events so downstream
// consumers can react to freshly produced audio without polling the REST
// surface.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/tts-web/internal/core"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// NatsNotifier publishes an AudioChunkCreatedEvent on a NATS subject when
// a conversion job completes.
type NatsNotifier struct {
	natsConnection *nats.Conn
	subject        string
}

// NewNats creates a notifier publishing on the given subject.
func NewNats(natsConnection *nats.Conn, subject string) *NatsNotifier {
	return &NatsNotifier{
		natsConnection: natsConnection,
		subject:        subject,
	}
}

// NotifyCompleted publishes the completion event. The artifact key is the
// filename under which the combined audio was stored; TotalPages carries
// the segment count.
func (n *NatsNotifier) NotifyCompleted(
	_ context.Context,
	job *core.ConversionJob,
	artifactKey string,
) error {
	event := &events.AudioChunkCreatedEvent{
		Header: events.EventHeader{
			Timestamp:  time.Now(),
			WorkflowID: job.ID,
			EventID:    uuid.NewString(),
		},
		AudioKey:   artifactKey,
		TotalPages: len(job.Segments),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal completion event: %w", err)
	}

	err = n.natsConnection.Publish(n.subject, data)
	if err != nil {
		return fmt.Errorf("failed to publish completion event: %w", err)
	}

	return nil
}
