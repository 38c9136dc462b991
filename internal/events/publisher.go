// Package events mirrors queue outcomes onto a Kafka topic so operators can
// watch dispatch activity without tailing logs.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// QueueEvent is the wire envelope for one queue outcome.
type QueueEvent struct {
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	SourceGroup string    `json:"source_group"`
	ChatJID     string    `json:"chat_jid,omitempty"`
	File        string    `json:"file,omitempty"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Publisher writes queue events to Kafka. A nil Publisher is a valid no-op.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher creates a publisher for a comma-separated broker list.
func NewPublisher(brokers, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(strings.Split(brokers, ",")...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

// Publish writes one event, keyed by source group so per-group ordering is
// preserved.
func (p *Publisher) Publish(ctx context.Context, evt QueueEvent) error {
	if p == nil {
		return nil
	}
	if evt.EventID == "" {
		evt.EventID = uuid.NewString()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal queue event: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.SourceGroup),
		Value: data,
	})
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
