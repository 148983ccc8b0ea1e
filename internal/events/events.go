// Package events publishes domain events describing catalog, channel and
// schedule changes.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Type names a domain event.
type Type string

const (
	MediaIngested   Type = "media.ingested"
	MediaUpdated    Type = "media.updated"
	MediaDeleted    Type = "media.deleted"
	ChannelStarted  Type = "channel.started"
	ChannelStopped  Type = "channel.stopped"
	ChannelRenamed  Type = "channel.renamed"
	ScheduleCreated Type = "schedule.created"
	ScheduleDeleted Type = "schedule.deleted"
)

// Event is a single domain event. Only the identifiers relevant to Type are set.
type Event struct {
	Type       Type      `json:"type"`
	Time       time.Time `json:"time"`
	MediaID    string    `json:"mediaId,omitempty"`
	ChannelID  int       `json:"channelId,omitempty"`
	ScheduleID string    `json:"scheduleId,omitempty"`
}

// key partitions events so that all events of one entity stay ordered.
func (e Event) key() string {
	switch {
	case e.ChannelID != 0 && e.ScheduleID == "":
		return fmt.Sprintf("channel-%d", e.ChannelID)
	case e.ScheduleID != "":
		return "schedule-" + e.ScheduleID
	default:
		return "media-" + e.MediaID
	}
}

// Publisher delivers events. Publishing is best-effort; callers log failures
// and carry on.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Each event is written on its own, so a long batch window would only add
// latency to the request that emitted it.
const kafkaBatchTimeout = 10 * time.Millisecond

// Kafka publishes events as JSON messages to a single topic.
type Kafka struct {
	writer *kafka.Writer
}

// NewKafka returns a publisher writing to topic on brokers.
func NewKafka(brokers []string, topic string) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not configured")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka topic not configured")
	}
	return &Kafka{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			BatchTimeout:           kafkaBatchTimeout,
			WriteTimeout:           5 * time.Second,
			AllowAutoTopicCreation: true,
		},
	}, nil
}

// Publish implements Publisher.
func (k *Kafka) Publish(ctx context.Context, e Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.key()),
		Value: value,
		Time:  e.Time,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}

// Close flushes pending messages and closes the writer.
func (k *Kafka) Close() error {
	return k.writer.Close()
}

// Recorder keeps published events in memory. Used in tests and as a
// development sink.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Emit publishes e on p, stamping Time when unset, and logs failures at warn.
func Emit(ctx context.Context, p Publisher, log *slog.Logger, e Event) {
	if p == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	if err := p.Publish(ctx, e); err != nil && log != nil {
		log.Warn("publish event failed", "type", string(e.Type), "error", err)
	}
}
