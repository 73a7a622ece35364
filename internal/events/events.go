package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

const TypePaymentIntentCreated = "checkout.payment_intent_created"

// PaymentIntentCreated is emitted once per checkout attempt that obtained a
// payment handle from the processor.
type PaymentIntentCreated struct {
	Type          string    `json:"type"`
	SessionID     string    `json:"session_id"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	PaymentMethod string    `json:"payment_method"`
	ItemCount     int       `json:"item_count"`
	SuccessURL    string    `json:"success_url"`
	CancelURL     string    `json:"cancel_url"`
	RequestID     string    `json:"request_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func (e PaymentIntentCreated) EventType() string { return e.Type }

// Typed events carry their type in the event_type message header.
type Typed interface {
	EventType() string
}

type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
	Close() error
}

// NopPublisher drops every event. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }
func (NopPublisher) Close() error                               { return nil }

// batchTimeout bounds how long a synchronous publish waits for a batch to
// fill. The writer default of one second would be added to every checkout.
const batchTimeout = 10 * time.Millisecond

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			BatchTimeout:           batchTimeout,
			AllowAutoTopicCreation: true,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(key), // session id keeps one checkout on one partition
		Value: data,
		Time:  time.Now().UTC(),
	}
	if typed, ok := event.(Typed); ok {
		msg.Headers = []kafka.Header{{Key: "event_type", Value: []byte(typed.EventType())}}
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", p.writer.Topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NewPublisher returns a Kafka publisher, or a NopPublisher when brokers is
// empty after trimming.
func NewPublisher(brokers []string, topic string) Publisher {
	var cleaned []string
	for _, b := range brokers {
		if b = strings.TrimSpace(b); b != "" {
			cleaned = append(cleaned, b)
		}
	}
	if len(cleaned) == 0 || topic == "" {
		return NopPublisher{}
	}
	return NewKafkaPublisher(cleaned, topic)
}
