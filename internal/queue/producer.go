// Package queue publishes notification jobs (welcome, verification, and
// password-reset emails) onto Kafka. Delivery is fire-and-forget from the
// auth flows' perspective: a missing broker or a publish failure is logged
// and never fails the request that triggered it.
package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Event types understood by the notification consumers.
const (
	EventUserRegistered         = "user.registered"
	EventPasswordResetRequested = "user.password_reset_requested"
)

// MailEvent is the payload published for every notification job.
type MailEvent struct {
	Type      string    `json:"type"`
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Token     string    `json:"token,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Producer writes MailEvents to a Kafka topic. A nil Producer is valid and
// skips publishing, which keeps local development runnable without a broker.
type Producer struct {
	writer *kafka.Writer
	log    *zap.Logger
}

// NewProducer creates a Producer for broker/topic. An empty broker returns
// nil, the no-op producer.
func NewProducer(broker, topic string, log *zap.Logger) *Producer {
	if broker == "" {
		return nil
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(broker),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			WriteTimeout: 10 * time.Second,
		},
		log: log,
	}
}

// Publish enqueues event. Errors are logged, not returned: notification
// delivery must not fail an auth request.
func (p *Producer) Publish(ctx context.Context, event MailEvent) {
	if p == nil || p.writer == nil {
		return
	}

	event.Timestamp = time.Now()
	payload, err := json.Marshal(event)
	if err != nil {
		p.log.Error("mail event marshal failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.UserID),
		Value: payload,
	}); err != nil {
		p.log.Warn("mail event publish failed",
			zap.String("type", event.Type),
			zap.Error(err))
	}
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
