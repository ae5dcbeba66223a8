package notify

import (
	"context"
	"encoding/json"
	"time"

	kafka "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Job struct {
	ThreadID     uint64   `json:"thread_id"`
	RecipientIDs []uint64 `json:"recipient_ids"`
	MessageID    uint64   `json:"message_id"`
	Preview      string   `json:"preview"`
	Type         string   `json:"type"`
}

// Dispatcher pushes best-effort delivery jobs to the outbound queue. The
// consumer (email/push fan-out) lives outside this core.
type Dispatcher interface {
	Enqueue(ctx context.Context, job Job) error
	Close() error
}

type kafkaDispatcher struct {
	writer *kafka.Writer
	logger *zap.SugaredLogger
}

func NewDispatcher(brokers []string, topic string, logger *zap.Logger) Dispatcher {
	if len(brokers) == 0 {
		logger.Sugar().Infow("No kafka brokers configured, notifications disabled")
		return NewNoop()
	}
	if topic == "" {
		topic = "messaging.notifications"
	}

	// Writer is safe for concurrent use
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		RequiredAcks: kafka.RequireOne,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
	}

	return &kafkaDispatcher{
		writer: w,
		logger: logger.Sugar(),
	}
}

func (d *kafkaDispatcher) Enqueue(ctx context.Context, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := d.writer.WriteMessages(ctx, kafka.Message{Value: data}); err != nil {
		d.logger.Errorw("Failed to enqueue notification job",
			"thread_id", job.ThreadID,
			"message_id", job.MessageID,
			"error", err,
		)
		return err
	}
	return nil
}

func (d *kafkaDispatcher) Close() error {
	return d.writer.Close()
}

type noopDispatcher struct{}

func NewNoop() Dispatcher {
	return noopDispatcher{}
}

func (noopDispatcher) Enqueue(context.Context, Job) error { return nil }
func (noopDispatcher) Close() error                       { return nil }
