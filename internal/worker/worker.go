package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"shared-tasks/internal/config"
	"shared-tasks/internal/models"
	"shared-tasks/internal/queue"
	"shared-tasks/pkg/logger"
)

// Publisher delivers an event to this replica's sessions.
type Publisher interface {
	Publish(ctx context.Context, ev models.Event) error
}

// Invalidator drops cached list state.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// Run consumes relayed task events until ctx is cancelled: each one invalidates the
// list cache and is published to the local hub. Every replica uses its own consumer
// group so all replicas receive all events.
func Run(ctx context.Context, cfg *config.Config, hub Publisher, cache Invalidator) {
	if !cfg.RelayEnabled() {
		logger.Info(ctx, "Event relay disabled (no Kafka brokers)")
		return
	}
	groupID := "task-events-" + uuid.NewString()
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       cfg.KafkaTopic,
		GroupID:     groupID,
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	defer reader.Close()

	logger.Info(ctx, "Kafka consumer started", "topic", cfg.KafkaTopic, "group", groupID)
	consume(ctx, reader, hub, cache)
}

// MessageReader is the part of *kafka.Reader the consumer loop uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Retry delays after a failed fetch; doubled per consecutive failure up to the max.
var (
	fetchRetryBase = 100 * time.Millisecond
	fetchRetryMax  = 5 * time.Second
)

func consume(ctx context.Context, reader MessageReader, hub Publisher, cache Invalidator) {
	delay := time.Duration(0)
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			delay = min(max(2*delay, fetchRetryBase), fetchRetryMax)
			logger.Error(ctx, "Worker fetch failed", "error", err, "retry_in", delay)
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
			continue
		}
		delay = 0
		if err := HandleMessage(ctx, msg.Value, hub, cache); err != nil {
			logger.Error(ctx, "Worker handle failed", "error", err, "payload", string(msg.Value))
			// Commit anyway to avoid poison pill blocking the partition
		}
		if err := reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			logger.Error(ctx, "Worker commit failed", "error", err)
		}
	}
}

// HandleMessage decodes one relayed event and fans it out locally.
func HandleMessage(ctx context.Context, payload []byte, hub Publisher, cache Invalidator) error {
	ev, err := queue.DecodeEvent(payload)
	if err != nil {
		return err
	}
	cache.Invalidate(ctx)
	return hub.Publish(ctx, ev)
}
