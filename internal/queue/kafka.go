package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"shared-tasks/internal/config"
	"shared-tasks/internal/models"
	"shared-tasks/pkg/logger"
)

// EnsureTopic creates the task-events topic with configured partitions.
// Call at startup; if it fails (e.g. no broker or topic exists), the app still runs.
func EnsureTopic(ctx context.Context, cfg *config.Config) {
	if !cfg.RelayEnabled() {
		return
	}
	conn, err := kafka.DialContext(ctx, "tcp", cfg.KafkaBrokers[0])
	if err != nil {
		logger.Debug(ctx, "Kafka dial for topic creation failed", "error", err)
		return
	}
	defer conn.Close()
	controller, err := conn.Controller()
	if err != nil {
		logger.Debug(ctx, "Kafka controller lookup failed", "error", err)
		return
	}
	ctrlConn, err := kafka.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		logger.Debug(ctx, "Kafka controller dial failed", "error", err)
		return
	}
	defer ctrlConn.Close()
	err = ctrlConn.CreateTopics(kafka.TopicConfig{
		Topic:             cfg.KafkaTopic,
		NumPartitions:     cfg.KafkaPartitions,
		ReplicationFactor: 1,
	})
	if err != nil {
		logger.Debug(ctx, "Kafka create topic failed (topic may already exist)", "error", err)
		return
	}
	logger.Info(ctx, "Kafka topic ensured", "topic", cfg.KafkaTopic, "partitions", cfg.KafkaPartitions)
}

// MessageWriter is the subset of *kafka.Writer the relay needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Relay publishes committed task events to Kafka so every replica can fan them out.
type Relay struct {
	w MessageWriter
}

// relayFlushInterval bounds how long an event may sit in a partial batch.
// kafka-go treats a zero BatchTimeout as one second.
const relayFlushInterval = 5 * time.Millisecond

// NewWriter builds the async producer for the events topic.
func NewWriter(cfg *config.Config) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: relayFlushInterval,
		Async:        true,
		RequiredAcks: kafka.RequireOne,
	}
}

func NewRelay(w MessageWriter) *Relay {
	return &Relay{w: w}
}

// Publish hands the event to the async writer. Keyed by task id so events for
// one task stay on one partition.
func (r *Relay) Publish(ctx context.Context, ev models.Event) error {
	msg, err := EncodeEvent(ev)
	if err != nil {
		return err
	}
	if err := r.w.WriteMessages(ctx, msg); err != nil {
		logger.Error(ctx, "Kafka publish failed", "error", err, "event", ev.Type, "task_id", ev.ID)
		return err
	}
	return nil
}

func (r *Relay) Close() error {
	return r.w.Close()
}

// EncodeEvent builds the Kafka message for an event.
func EncodeEvent(ev models.Event) (kafka.Message, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(strconv.FormatInt(ev.ID, 10)),
		Value: payload,
	}, nil
}

// DecodeEvent parses and validates a relayed event.
func DecodeEvent(payload []byte) (models.Event, error) {
	var ev models.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return models.Event{}, fmt.Errorf("decode event: %w", err)
	}
	if err := ev.Validate(); err != nil {
		return models.Event{}, err
	}
	return ev, nil
}
