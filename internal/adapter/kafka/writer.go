package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/place-planner/internal/config"
	"github.com/couchcryptid/place-planner/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces plan audit events to a Kafka topic.
// It implements planner.EventPublisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured plan topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaPlanTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger.With("component", "kafka_writer")}
}

// Publish writes one plan event keyed by its ID.
func (w *Writer) Publish(ctx context.Context, event domain.PlanEvent) error {
	msg, err := serializeToMessage(event)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write plan event %s: %w", event.ID, err)
	}
	w.logger.Debug("plan event published", "event_id", event.ID, "ok", event.OK)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a PlanEvent into a Kafka message.
func serializeToMessage(event domain.PlanEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize plan event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.ID),
		Value: data,
		Time:  event.At,
		Headers: []kafkago.Header{
			{Key: "ok", Value: []byte(strconv.FormatBool(event.OK))},
			{Key: "place_key", Value: []byte(event.PlaceKey)},
		},
	}, nil
}
