package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/spottr/hazard-intel/internal/config"
	"github.com/spottr/hazard-intel/internal/domain"
)

// Writer produces hazard updates to the sink topic.
// It implements ingest.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish serializes a hazard snapshot and writes it to the sink topic.
// Messages are keyed by hazard id so updates for one hazard stay ordered
// within a partition; the event header tells realtime consumers whether
// the message is a new hazard, a merged duplicate, or a feedback update.
func (w *Writer) Publish(ctx context.Context, h domain.Hazard, event string) error {
	msg, err := serializeToMessage(h, event)
	if err != nil {
		return err
	}
	return w.writer.WriteMessages(ctx, msg)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a hazard snapshot into a Kafka message.
func serializeToMessage(h domain.Hazard, event string) (kafkago.Message, error) {
	data, err := json.Marshal(h)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize hazard: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(h.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event", Value: []byte(event)},
			{Key: "status", Value: []byte(h.Status.String())},
			{Key: "updated_at", Value: []byte(h.LastUpdated.Format(time.RFC3339))},
		},
	}, nil
}
