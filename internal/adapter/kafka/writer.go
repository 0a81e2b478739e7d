package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/weather-briefing-service/internal/config"
	"github.com/couchcryptid/weather-briefing-service/internal/domain"
)

// messageWriter is the subset of kafkago.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes briefings to a Kafka topic.
// It implements pipeline.Sink.
type Writer struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured briefing topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaBriefingTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, topic: cfg.KafkaBriefingTopic, logger: logger}
}

// Name identifies the sink in logs and metrics.
func (w *Writer) Name() string { return "kafka" }

// Publish writes one briefing keyed by its run id.
func (w *Writer) Publish(ctx context.Context, b domain.Briefing) error {
	msg, err := serializeToMessage(b)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write briefing %s: %w", b.RunID, err)
	}
	w.logger.Debug("briefing published", "sink", w.Name(), "topic", w.topic, "run_id", b.RunID, "bytes", len(msg.Value))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a Briefing into a Kafka message.
func serializeToMessage(b domain.Briefing) (kafkago.Message, error) {
	if b.RunID == "" {
		return kafkago.Message{}, errors.New("serialize briefing: missing run id")
	}
	data, err := json.Marshal(b)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize briefing: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(b.RunID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(b.RunID)},
			{Key: "generated_at", Value: []byte(b.GeneratedAt.Format(time.RFC3339))},
			{Key: "edition", Value: []byte(b.Edition)},
		},
	}, nil
}
