package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/bloom-forecast-service/internal/config"
	"github.com/couchcryptid/bloom-forecast-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer publishes forecasts to a Kafka topic.
// It implements forecast.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured forecast topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaForecastTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish serializes forecasts and writes them in a single WriteMessages call.
// Messages are keyed by forecast ID so reruns of the same request land on the
// same partition.
func (w *Writer) Publish(ctx context.Context, forecasts []domain.Forecast) error {
	if len(forecasts) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(forecasts))
	for i := range forecasts {
		msg, err := serializeToMessage(forecasts[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d forecasts to %s: %w", len(msgs), w.writer.Topic, err)
	}
	w.logger.Debug("forecasts published", "topic", w.writer.Topic, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func serializeToMessage(f domain.Forecast) (kafkago.Message, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize forecast %s: %w", f.ID, err)
	}
	return kafkago.Message{
		Key:   []byte(f.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "variant", Value: []byte(f.Variant)},
			{Key: "issued_at", Value: []byte(f.IssuedAt.Format(time.RFC3339))},
		},
	}, nil
}

// DecodeMessage parses a published forecast message.
func DecodeMessage(msg kafkago.Message) (domain.Forecast, error) {
	var f domain.Forecast
	if err := json.Unmarshal(msg.Value, &f); err != nil {
		return domain.Forecast{}, fmt.Errorf("decode forecast at offset %d: %w", msg.Offset, err)
	}
	return f, nil
}
