package kafka

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/couchcryptid/bloom-forecast-service/internal/config"
	"github.com/couchcryptid/bloom-forecast-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testForecast() domain.Forecast {
	return domain.Forecast{
		ID:      "operational-2020-0a1b2c3d4e5f6071",
		Variant: domain.VariantOperational,
		Year:    2020,
		Evidence: domain.Evidence{
			Year: 2020, ChlaPrevSummer: 17, ColourPrevSummer: 50, TPPrevSummer: 28, Sigma: 0.15,
		},
		Predictions: domain.AnnotatePredictions(2020, []domain.NodePrediction{
			{Node: "TP", Threshold: 29.5, ProbBelowThreshold: 0.4, ProbAboveThreshold: 0.6, ExpectedValue: 31, SD: math.NaN()},
		}),
		IssuedAt: time.Date(2020, 4, 1, 6, 0, 0, 0, time.UTC),
	}
}

func TestSerializeToMessage(t *testing.T) {
	f := testForecast()

	msg, err := serializeToMessage(f)
	require.NoError(t, err)

	assert.Equal(t, []byte(f.ID), msg.Key)
	assert.Contains(t, string(msg.Value), `"variant":"operational"`)
	assert.Contains(t, string(msg.Value), `"sd":null`)
	assert.Len(t, msg.Headers, 2)
	assert.Equal(t, "variant", msg.Headers[0].Key)
	assert.Equal(t, []byte("operational"), msg.Headers[0].Value)
	assert.Equal(t, "issued_at", msg.Headers[1].Key)
	assert.Equal(t, []byte("2020-04-01T06:00:00Z"), msg.Headers[1].Value)
}

func TestDecodeMessage_RoundTrip(t *testing.T) {
	f := testForecast()
	msg, err := serializeToMessage(f)
	require.NoError(t, err)

	got, err := DecodeMessage(msg)
	require.NoError(t, err)

	assert.Equal(t, f.ID, got.ID)
	assert.Equal(t, f.IssuedAt, got.IssuedAt)
	require.Len(t, got.Predictions, 1)
	assert.True(t, math.IsNaN(got.Predictions[0].SD))
	assert.Equal(t, domain.Class(1), got.Predictions[0].WFDClass)
}

func TestDecodeMessage_Invalid(t *testing.T) {
	_, err := DecodeMessage(kafkago.Message{Value: []byte("{"), Offset: 7})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "offset 7")
}

func TestWriter_PublishEmptyIsNoop(t *testing.T) {
	cfg := &config.Config{KafkaBrokers: []string{"localhost:1"}, KafkaForecastTopic: "bloom-forecasts"}
	w := NewWriter(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer w.Close()

	require.NoError(t, w.Publish(context.Background(), nil))
}
