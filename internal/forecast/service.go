package forecast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/bloom-forecast-service/internal/domain"
	"github.com/couchcryptid/bloom-forecast-service/internal/observability"
	"github.com/couchcryptid/storm-data-shared/retry"
)

// Publisher delivers completed forecasts downstream.
type Publisher interface {
	Publish(ctx context.Context, forecasts []domain.Forecast) error
}

// Pinger is implemented by predictors that can report engine availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Defaults fill request fields the caller left empty.
type Defaults struct {
	ModelPath string
	SDPath    string
}

// Service runs prediction requests through the engine and publishes the results.
type Service struct {
	predictor domain.Predictor
	publisher Publisher // nil disables publishing
	defaults  Defaults
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool

	publishAttempts int
	initialBackoff  time.Duration
	maxBackoff      time.Duration
}

// New creates a Service. Pass a nil publisher to serve forecasts without
// publishing them.
func New(p domain.Predictor, pub Publisher, defaults Defaults, logger *slog.Logger, metrics *observability.Metrics) *Service {
	s := &Service{
		predictor:       p,
		publisher:       pub,
		defaults:        defaults,
		logger:          logger,
		metrics:         metrics,
		publishAttempts: 4,
		initialBackoff:  200 * time.Millisecond,
		maxBackoff:      5 * time.Second,
	}
	if pub != nil {
		metrics.PublishEnabled.Set(1)
	}
	return s
}

// CheckReadiness returns nil once a forecast has succeeded or the engine
// answers a ping.
func (s *Service) CheckReadiness(ctx context.Context) error {
	if s.ready.Load() {
		return nil
	}
	p, ok := s.predictor.(Pinger)
	if !ok {
		return errors.New("no forecast has been produced yet")
	}
	if err := p.Ping(ctx); err != nil {
		return err
	}
	s.ready.Store(true)
	return nil
}

// Forecast validates req, obtains predictions and publishes the forecast.
// Publish failures are logged and counted but do not fail the request.
func (s *Service) Forecast(ctx context.Context, req domain.PredictionRequest) (domain.Forecast, error) {
	forecasts, err := s.ForecastBatch(ctx, []domain.PredictionRequest{req})
	if err != nil {
		return domain.Forecast{}, err
	}
	return forecasts[0], nil
}

// ForecastBatch runs every request in order and publishes the results in a
// single batch. The first failing request aborts the batch.
func (s *Service) ForecastBatch(ctx context.Context, reqs []domain.PredictionRequest) ([]domain.Forecast, error) {
	forecasts := make([]domain.Forecast, 0, len(reqs))
	for _, req := range reqs {
		f, err := s.predict(ctx, req)
		if err != nil {
			s.metrics.ForecastErrors.Inc()
			return nil, err
		}
		forecasts = append(forecasts, f)
	}
	if len(forecasts) > 0 {
		s.ready.Store(true)
		s.publish(ctx, forecasts)
	}
	return forecasts, nil
}

func (s *Service) predict(ctx context.Context, req domain.PredictionRequest) (domain.Forecast, error) {
	req = s.applyDefaults(req)
	if err := req.Validate(); err != nil {
		return domain.Forecast{}, err
	}

	start := time.Now()
	preds, err := s.predictor.Predict(ctx, req)
	if err != nil {
		s.logger.Error("prediction failed", "error", err, "variant", req.Variant, "year", req.Evidence.Year)
		return domain.Forecast{}, fmt.Errorf("predict %s %d: %w", req.Variant, req.Evidence.Year, err)
	}

	f := domain.NewForecast(req, preds)
	s.metrics.ForecastsIssued.WithLabelValues(string(req.Variant)).Inc()
	s.logger.Info("forecast issued",
		"id", f.ID,
		"variant", f.Variant,
		"year", f.Year,
		"nodes", len(f.Predictions),
		"duration", time.Since(start),
	)
	return f, nil
}

// applyDefaults normalises the variant name and fills unset file paths.
// Unknown variants are left as given for Validate to reject.
func (s *Service) applyDefaults(req domain.PredictionRequest) domain.PredictionRequest {
	if v, err := domain.ParseVariant(string(req.Variant)); err == nil {
		req.Variant = v
	}
	if req.ModelPath == "" {
		req.ModelPath = s.defaults.ModelPath
	}
	if req.SDPath == "" && req.Variant.UsesSD() {
		req.SDPath = s.defaults.SDPath
	}
	if !req.Variant.UsesSD() {
		req.SDPath = ""
	}
	return req
}

// publish writes forecasts with exponential backoff: start at 200ms, double
// each retry, cap at 5s.
func (s *Service) publish(ctx context.Context, forecasts []domain.Forecast) {
	if s.publisher == nil {
		return
	}

	backoff := s.initialBackoff
	for attempt := 1; ; attempt++ {
		err := s.publisher.Publish(ctx, forecasts)
		if err == nil {
			s.metrics.ForecastsPublished.Add(float64(len(forecasts)))
			return
		}

		s.metrics.PublishErrors.Inc()
		s.logger.Error("publish forecasts failed", "error", err, "attempt", attempt, "batch_size", len(forecasts))
		if attempt >= s.publishAttempts || !retry.SleepWithContext(ctx, backoff) {
			return
		}
		backoff = retry.NextBackoff(backoff, s.maxBackoff)
	}
}
