// Package rscript calls the externally fitted Bayesian network through the R
// interpreter. The network and its inference functions live in an R source
// file supplied by the user; this package only marshals evidence into
// arguments and parses the returned data frame.
package rscript

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/bloom-forecast-service/internal/domain"
	"github.com/couchcryptid/bloom-forecast-service/internal/observability"
)

// driverScript sources the user's R file, calls one function with positional
// arguments and writes the resulting data frame to stdout as CSV. Arguments
// are prefixed with a type tag: "s:" string, "i:" integer, "n:" numeric.
//
//go:embed driver.R
var driverScript string

// Names of the R functions expected in the sourced file.
const (
	fnPredict            = "bayes_net_predict"
	fnPredictNoMet       = "bayes_net_predict_nomet"
	fnPredictOperational = "bayes_net_predict_operational"
)

// Client implements domain.Predictor by running Rscript.
type Client struct {
	rscript string
	source  string
	timeout time.Duration
	runner  Runner
	runOpts []Option
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewClient creates a client that runs rscriptPath against the R file at
// sourcePath. A zero timeout leaves cancellation to the caller's context.
func NewClient(rscriptPath, sourcePath string, timeout time.Duration, runner Runner, metrics *observability.Metrics, logger *slog.Logger, opts ...Option) *Client {
	return &Client{
		rscript: rscriptPath,
		source:  sourcePath,
		timeout: timeout,
		runner:  runner,
		runOpts: opts,
		metrics: metrics,
		logger:  logger,
	}
}

// Predict calls the engine function matching the request's variant and
// returns one annotated row per forecast node.
func (c *Client) Predict(ctx context.Context, req domain.PredictionRequest) ([]domain.NodePrediction, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	fn, fnArgs := functionCall(req)
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := append([]string{"--vanilla", "-e", driverScript, c.source, fn}, fnArgs...)

	start := time.Now()
	result, err := c.runner.Run(ctx, c.rscript, args, c.runOpts...)
	c.metrics.EngineDuration.WithLabelValues(string(req.Variant)).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.EngineCalls.WithLabelValues(string(req.Variant), "error").Inc()
		return nil, fmt.Errorf("engine %s: %w", fn, err)
	}

	rows, err := parsePredictions(result.Stdout, req.Variant.UsesSD())
	if err != nil {
		c.metrics.EngineCalls.WithLabelValues(string(req.Variant), "error").Inc()
		return nil, fmt.Errorf("engine %s: %w", fn, err)
	}
	c.metrics.EngineCalls.WithLabelValues(string(req.Variant), "success").Inc()

	c.logger.Debug("engine call complete",
		"function", fn,
		"year", req.Evidence.Year,
		"nodes", len(rows),
		"duration", time.Since(start),
	)
	return domain.AnnotatePredictions(req.Evidence.Year, rows), nil
}

// BayesNetPredict runs the full network, conditioning on met nodes.
func (c *Client) BayesNetPredict(ctx context.Context, modelPath, sdPath string, ev domain.Evidence) ([]domain.NodePrediction, error) {
	return c.Predict(ctx, domain.PredictionRequest{
		Variant: domain.VariantFull, ModelPath: modelPath, SDPath: sdPath, Evidence: ev,
	})
}

// BayesNetPredictNoMet runs the network fitted without met nodes.
func (c *Client) BayesNetPredictNoMet(ctx context.Context, modelPath, sdPath string, ev domain.Evidence) ([]domain.NodePrediction, error) {
	return c.Predict(ctx, domain.PredictionRequest{
		Variant: domain.VariantNoMet, ModelPath: modelPath, SDPath: sdPath, Evidence: ev,
	})
}

// BayesNetPredictOperational runs the operational network (TP, colour and
// cyano only, no standard deviations).
func (c *Client) BayesNetPredictOperational(ctx context.Context, modelPath string, ev domain.Evidence) ([]domain.NodePrediction, error) {
	return c.Predict(ctx, domain.PredictionRequest{
		Variant: domain.VariantOperational, ModelPath: modelPath, Evidence: ev,
	})
}

// Ping checks that the R interpreter can be started.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.runner.Run(ctx, c.rscript, []string{"--version"}); err != nil {
		return fmt.Errorf("rscript unavailable: %w", err)
	}
	return nil
}

// functionCall returns the R function name and its positional arguments in
// the order the R functions declare them.
func functionCall(req domain.PredictionRequest) (string, []string) {
	e := req.Evidence
	switch req.Variant {
	case domain.VariantNoMet:
		return fnPredictNoMet, []string{
			str(req.ModelPath), str(req.SDPath), integer(e.Year),
			num(e.ChlaPrevSummer), num(e.ColourPrevSummer), num(e.TPPrevSummer), num(e.Sigma),
		}
	case domain.VariantOperational:
		return fnPredictOperational, []string{
			str(req.ModelPath), integer(e.Year),
			num(e.ChlaPrevSummer), num(e.ColourPrevSummer), num(e.TPPrevSummer), num(e.Sigma),
		}
	default:
		return fnPredict, []string{
			str(req.ModelPath), str(req.SDPath), integer(e.Year),
			num(e.ChlaPrevSummer), num(e.ColourPrevSummer), num(e.TPPrevSummer),
			num(e.WindSpeed), num(e.Rain), num(e.Sigma),
		}
	}
}

func str(s string) string  { return "s:" + s }
func integer(n int) string { return "i:" + strconv.Itoa(n) }
func num(v float64) string { return "n:" + strconv.FormatFloat(v, 'g', -1, 64) }
