// Command forecast runs the Bayesian network once and prints per-node
// predictions. Evidence comes either from flags (a single year) or from a
// CSV file with one row per year, which is how hindcasts are produced.
//
// Usage:
//
//	go run ./cmd/forecast \
//	  -variant operational -model Bayes_net/operational.rds \
//	  -year 2021 -chla 17.2 -colour 51 -tp 27.8
//
//	go run ./cmd/forecast \
//	  -variant full -model Bayes_net/full.rds -sd Bayes_net/sd.csv \
//	  -evidence data/hindcast_evidence.csv -format csv -out predictions.csv
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/bloom-forecast-service/internal/adapter/csvio"
	"github.com/couchcryptid/bloom-forecast-service/internal/adapter/rscript"
	"github.com/couchcryptid/bloom-forecast-service/internal/config"
	"github.com/couchcryptid/bloom-forecast-service/internal/domain"
	"github.com/couchcryptid/bloom-forecast-service/internal/forecast"
	"github.com/couchcryptid/bloom-forecast-service/internal/observability"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	variant := flag.String("variant", "full", "network variant: full, nomet or operational")
	rscriptPath := flag.String("rscript", cfg.RscriptPath, "Rscript executable")
	source := flag.String("r-source", cfg.RSourcePath, "R file defining the bayes_net_predict functions")
	model := flag.String("model", cfg.ModelPath, "fitted network (.rds)")
	sd := flag.String("sd", cfg.SDPath, "node standard deviations (.csv); full and nomet only")
	evidencePath := flag.String("evidence", "", "CSV of evidence, one row per year; overrides the single-year flags")
	year := flag.Int("year", 0, "forecast year")
	chla := flag.Float64("chla", 0, "previous summer mean chlorophyll-a")
	colour := flag.Float64("colour", 0, "previous summer mean colour")
	tp := flag.Float64("tp", 0, "previous summer mean total phosphorus")
	wind := flag.Float64("wind", 0, "forecast summer mean wind speed; full only")
	rain := flag.Float64("rain", 0, "forecast summer total rain; full only")
	sigma := flag.Float64("sigma", 0.15, "spread applied to the evidence")
	format := flag.String("format", "csv", "output format: csv or json")
	out := flag.String("out", "", "output file (default stdout)")
	flag.Parse()

	v, err := domain.ParseVariant(*variant)
	if err != nil {
		return err
	}
	if *format != "csv" && *format != "json" {
		return fmt.Errorf("unknown format %q", *format)
	}

	var evidence []domain.Evidence
	if *evidencePath != "" {
		evidence, err = readEvidence(*evidencePath, *sigma)
		if err != nil {
			return err
		}
	} else {
		if *year == 0 {
			flag.Usage()
			return fmt.Errorf("missing required flag: -year or -evidence")
		}
		evidence = []domain.Evidence{{
			Year: *year, ChlaPrevSummer: *chla, ColourPrevSummer: *colour, TPPrevSummer: *tp,
			WindSpeed: *wind, Rain: *rain, Sigma: *sigma,
		}}
	}

	reqs := make([]domain.PredictionRequest, len(evidence))
	for i, ev := range evidence {
		reqs[i] = domain.PredictionRequest{Variant: v, ModelPath: *model, SDPath: *sd, Evidence: ev}
	}

	// Logs go to stderr so stdout carries only results.
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	metrics := observability.NewMetrics()
	client := rscript.NewClient(*rscriptPath, *source, cfg.EngineTimeout, rscript.NewExecRunner(), metrics, logger)
	svc := forecast.New(client, nil, forecast.Defaults{}, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	forecasts, err := svc.ForecastBatch(ctx, reqs)
	if err != nil {
		return err
	}

	return csvio.WriteOutput(*out, func(w io.Writer) error {
		return write(w, *format, forecasts)
	})
}

func readEvidence(path string, sigma float64) ([]domain.Evidence, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open evidence: %w", err)
	}
	defer f.Close()
	ev, err := csvio.ReadEvidence(f, sigma)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ev, nil
}

func write(w io.Writer, format string, forecasts []domain.Forecast) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(forecasts)
	}
	var rows []domain.NodePrediction
	for _, f := range forecasts {
		rows = append(rows, f.Predictions...)
	}
	return csvio.WritePredictions(w, rows)
}
