// Command hindcast scores past predictions against observed summer
// conditions. Predictions are a CSV written by cmd/forecast; observations
// are either daily data, aggregated here with the default seasonal
// aggregations, or an already aggregated summer table.
//
// Usage:
//
//	go run ./cmd/hindcast \
//	  -predictions predictions.csv \
//	  -daily data/vansjo_daily.csv -zero-as-missing rain \
//	  -map chla=chl-a \
//	  -max-error 0.3
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/couchcryptid/bloom-forecast-service/internal/adapter/csvio"
	"github.com/couchcryptid/bloom-forecast-service/internal/domain"
	"github.com/couchcryptid/bloom-forecast-service/internal/forecast"
)

func main() {
	predPath := flag.String("predictions", "", "prediction CSV (year,node,threshold,...,WFD_class)")
	dailyPath := flag.String("daily", "", "daily observation CSV")
	seasonalPath := flag.String("seasonal", "", "summer table CSV, instead of -daily")
	zero := flag.String("zero-as-missing", "", "comma-separated columns whose zero aggregates are missing (with -daily)")
	mapping := flag.String("map", "", "comma-separated node=column pairs where names differ")
	maxError := flag.Float64("max-error", 1, "fail when any node's classification error exceeds this")
	flag.Parse()

	if *predPath == "" || (*dailyPath == "") == (*seasonalPath == "") {
		flag.Usage()
		os.Exit(2)
	}

	if code := run(*predPath, *dailyPath, *seasonalPath, *zero, *mapping, *maxError); code != 0 {
		os.Exit(code)
	}
}

func run(predPath, dailyPath, seasonalPath, zero, mapping string, maxError float64) int {
	preds, err := loadPredictions(predPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load predictions: %v\n", err)
		return 1
	}

	observed, err := loadObserved(dailyPath, seasonalPath, splitList(zero))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load observations: %v\n", err)
		return 1
	}

	columns, err := parseMapping(mapping)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	scores, err := forecast.Evaluate(preds, observed, columns)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: evaluate: %v\n", err)
		return 1
	}
	if len(scores) == 0 {
		fmt.Fprintln(os.Stderr, "FATAL: no node has both predictions and observations")
		return 1
	}

	fmt.Println("=== Hindcast Classification Error ===")
	fmt.Println()
	fmt.Printf("Predictions: %d rows, observed summers: %d\n\n", len(preds), len(observed.Rows))

	allPassed := true
	for _, s := range scores {
		status := "\033[32mPASS\033[0m"
		if s.ClassificationError > maxError {
			status = "\033[31mFAIL\033[0m"
			allPassed = false
		}
		fmt.Printf("  %-10s %-10s %2d years  error %.3f  %s\n", s.Node, s.Column, len(s.Years), s.ClassificationError, status)
		if len(s.Skipped) > 0 {
			fmt.Printf("  %-10s skipped years without observations: %v\n", "", s.Skipped)
		}
	}

	if allPassed {
		fmt.Println("\nAll nodes within tolerance.")
		return 0
	}
	fmt.Printf("\nHindcast FAILED: error above %.3f.\n", maxError)
	return 1
}

func loadPredictions(path string) ([]domain.NodePrediction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return csvio.ReadPredictions(f)
}

func loadObserved(dailyPath, seasonalPath string, zeroAsMissing []string) (domain.SeasonTable, error) {
	if seasonalPath != "" {
		f, err := os.Open(seasonalPath)
		if err != nil {
			return domain.SeasonTable{}, err
		}
		defer f.Close()
		return csvio.ReadSeasonTable(f)
	}

	f, err := os.Open(dailyPath)
	if err != nil {
		return domain.SeasonTable{}, err
	}
	defer f.Close()
	daily, err := csvio.ReadDaily(f, "")
	if err != nil {
		return domain.SeasonTable{}, err
	}
	return domain.DailyToSummerSeason(daily, domain.SeasonOptions{ZeroAsMissing: zeroAsMissing})
}

func parseMapping(s string) (map[string]string, error) {
	columns := make(map[string]string)
	for _, pair := range splitList(s) {
		node, col, ok := strings.Cut(pair, "=")
		if !ok || node == "" || col == "" {
			return nil, fmt.Errorf("invalid -map entry %q: want node=column", pair)
		}
		columns[strings.TrimSpace(node)] = strings.TrimSpace(col)
	}
	return columns, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
