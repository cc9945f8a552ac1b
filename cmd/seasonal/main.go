// Command seasonal aggregates a daily observation CSV into summer (May-Oct)
// and optionally winter (Nov-Apr) seasons.
//
// Usage:
//
//	go run ./cmd/seasonal \
//	  -in data/vansjo_daily.csv \
//	  -agg rain=sum,TP=mean,chla=mean,colour=mean,cyano=max \
//	  -zero-as-missing rain \
//	  -out data/vansjo_summer.csv
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/couchcryptid/bloom-forecast-service/internal/adapter/csvio"
	"github.com/couchcryptid/bloom-forecast-service/internal/domain"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	in := flag.String("in", "", "daily CSV with a date column and numeric columns")
	dateCol := flag.String("date-column", "", "name of the date column (default: first column)")
	aggFlag := flag.String("agg", "", "comma-separated column=aggregation pairs (sum, mean, max, min); default covers the standard lake columns")
	zeroFlag := flag.String("zero-as-missing", "", "comma-separated columns whose zero aggregates are treated as missing")
	both := flag.Bool("both-seasons", false, "include winter rows")
	out := flag.String("out", "", "output file (default stdout)")
	flag.Parse()

	if *in == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -in")
	}

	aggs, err := parseAggregations(*aggFlag)
	if err != nil {
		return err
	}

	f, err := os.Open(*in)
	if err != nil {
		return err
	}
	defer f.Close()

	daily, err := csvio.ReadDaily(f, *dateCol)
	if err != nil {
		return fmt.Errorf("%s: %w", *in, err)
	}

	table, err := domain.DailyToSummerSeason(daily, domain.SeasonOptions{
		Aggregations:  aggs,
		ZeroAsMissing: splitList(*zeroFlag),
		BothSeasons:   *both,
	})
	if err != nil {
		return err
	}
	log.Printf("%d daily rows -> %d seasons, columns %v", len(daily.Dates), len(table.Rows), table.Columns)

	return csvio.WriteOutput(*out, func(w io.Writer) error {
		return csvio.WriteSeasonTable(w, table)
	})
}

// parseAggregations returns nil for an empty flag so the defaults apply.
func parseAggregations(s string) (map[string]domain.AggFunc, error) {
	pairs := splitList(s)
	if len(pairs) == 0 {
		return nil, nil
	}
	aggs := make(map[string]domain.AggFunc, len(pairs))
	for _, p := range pairs {
		col, name, ok := strings.Cut(p, "=")
		if !ok || col == "" {
			return nil, fmt.Errorf("invalid -agg entry %q: want column=aggregation", p)
		}
		fn, err := domain.ParseAggregation(name)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col, err)
		}
		aggs[strings.TrimSpace(col)] = fn
	}
	return aggs, nil
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
