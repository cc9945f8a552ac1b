package domain

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrUnorderedDates is returned when daily rows are not in chronological order.
var ErrUnorderedDates = errors.New("daily rows are not in chronological order")

// Season is one half of the hydrological year.
type Season int

const (
	// SeasonWinter covers November of the previous year through April.
	SeasonWinter Season = iota
	// SeasonSummer covers May through October.
	SeasonSummer
)

func (s Season) String() string {
	if s == SeasonSummer {
		return "summer"
	}
	return "winter"
}

// MarshalText encodes the season name.
func (s Season) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText decodes a season name.
func (s *Season) UnmarshalText(text []byte) error {
	v, err := ParseSeason(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseSeason accepts "summer" or "winter" in any case.
func ParseSeason(name string) (Season, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "summer":
		return SeasonSummer, nil
	case "winter":
		return SeasonWinter, nil
	default:
		return SeasonWinter, fmt.Errorf("unknown season %q", name)
	}
}

// SeasonOf returns the season a date falls in and the year the season is
// labelled with. Winter is labelled with the year of its second half, so
// 15 Dec 1999 belongs to winter 2000.
func SeasonOf(t time.Time) (Season, int) {
	switch m := t.Month(); {
	case m >= time.May && m <= time.October:
		return SeasonSummer, t.Year()
	case m >= time.November:
		return SeasonWinter, t.Year() + 1
	default:
		return SeasonWinter, t.Year()
	}
}

// seasonIndex orders seasons chronologically: winter Y precedes summer Y.
func seasonIndex(s Season, year int) int { return year*2 + int(s) }

func seasonFromIndex(idx int) (Season, int) {
	return Season(idx % 2), idx / 2
}

// AggFunc reduces the daily values of one column within a season.
type AggFunc func(values []float64) float64

// NanSum sums the non-NaN values. A season without data sums to 0.
func NanSum(values []float64) float64 {
	return floats.Sum(dropNaN(values))
}

// NanMean averages the non-NaN values, or returns NaN when there are none.
func NanMean(values []float64) float64 {
	v := dropNaN(values)
	if len(v) == 0 {
		return math.NaN()
	}
	return stat.Mean(v, nil)
}

// NanMax returns the largest non-NaN value, or NaN when there are none.
func NanMax(values []float64) float64 {
	v := dropNaN(values)
	if len(v) == 0 {
		return math.NaN()
	}
	return floats.Max(v)
}

// NanMin returns the smallest non-NaN value, or NaN when there are none.
func NanMin(values []float64) float64 {
	v := dropNaN(values)
	if len(v) == 0 {
		return math.NaN()
	}
	return floats.Min(v)
}

func dropNaN(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// DefaultAggregations returns the aggregation used for each of the standard
// lake monitoring columns: precipitation is summed, concentrations and wind
// are averaged, and cyanobacteria biomass takes the seasonal maximum.
func DefaultAggregations() map[string]AggFunc {
	return map[string]AggFunc{
		"rain":       NanSum,
		"colour":     NanMean,
		"TP":         NanMean,
		"chla":       NanMean,
		"chl-a":      NanMean,
		"wind_speed": NanMean,
		"cyano":      NanMax,
	}
}

// ParseAggregation resolves an aggregation by name: sum, mean, max or min.
func ParseAggregation(name string) (AggFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sum", "nansum":
		return NanSum, nil
	case "mean", "nanmean":
		return NanMean, nil
	case "max", "nanmax":
		return NanMax, nil
	case "min", "nanmin":
		return NanMin, nil
	default:
		return nil, fmt.Errorf("unknown aggregation %q", name)
	}
}

// DailyFrame holds daily observations: one date per row and any number of
// equally long named columns. NaN marks a missing value.
type DailyFrame struct {
	Dates   []time.Time
	Columns map[string][]float64
}

// SeasonOptions controls DailyToSummerSeason.
type SeasonOptions struct {
	// Aggregations maps column name to its seasonal aggregation. Nil means
	// DefaultAggregations. Columns without an entry are dropped.
	Aggregations map[string]AggFunc

	// ZeroAsMissing lists columns whose zero-valued aggregates become NaN.
	ZeroAsMissing []string

	// BothSeasons returns winter rows alongside summer rows.
	BothSeasons bool
}

// SeasonRow is one aggregated season.
type SeasonRow struct {
	Year   int                `json:"year"`
	Season Season             `json:"season"`
	Values map[string]float64 `json:"values"`
}

// SeasonTable is the result of a seasonal aggregation, ordered chronologically.
type SeasonTable struct {
	Columns []string
	Rows    []SeasonRow
}

// Column returns the values of one column in row order.
func (t SeasonTable) Column(name string) []float64 {
	out := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		v, ok := r.Values[name]
		if !ok {
			v = math.NaN()
		}
		out[i] = v
	}
	return out
}

// Years returns the year label of each row.
func (t SeasonTable) Years() []int {
	out := make([]int, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Year
	}
	return out
}

// Summer returns the summer row for year.
func (t SeasonTable) Summer(year int) (SeasonRow, bool) {
	for _, r := range t.Rows {
		if r.Year == year && r.Season == SeasonSummer {
			return r, true
		}
	}
	return SeasonRow{}, false
}

// DailyToSummerSeason aggregates daily data into 6-month seasons (summer
// May-Oct, winter Nov-Apr) and, unless opts.BothSeasons is set, returns only
// the summer rows labelled by year. Every season between the first and last
// date is present, so gaps in the record appear as seasons aggregated over
// no data.
func DailyToSummerSeason(daily DailyFrame, opts SeasonOptions) (SeasonTable, error) {
	for name, col := range daily.Columns {
		if len(col) != len(daily.Dates) {
			return SeasonTable{}, fmt.Errorf("column %q has %d values for %d dates", name, len(col), len(daily.Dates))
		}
	}
	for i := 1; i < len(daily.Dates); i++ {
		if daily.Dates[i].Before(daily.Dates[i-1]) {
			return SeasonTable{}, fmt.Errorf("%w: row %d (%s) precedes row %d", ErrUnorderedDates,
				i, daily.Dates[i].Format(time.DateOnly), i-1)
		}
	}

	aggs := opts.Aggregations
	if aggs == nil {
		aggs = DefaultAggregations()
	}
	columns := make([]string, 0, len(aggs))
	for name := range aggs {
		if _, ok := daily.Columns[name]; ok {
			columns = append(columns, name)
		}
	}
	slices.Sort(columns)

	table := SeasonTable{Columns: columns}
	if len(daily.Dates) == 0 {
		return table, nil
	}

	zeroAsMissing := make(map[string]bool, len(opts.ZeroAsMissing))
	for _, name := range opts.ZeroAsMissing {
		zeroAsMissing[name] = true
	}

	first := seasonIndex(SeasonOf(daily.Dates[0]))
	last := seasonIndex(SeasonOf(daily.Dates[len(daily.Dates)-1]))

	row := 0
	for idx := first; idx <= last; idx++ {
		start := row
		for row < len(daily.Dates) && seasonIndex(SeasonOf(daily.Dates[row])) == idx {
			row++
		}

		season, year := seasonFromIndex(idx)
		if season != SeasonSummer && !opts.BothSeasons {
			continue
		}

		values := make(map[string]float64, len(columns))
		for _, name := range columns {
			v := aggs[name](daily.Columns[name][start:row])
			if zeroAsMissing[name] && v == 0 {
				v = math.NaN()
			}
			values[name] = v
		}
		table.Rows = append(table.Rows, SeasonRow{Year: year, Season: season, Values: values})
	}
	return table, nil
}
