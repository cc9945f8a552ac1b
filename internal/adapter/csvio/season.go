package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/couchcryptid/bloom-forecast-service/internal/domain"
)

const (
	colYear   = "year"
	colSeason = "season"
)

// WriteSeasonTable writes one row per season. The season column is included
// only when the table holds winter rows, so a summer-only table is keyed by
// year alone.
func WriteSeasonTable(w io.Writer, t domain.SeasonTable) error {
	withSeason := false
	for _, r := range t.Rows {
		if r.Season != domain.SeasonSummer {
			withSeason = true
			break
		}
	}

	cw := csv.NewWriter(w)
	header := []string{colYear}
	if withSeason {
		header = append(header, colSeason)
	}
	if err := cw.Write(append(header, t.Columns...)); err != nil {
		return err
	}

	for _, r := range t.Rows {
		record := []string{strconv.Itoa(r.Year)}
		if withSeason {
			record = append(record, r.Season.String())
		}
		for _, c := range t.Columns {
			v, ok := r.Values[c]
			if !ok {
				v = math.NaN()
			}
			record = append(record, FormatValue(v))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadSeasonTable reads a table written by WriteSeasonTable. Rows without a
// season column are summer rows.
func ReadSeasonTable(r io.Reader) (domain.SeasonTable, error) {
	cr := newReader(r)
	names, idx, err := readHeader(cr)
	if err != nil {
		return domain.SeasonTable{}, err
	}
	if err := idx.require(colYear); err != nil {
		return domain.SeasonTable{}, err
	}
	seasonIdx, withSeason := idx[colSeason]

	var t domain.SeasonTable
	for _, n := range names {
		if n != colYear && n != colSeason {
			t.Columns = append(t.Columns, n)
		}
	}

	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.SeasonTable{}, fmt.Errorf("read row %d: %w", line, err)
		}

		year, err := strconv.Atoi(record[idx[colYear]])
		if err != nil {
			return domain.SeasonTable{}, fmt.Errorf("row %d: parse year: %w", line, err)
		}
		row := domain.SeasonRow{Year: year, Season: domain.SeasonSummer, Values: make(map[string]float64, len(t.Columns))}
		if withSeason {
			if row.Season, err = domain.ParseSeason(record[seasonIdx]); err != nil {
				return domain.SeasonTable{}, fmt.Errorf("row %d: %w", line, err)
			}
		}
		for _, c := range t.Columns {
			v, err := ParseValue(record[idx[c]])
			if err != nil {
				return domain.SeasonTable{}, fmt.Errorf("row %d column %q: %w", line, c, err)
			}
			row.Values[c] = v
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}
