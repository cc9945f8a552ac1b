package csvio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/couchcryptid/bloom-forecast-service/internal/domain"
)

// ReadEvidence reads one evidence set per row with the columns year,
// chla_prev_summer, colour_prev_summer and tp_prev_summer. The wind_speed,
// rain and sigma columns are optional; sigma falls back to defaultSigma when
// absent or NA.
func ReadEvidence(r io.Reader, defaultSigma float64) ([]domain.Evidence, error) {
	cr := newReader(r)
	_, idx, err := readHeader(cr)
	if err != nil {
		return nil, err
	}
	if err := idx.require("year", "chla_prev_summer", "colour_prev_summer", "tp_prev_summer"); err != nil {
		return nil, err
	}

	var out []domain.Evidence
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}

		year, err := strconv.Atoi(record[idx["year"]])
		if err != nil {
			return nil, fmt.Errorf("row %d: parse year: %w", line, err)
		}
		ev := domain.Evidence{Year: year, Sigma: math.NaN()}
		fields := []struct {
			col string
			dst *float64
		}{
			{"chla_prev_summer", &ev.ChlaPrevSummer},
			{"colour_prev_summer", &ev.ColourPrevSummer},
			{"tp_prev_summer", &ev.TPPrevSummer},
			{"wind_speed", &ev.WindSpeed},
			{"rain", &ev.Rain},
			{"sigma", &ev.Sigma},
		}
		for _, f := range fields {
			i, ok := idx[f.col]
			if !ok {
				continue
			}
			if *f.dst, err = ParseValue(record[i]); err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", line, f.col, err)
			}
		}
		if math.IsNaN(ev.Sigma) {
			ev.Sigma = defaultSigma
		}
		out = append(out, ev)
	}
	return out, nil
}
