package csvio

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/couchcryptid/bloom-forecast-service/internal/domain"
)

var dateLayouts = []string{
	time.DateOnly,
	time.DateTime,
	"2006-01-02T15:04:05",
	time.RFC3339,
	"02/01/2006",
}

// ReadDaily loads a daily series. dateColumn names the date column; when
// empty the first column is used. Every other column is parsed as numeric.
func ReadDaily(r io.Reader, dateColumn string) (domain.DailyFrame, error) {
	cr := newReader(r)
	names, idx, err := readHeader(cr)
	if err != nil {
		return domain.DailyFrame{}, err
	}
	if dateColumn == "" {
		dateColumn = names[0]
	}
	if err := idx.require(dateColumn); err != nil {
		return domain.DailyFrame{}, err
	}
	dateIdx := idx[dateColumn]

	frame := domain.DailyFrame{Columns: make(map[string][]float64, len(names)-1)}
	for i, n := range names {
		if i != dateIdx {
			frame.Columns[n] = nil
		}
	}

	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.DailyFrame{}, fmt.Errorf("read row %d: %w", line, err)
		}

		date, err := parseDate(record[dateIdx])
		if err != nil {
			return domain.DailyFrame{}, fmt.Errorf("row %d: %w", line, err)
		}
		frame.Dates = append(frame.Dates, date)

		for i, n := range names {
			if i == dateIdx {
				continue
			}
			v, err := ParseValue(record[i])
			if err != nil {
				return domain.DailyFrame{}, fmt.Errorf("row %d column %q: %w", line, n, err)
			}
			frame.Columns[n] = append(frame.Columns[n], v)
		}
	}
	return frame, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}
