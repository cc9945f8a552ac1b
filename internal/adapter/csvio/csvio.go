// Package csvio reads and writes the tabular files the forecasting tools
// exchange: daily observation series, seasonal aggregates, and per-node
// prediction tables. Missing values are written as "NA" and read back as NaN.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"
)

const missing = "NA"

// ParseValue parses a numeric cell. Empty cells and the usual missing-value
// markers yield NaN.
func ParseValue(s string) (float64, error) {
	switch strings.TrimSpace(s) {
	case "", "NA", "NaN", "nan", "NULL", "null":
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", s, err)
	}
	return v, nil
}

// FormatValue renders v in the shortest form that parses back exactly.
func FormatValue(v float64) string {
	if math.IsNaN(v) {
		return missing
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

type header map[string]int

func readHeader(r *csv.Reader) ([]string, header, error) {
	names, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, errors.New("empty file")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	names = slices.Clone(names)
	idx := make(header, len(names))
	for i, n := range names {
		n = strings.TrimSpace(strings.TrimPrefix(n, "\ufeff"))
		names[i] = n
		if _, dup := idx[n]; dup {
			return nil, nil, fmt.Errorf("duplicate column %q", n)
		}
		idx[n] = i
	}
	return names, idx, nil
}

func (h header) require(cols ...string) error {
	for _, c := range cols {
		if _, ok := h[c]; !ok {
			return fmt.Errorf("missing column %q", c)
		}
	}
	return nil
}

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true
	return cr
}
