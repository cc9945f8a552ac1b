package rscript

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/couchcryptid/bloom-forecast-service/internal/adapter/csvio"
	"github.com/couchcryptid/bloom-forecast-service/internal/domain"
)

// Engine output columns.
const (
	colNode          = "node"
	colThreshold     = "threshold"
	colProbBelow     = "prob_below_threshold"
	colProbAbove     = "prob_above_threshold"
	colExpectedValue = "expected_value"
	colSD            = "sd"
)

var requiredColumns = []string{colNode, colThreshold, colProbBelow, colProbAbove, colExpectedValue}

// parsePredictions reads the CSV written by the driver script. Column order
// is taken from the header; "NA" and empty cells become NaN. When wantSD is
// set the sd column must be present.
func parsePredictions(out string, wantSD bool) ([]domain.NodePrediction, error) {
	r := csv.NewReader(strings.NewReader(out))
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("engine returned no output")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	required := requiredColumns
	if wantSD {
		required = append(append([]string{}, requiredColumns...), colSD)
	}
	for _, col := range required {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("engine output missing column %q", col)
		}
	}

	var rows []domain.NodePrediction
	for line := 2; ; line++ {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}

		row := domain.NodePrediction{Node: record[idx[colNode]], SD: math.NaN()}
		fields := []numericField{
			{colThreshold, &row.Threshold},
			{colProbBelow, &row.ProbBelowThreshold},
			{colProbAbove, &row.ProbAboveThreshold},
			{colExpectedValue, &row.ExpectedValue},
		}
		if _, ok := idx[colSD]; ok {
			fields = append(fields, numericField{colSD, &row.SD})
		}
		for _, f := range fields {
			v, err := csvio.ParseValue(record[idx[f.col]])
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", line, f.col, err)
			}
			*f.dst = v
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, errors.New("engine returned no prediction rows")
	}
	return rows, nil
}

type numericField struct {
	col string
	dst *float64
}
