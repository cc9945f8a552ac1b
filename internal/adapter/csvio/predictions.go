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

// PredictionColumns is the column order of a prediction table.
var PredictionColumns = []string{
	"year", "node", "threshold", "prob_below_threshold", "prob_above_threshold",
	"expected_value", "sd", "WFD_class",
}

// WritePredictions writes prediction rows in PredictionColumns order.
// Missing classes and NaN values are written as NA.
func WritePredictions(w io.Writer, preds []domain.NodePrediction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(PredictionColumns); err != nil {
		return err
	}
	for _, p := range preds {
		class := missing
		if !p.WFDClass.IsMissing() {
			class = p.WFDClass.String()
		}
		record := []string{
			strconv.Itoa(p.Year),
			p.Node,
			FormatValue(p.Threshold),
			FormatValue(p.ProbBelowThreshold),
			FormatValue(p.ProbAboveThreshold),
			FormatValue(p.ExpectedValue),
			FormatValue(p.SD),
			class,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadPredictions reads a prediction table such as a hindcast run. The sd
// and WFD_class columns are optional; a missing WFD_class is derived from
// threshold and expected_value.
func ReadPredictions(r io.Reader) ([]domain.NodePrediction, error) {
	cr := newReader(r)
	_, idx, err := readHeader(cr)
	if err != nil {
		return nil, err
	}
	if err := idx.require("year", "node", "threshold", "expected_value"); err != nil {
		return nil, err
	}
	classIdx, hasClass := idx["WFD_class"]

	var preds []domain.NodePrediction
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
		p := domain.NodePrediction{Node: record[idx["node"]]}
		fields := map[string]*float64{
			"threshold":            &p.Threshold,
			"prob_below_threshold": &p.ProbBelowThreshold,
			"prob_above_threshold": &p.ProbAboveThreshold,
			"expected_value":       &p.ExpectedValue,
			"sd":                   &p.SD,
		}
		for col, dst := range fields {
			i, ok := idx[col]
			if !ok {
				*dst = math.NaN()
				continue
			}
			if *dst, err = ParseValue(record[i]); err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", line, col, err)
			}
		}

		if !hasClass {
			p = domain.AnnotatePredictions(year, []domain.NodePrediction{p})[0]
		} else {
			p.Year = year
			if p.WFDClass, err = domain.ParseClass(record[classIdx]); err != nil {
				return nil, fmt.Errorf("row %d: %w", line, err)
			}
		}
		preds = append(preds, p)
	}
	return preds, nil
}
