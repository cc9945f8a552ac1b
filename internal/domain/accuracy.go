package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrLengthMismatch is returned when observed and predicted series differ in length.
	ErrLengthMismatch = errors.New("observed and predicted series have different lengths")

	// ErrEmptySeries is returned when there is nothing to score.
	ErrEmptySeries = errors.New("empty series")
)

// ClassificationError returns the proportion of positions where the predicted
// class differs from the observed one: 1 - matches/len(obs). The series must
// be aligned and of equal length. Missing classes never match, not even each
// other.
func ClassificationError(obs, pred []Class) (float64, error) {
	if len(obs) != len(pred) {
		return 0, fmt.Errorf("%w: %d observed, %d predicted", ErrLengthMismatch, len(obs), len(pred))
	}
	if len(obs) == 0 {
		return 0, ErrEmptySeries
	}

	var right int
	for i := range obs {
		if obs[i].IsMissing() || pred[i].IsMissing() {
			continue
		}
		if obs[i] == pred[i] {
			right++
		}
	}
	return 1 - float64(right)/float64(len(obs)), nil
}
