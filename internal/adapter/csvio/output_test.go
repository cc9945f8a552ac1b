package csvio

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/bloom-forecast-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteOutput_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seasonal.csv")
	table := domain.SeasonTable{
		Columns: []string{"TP_mean"},
		Rows:    []domain.SeasonRow{{Year: 2020, Season: domain.SeasonSummer, Values: map[string]float64{"TP_mean": 31}}},
	}

	err := WriteOutput(path, func(w io.Writer) error { return WriteSeasonTable(w, table) })
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "TP_mean")
	assert.Contains(t, string(data), "2020")
}

func TestWriteOutput_MissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "out.csv")
	called := false

	err := WriteOutput(path, func(io.Writer) error { called = true; return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create output")
	assert.False(t, called)
}

func TestWriteOutput_WriteErrorWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	boom := errors.New("disk full")

	err := WriteOutput(path, func(io.Writer) error { return boom })
	require.ErrorIs(t, err, boom)
}

func TestWriteOutput_CloseErrorReported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")

	// Closing the file early makes the deferred close fail.
	err := WriteOutput(path, func(w io.Writer) error {
		return w.(*os.File).Close()
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close "+path)
}
