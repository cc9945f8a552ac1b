package csvio

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/bloom-forecast-service/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValue(t *testing.T) {
	for _, s := range []string{"", "NA", " NaN ", "nan", "null"} {
		v, err := ParseValue(s)
		require.NoError(t, err, s)
		assert.True(t, math.IsNaN(v), s)
	}

	v, err := ParseValue(" 29.5")
	require.NoError(t, err)
	assert.Equal(t, 29.5, v)

	_, err = ParseValue("high")
	require.Error(t, err)
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "NA", FormatValue(math.NaN()))
	assert.Equal(t, "29.5", FormatValue(29.5))
	assert.Equal(t, "0.1", FormatValue(0.1))
	assert.Equal(t, "410", FormatValue(410))
}

func TestReadDaily(t *testing.T) {
	in := "\ufeffDate,rain,TP\n" +
		"2000-05-01,1.5,NA\n" +
		"2000-05-02,,30\n" +
		"2000-05-03 00:00:00,0,28.5\n"

	frame, err := ReadDaily(strings.NewReader(in), "")
	require.NoError(t, err)

	require.Len(t, frame.Dates, 3)
	assert.Equal(t, time.Date(2000, time.May, 3, 0, 0, 0, 0, time.UTC), frame.Dates[2])
	want := map[string][]float64{
		"rain": {1.5, math.NaN(), 0},
		"TP":   {math.NaN(), 30, 28.5},
	}
	assert.Empty(t, cmp.Diff(want, frame.Columns, cmpopts.EquateNaNs()))
}

func TestReadDaily_NamedDateColumn(t *testing.T) {
	in := "rain,day\n2.0,01/06/2001\n"

	frame, err := ReadDaily(strings.NewReader(in), "day")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2001, time.June, 1, 0, 0, 0, 0, time.UTC), frame.Dates[0])
	assert.Equal(t, []float64{2.0}, frame.Columns["rain"])
}

func TestReadDaily_Errors(t *testing.T) {
	tests := []struct {
		name, in, dateCol, want string
	}{
		{name: "empty", in: "", want: "empty file"},
		{name: "missing date column", in: "date,rain\n", dateCol: "day", want: `missing column "day"`},
		{name: "bad date", in: "date,rain\nyesterday,1\n", want: "row 2"},
		{name: "bad value", in: "date,rain\n2000-01-01,lots\n", want: `column "rain"`},
		{name: "duplicate column", in: "date,rain,rain\n", want: "duplicate column"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadDaily(strings.NewReader(tt.in), tt.dateCol)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSeasonTable_SummerOnly(t *testing.T) {
	table := domain.SeasonTable{
		Columns: []string{"TP", "rain"},
		Rows: []domain.SeasonRow{
			{Year: 2000, Season: domain.SeasonSummer, Values: map[string]float64{"TP": 28.25, "rain": 410}},
			{Year: 2001, Season: domain.SeasonSummer, Values: map[string]float64{"TP": math.NaN()}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteSeasonTable(&buf, table))
	assert.Equal(t, "year,TP,rain\n2000,28.25,410\n2001,NA,NA\n", buf.String())

	got, err := ReadSeasonTable(&buf)
	require.NoError(t, err)
	assert.Equal(t, table.Columns, got.Columns)
	require.Len(t, got.Rows, 2)
	assert.Equal(t, domain.SeasonSummer, got.Rows[1].Season)
	assert.True(t, math.IsNaN(got.Rows[1].Values["rain"]))
}

func TestSeasonTable_BothSeasons(t *testing.T) {
	table := domain.SeasonTable{
		Columns: []string{"rain"},
		Rows: []domain.SeasonRow{
			{Year: 2000, Season: domain.SeasonWinter, Values: map[string]float64{"rain": 300}},
			{Year: 2000, Season: domain.SeasonSummer, Values: map[string]float64{"rain": 410}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteSeasonTable(&buf, table))
	assert.Equal(t, "year,season,rain\n2000,winter,300\n2000,summer,410\n", buf.String())

	got, err := ReadSeasonTable(&buf)
	require.NoError(t, err)
	assert.Equal(t, table, got)
}

func TestReadSeasonTable_Errors(t *testing.T) {
	_, err := ReadSeasonTable(strings.NewReader("TP\n1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing column "year"`)

	_, err = ReadSeasonTable(strings.NewReader("year,season,TP\n2000,spring,1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spring")
}

func TestPredictions_RoundTrip(t *testing.T) {
	preds := []domain.NodePrediction{
		{Year: 2020, Node: "TP", Threshold: 29.5, ProbBelowThreshold: 0.35, ProbAboveThreshold: 0.65, ExpectedValue: 31.2, SD: math.NaN(), WFDClass: 1},
		{Year: 2020, Node: "cyano", Threshold: 1, ProbBelowThreshold: 0.8, ProbAboveThreshold: 0.2, ExpectedValue: math.NaN(), SD: 0.5, WFDClass: domain.ClassMissing},
	}

	var buf bytes.Buffer
	require.NoError(t, WritePredictions(&buf, preds))
	assert.Equal(t,
		"year,node,threshold,prob_below_threshold,prob_above_threshold,expected_value,sd,WFD_class\n"+
			"2020,TP,29.5,0.35,0.65,31.2,NA,1\n"+
			"2020,cyano,1,0.8,0.2,NA,0.5,NA\n",
		buf.String())

	got, err := ReadPredictions(&buf)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(preds, got, cmpopts.EquateNaNs()))
}

func TestReadPredictions_DerivesClass(t *testing.T) {
	in := "year,node,threshold,expected_value\n2019,TP,29.5,25\n2020,TP,29.5,35\n"

	got, err := ReadPredictions(strings.NewReader(in))
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, domain.Class(0), got[0].WFDClass)
	assert.Equal(t, domain.Class(1), got[1].WFDClass)
	assert.Equal(t, 2020, got[1].Year)
	assert.True(t, math.IsNaN(got[1].SD))
}

func TestReadPredictions_Errors(t *testing.T) {
	_, err := ReadPredictions(strings.NewReader("node,threshold,expected_value\nTP,1,2\n"))
	require.Error(t, err)

	_, err = ReadPredictions(strings.NewReader("year,node,threshold,expected_value,WFD_class\n2020,TP,1,2,0.5\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
}

func TestReadEvidence(t *testing.T) {
	in := "year,chla_prev_summer,colour_prev_summer,tp_prev_summer,rain,sigma\n" +
		"2019,17.2,51,27.8,410,NA\n" +
		"2020,15,48.5,30.1,380,0.3\n"

	got, err := ReadEvidence(strings.NewReader(in), 0.15)
	require.NoError(t, err)

	want := []domain.Evidence{
		{Year: 2019, ChlaPrevSummer: 17.2, ColourPrevSummer: 51, TPPrevSummer: 27.8, Rain: 410, Sigma: 0.15},
		{Year: 2020, ChlaPrevSummer: 15, ColourPrevSummer: 48.5, TPPrevSummer: 30.1, Rain: 380, Sigma: 0.3},
	}
	assert.Equal(t, want, got)
}

func TestReadEvidence_MissingColumn(t *testing.T) {
	_, err := ReadEvidence(strings.NewReader("year,chla_prev_summer\n2020,1\n"), 0.15)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing column "colour_prev_summer"`)
}

func TestReadEvidence_NAMetSerializes(t *testing.T) {
	in := "year,chla_prev_summer,colour_prev_summer,tp_prev_summer,wind_speed,rain,sigma\n" +
		"2020,15,48.5,30.1,NA,NA,0.3\n"

	evs, err := ReadEvidence(strings.NewReader(in), 0.15)
	require.NoError(t, err)
	require.Len(t, evs, 1)

	req := domain.PredictionRequest{Variant: domain.VariantNoMet, ModelPath: "nomet.rds", SDPath: "sd.csv", Evidence: evs[0]}
	require.NoError(t, req.Validate())

	data, err := json.Marshal(domain.NewForecast(req, nil))
	require.NoError(t, err)

	var got domain.Forecast
	require.NoError(t, json.Unmarshal(data, &got))
	assert.True(t, math.IsNaN(got.Evidence.WindSpeed))
	assert.Equal(t, 30.1, got.Evidence.TPPrevSummer)
}
