package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrInvalidRequest is returned when a prediction request is missing inputs
// required by its variant.
var ErrInvalidRequest = errors.New("invalid prediction request")

// Variant selects which fitted network and engine function to call.
type Variant string

const (
	VariantFull        Variant = "full"
	VariantNoMet       Variant = "nomet"
	VariantOperational Variant = "operational"
)

// ParseVariant validates a variant name. Empty selects VariantFull.
func ParseVariant(s string) (Variant, error) {
	switch v := Variant(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return VariantFull, nil
	case VariantFull, VariantNoMet, VariantOperational:
		return v, nil
	default:
		return "", fmt.Errorf("%w: unknown variant %q", ErrInvalidRequest, s)
	}
}

// UsesMet reports whether the variant conditions on wind speed and rain.
func (v Variant) UsesMet() bool { return v == VariantFull }

// UsesSD reports whether the variant reads node standard deviations from a file.
func (v Variant) UsesSD() bool { return v == VariantFull || v == VariantNoMet }

// Evidence holds the observed or assumed inputs that condition a prediction.
type Evidence struct {
	Year             int     `json:"year"`
	ChlaPrevSummer   float64 `json:"chla_prev_summer"`
	ColourPrevSummer float64 `json:"colour_prev_summer"`
	TPPrevSummer     float64 `json:"tp_prev_summer"`
	WindSpeed        float64 `json:"wind_speed"` // NaN when not observed
	Rain             float64 `json:"rain"`
	Sigma            float64 `json:"sigma"`
}

type evidenceJSON struct {
	Year             int      `json:"year"`
	ChlaPrevSummer   *float64 `json:"chla_prev_summer"`
	ColourPrevSummer *float64 `json:"colour_prev_summer"`
	TPPrevSummer     *float64 `json:"tp_prev_summer"`
	WindSpeed        *float64 `json:"wind_speed"`
	Rain             *float64 `json:"rain"`
	Sigma            *float64 `json:"sigma"`
}

// MarshalJSON writes NaN inputs as null. Evidence read from tables carries
// NaN for met inputs the nomet and operational networks never see.
func (e Evidence) MarshalJSON() ([]byte, error) {
	return json.Marshal(evidenceJSON{
		Year:             e.Year,
		ChlaPrevSummer:   finiteOrNil(e.ChlaPrevSummer),
		ColourPrevSummer: finiteOrNil(e.ColourPrevSummer),
		TPPrevSummer:     finiteOrNil(e.TPPrevSummer),
		WindSpeed:        finiteOrNil(e.WindSpeed),
		Rain:             finiteOrNil(e.Rain),
		Sigma:            finiteOrNil(e.Sigma),
	})
}

// UnmarshalJSON reads null or absent inputs as NaN, so a full request
// without wind_speed or rain fails validation instead of conditioning on 0.
func (e *Evidence) UnmarshalJSON(data []byte) error {
	var raw evidenceJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = Evidence{
		Year:             raw.Year,
		ChlaPrevSummer:   nanIfNil(raw.ChlaPrevSummer),
		ColourPrevSummer: nanIfNil(raw.ColourPrevSummer),
		TPPrevSummer:     nanIfNil(raw.TPPrevSummer),
		WindSpeed:        nanIfNil(raw.WindSpeed),
		Rain:             nanIfNil(raw.Rain),
		Sigma:            nanIfNil(raw.Sigma),
	}
	return nil
}

// PredictionRequest is everything the engine needs for one call.
type PredictionRequest struct {
	Variant   Variant  `json:"variant"`
	ModelPath string   `json:"model_path"`
	SDPath    string   `json:"sd_path,omitempty"`
	Evidence  Evidence `json:"evidence"`
}

// Validate checks the inputs required by the request's variant.
func (r PredictionRequest) Validate() error {
	var problems []string
	switch r.Variant {
	case VariantFull, VariantNoMet, VariantOperational:
	default:
		problems = append(problems, fmt.Sprintf("unknown variant %q", r.Variant))
	}
	if r.ModelPath == "" {
		problems = append(problems, "model_path is required")
	}
	if r.Variant.UsesSD() && r.SDPath == "" {
		problems = append(problems, "sd_path is required for the "+string(r.Variant)+" network")
	}
	if r.Evidence.Year <= 0 {
		problems = append(problems, "year must be positive")
	}

	type input struct {
		name string
		v    float64
	}
	e := r.Evidence
	checks := []input{
		{"chla_prev_summer", e.ChlaPrevSummer},
		{"colour_prev_summer", e.ColourPrevSummer},
		{"tp_prev_summer", e.TPPrevSummer},
		{"sigma", e.Sigma},
	}
	if r.Variant.UsesMet() {
		checks = append(checks, input{"wind_speed", e.WindSpeed}, input{"rain", e.Rain})
	}
	for _, c := range checks {
		if math.IsNaN(c.v) || math.IsInf(c.v, 0) {
			problems = append(problems, c.name+" must be finite")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(problems, "; "))
	}
	return nil
}

// NodePrediction is one row of engine output for a single network node.
type NodePrediction struct {
	Year               int     `json:"year"`
	Node               string  `json:"node"`
	Threshold          float64 `json:"threshold"`
	ProbBelowThreshold float64 `json:"prob_below_threshold"`
	ProbAboveThreshold float64 `json:"prob_above_threshold"`
	ExpectedValue      float64 `json:"expected_value"`
	SD                 float64 `json:"sd"` // NaN for the operational network
	WFDClass           Class   `json:"WFD_class"`
}

// MarshalJSON writes NaN floats as null, which encoding/json cannot do itself.
func (p NodePrediction) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Year               int      `json:"year"`
		Node               string   `json:"node"`
		Threshold          *float64 `json:"threshold"`
		ProbBelowThreshold *float64 `json:"prob_below_threshold"`
		ProbAboveThreshold *float64 `json:"prob_above_threshold"`
		ExpectedValue      *float64 `json:"expected_value"`
		SD                 *float64 `json:"sd"`
		WFDClass           Class    `json:"WFD_class"`
	}{
		Year:               p.Year,
		Node:               p.Node,
		Threshold:          finiteOrNil(p.Threshold),
		ProbBelowThreshold: finiteOrNil(p.ProbBelowThreshold),
		ProbAboveThreshold: finiteOrNil(p.ProbAboveThreshold),
		ExpectedValue:      finiteOrNil(p.ExpectedValue),
		SD:                 finiteOrNil(p.SD),
		WFDClass:           p.WFDClass,
	})
}

// UnmarshalJSON reads null floats back as NaN.
func (p *NodePrediction) UnmarshalJSON(data []byte) error {
	var raw struct {
		Year               int      `json:"year"`
		Node               string   `json:"node"`
		Threshold          *float64 `json:"threshold"`
		ProbBelowThreshold *float64 `json:"prob_below_threshold"`
		ProbAboveThreshold *float64 `json:"prob_above_threshold"`
		ExpectedValue      *float64 `json:"expected_value"`
		SD                 *float64 `json:"sd"`
		WFDClass           *Class   `json:"WFD_class"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = NodePrediction{
		Year:               raw.Year,
		Node:               raw.Node,
		Threshold:          nanIfNil(raw.Threshold),
		ProbBelowThreshold: nanIfNil(raw.ProbBelowThreshold),
		ProbAboveThreshold: nanIfNil(raw.ProbAboveThreshold),
		ExpectedValue:      nanIfNil(raw.ExpectedValue),
		SD:                 nanIfNil(raw.SD),
		WFDClass:           ClassMissing,
	}
	if raw.WFDClass != nil {
		p.WFDClass = *raw.WFDClass
	}
	return nil
}

func finiteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func nanIfNil(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// AnnotatePredictions stamps each row with the forecast year and derives its
// WFD class from the row's own threshold and expected value. Rows with a
// missing threshold are left unclassified.
func AnnotatePredictions(year int, rows []NodePrediction) []NodePrediction {
	out := make([]NodePrediction, len(rows))
	for i, row := range rows {
		row.Year = year
		class, err := Discretize([]float64{row.Threshold}, row.ExpectedValue)
		if err != nil {
			class = ClassMissing
		}
		row.WFDClass = class
		out[i] = row
	}
	return out
}

// Predictor obtains per-node predictions from a fitted network.
type Predictor interface {
	Predict(ctx context.Context, req PredictionRequest) ([]NodePrediction, error)
}

// Forecast is a completed prediction run ready to be served or published.
type Forecast struct {
	ID          string           `json:"id"`
	Variant     Variant          `json:"variant"`
	Year        int              `json:"year"`
	Evidence    Evidence         `json:"evidence"`
	Predictions []NodePrediction `json:"predictions"`
	IssuedAt    time.Time        `json:"issued_at"`
}

// NewForecast wraps engine output and stamps it with the current time.
func NewForecast(req PredictionRequest, predictions []NodePrediction) Forecast {
	return Forecast{
		ID:          ForecastID(req),
		Variant:     req.Variant,
		Year:        req.Evidence.Year,
		Evidence:    req.Evidence,
		Predictions: predictions,
		IssuedAt:    clock.Now(),
	}
}

// ForecastID is a deterministic hash of the request, so reruns with the same
// model and evidence share an ID downstream.
func ForecastID(req PredictionRequest) string {
	e := req.Evidence
	input := fmt.Sprintf("%s|%s|%s|%d|%g|%g|%g|%g|%g|%g",
		req.Variant, req.ModelPath, req.SDPath, e.Year,
		e.ChlaPrevSummer, e.ColourPrevSummer, e.TPPrevSummer, e.WindSpeed, e.Rain, e.Sigma)
	hash := sha256.Sum256([]byte(input))
	return fmt.Sprintf("%s-%d-%s", req.Variant, e.Year, hex.EncodeToString(hash[:8]))
}

// Node returns the prediction for a node.
func (f Forecast) Node(name string) (NodePrediction, bool) {
	for _, p := range f.Predictions {
		if p.Node == name {
			return p, true
		}
	}
	return NodePrediction{}, false
}
