package forecast

import (
	"fmt"
	"math"
	"slices"

	"github.com/couchcryptid/bloom-forecast-service/internal/domain"
)

// NodeScore summarises how well one node's WFD class was hindcast.
type NodeScore struct {
	Node                string  `json:"node"`
	Column              string  `json:"column"`
	Years               []int   `json:"years"`
	Skipped             []int   `json:"skipped,omitempty"` // years without an observed summer value
	ClassificationError float64 `json:"classification_error"`
}

// Evaluate compares predicted WFD classes with classes derived from observed
// summer aggregates. Each observation is discretized with the threshold of
// the prediction it is compared against. columns maps node name to the
// observed column; nodes without an entry are looked up under their own
// name. Nodes with no comparable year are omitted.
func Evaluate(preds []domain.NodePrediction, observed domain.SeasonTable, columns map[string]string) ([]NodeScore, error) {
	byNode := make(map[string][]domain.NodePrediction)
	for _, p := range preds {
		byNode[p.Node] = append(byNode[p.Node], p)
	}

	nodes := make([]string, 0, len(byNode))
	for n := range byNode {
		nodes = append(nodes, n)
	}
	slices.Sort(nodes)

	var scores []NodeScore
	for _, node := range nodes {
		column := node
		if c, ok := columns[node]; ok {
			column = c
		}

		score := NodeScore{Node: node, Column: column}
		var obs, pred []domain.Class
		for _, p := range byNode[node] {
			row, ok := observed.Summer(p.Year)
			value, has := row.Values[column]
			if !ok || !has || math.IsNaN(value) || math.IsNaN(p.Threshold) {
				score.Skipped = append(score.Skipped, p.Year)
				continue
			}
			class, err := domain.Discretize([]float64{p.Threshold}, value)
			if err != nil {
				return nil, fmt.Errorf("discretize %s %d: %w", node, p.Year, err)
			}
			obs = append(obs, class)
			pred = append(pred, p.WFDClass)
			score.Years = append(score.Years, p.Year)
		}
		if len(obs) == 0 {
			continue
		}

		ce, err := domain.ClassificationError(obs, pred)
		if err != nil {
			return nil, fmt.Errorf("score %s: %w", node, err)
		}
		score.ClassificationError = ce
		scores = append(scores, score)
	}
	return scores, nil
}
