// Package report renders a batch result as a machine-readable summary for
// external consumers.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/walksim/internal/game/batch"
)

// Summary is the serializable view of a batch result. Trajectories are never
// included.
type Summary struct {
	ID                string         `yaml:"id" json:"id"`
	Strategy          string         `yaml:"strategy" json:"strategy"`
	BaseSeed          int64          `yaml:"base_seed" json:"base_seed"`
	Target            int            `yaml:"target" json:"target"`
	TurnBudget        int            `yaml:"turn_budget" json:"turn_budget"`
	Trials            int            `yaml:"trials" json:"trials"`
	Successes         int            `yaml:"successes" json:"successes"`
	SuccessRate       float64        `yaml:"success_rate" json:"success_rate"`
	MeanFinalPosition float64        `yaml:"mean_final_position" json:"mean_final_position"`
	MeanFirstHitTurn  float64        `yaml:"mean_first_hit_turn" json:"mean_first_hit_turn"`
	TotalResets       int            `yaml:"total_resets" json:"total_resets"`
	FinalPositions    map[string]int `yaml:"final_positions,omitempty" json:"final_positions,omitempty"`
}

// Summarize builds a Summary from res. FinalPositions buckets trials by final
// position in steps of bucket; bucket <= 0 omits the histogram.
func Summarize(res batch.Result, bucket int) Summary {
	s := Summary{
		ID:                res.ID,
		Strategy:          res.Strategy.String(),
		BaseSeed:          res.BaseSeed,
		Target:            res.Target,
		TurnBudget:        res.TurnBudget,
		Trials:            res.TrialCount,
		Successes:         res.SuccessCount,
		SuccessRate:       res.SuccessRate,
		MeanFinalPosition: res.MeanFinalPosition,
		MeanFirstHitTurn:  res.MeanFirstHitTurn,
		TotalResets:       res.TotalResets,
	}
	if bucket > 0 && len(res.Trials) > 0 {
		s.FinalPositions = make(map[string]int)
		for _, t := range res.Trials {
			lo := floorDiv(t.FinalPosition, bucket) * bucket
			s.FinalPositions[fmt.Sprintf("%d-%d", lo, lo+bucket-1)]++
		}
	}
	return s
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// Write encodes s to w as "yaml" or "json".
//
// Postcondition: Returns an error for any other format without writing.
func Write(w io.Writer, s Summary, format string) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("encoding yaml report: %w", err)
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("encoding json report: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}
