// Package types contains report rows shared by the service and the CLI.
package types

import (
	"encoding/json"
	"math"

	"github.com/okian/nhpp/internal/domain/model"
)

// Summary is the per-candidate report row of a batch fit.
type Summary struct {
	Rank      int       `json:"rank"`
	Name      string    `json:"name"`
	Equation  string    `json:"equation"`
	Theta     []float64 `json:"theta"`
	StdErr    []float64 `json:"std_err,omitempty"`
	NLL       float64   `json:"nll"`
	AICc      float64   `json:"aicc"`
	Converged bool      `json:"converged"`
	Repaired  bool      `json:"repaired"`
	Reason    string    `json:"reason,omitempty"`
}

// NewSummary builds a row from a fit. rank is 0 for unranked fits.
func NewSummary(res *model.FitResult, rank int) Summary {
	s := Summary{
		Rank:      rank,
		Name:      res.Name,
		Equation:  res.Equation,
		Theta:     append([]float64(nil), res.Theta...),
		NLL:       res.NLL,
		AICc:      math.NaN(),
		Converged: res.Converged,
		Reason:    res.Reason,
	}
	if res.Uncertainty != nil {
		s.StdErr = append([]float64(nil), res.Uncertainty.StdErr...)
		s.Repaired = res.Uncertainty.Repaired
	}
	if res.Criteria != nil && res.Criteria.AICcValid {
		s.AICc = res.Criteria.AICc
	}
	return s
}

// MarshalJSON renders an undefined AICc as null.
func (s Summary) MarshalJSON() ([]byte, error) {
	type row Summary
	out := struct {
		row
		AICc *float64 `json:"aicc"`
	}{row: row(s)}
	if !math.IsNaN(s.AICc) && !math.IsInf(s.AICc, 0) {
		v := s.AICc
		out.AICc = &v
	}
	return json.Marshal(out)
}
