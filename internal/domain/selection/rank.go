package selection

import (
	"fmt"
	"math"
	"sort"

	"github.com/okian/nhpp/internal/domain/model"
	"github.com/okian/nhpp/pkg/metrics"
)

// Ranked is one ranked candidate.
type Ranked struct {
	Rank   int
	Result *model.FitResult
	Score  float64
	// Delta is Score minus the best score.
	Delta float64
	// Weight is the Akaike weight exp(-Delta/2), normalised.
	Weight float64
}

// Excluded is a candidate left out of the ranking.
type Excluded struct {
	Result *model.FitResult
	Reason string
}

// Ranking orders fits of the same series by an information criterion. It
// is a view; it does not own or change the results.
type Ranking struct {
	Criterion Criterion
	Entries   []Ranked
	Excluded  []Excluded
}

// Best returns the top-ranked result, or nil.
func (r *Ranking) Best() *model.FitResult {
	if r == nil || len(r.Entries) == 0 {
		return nil
	}
	return r.Entries[0].Result
}

// Selector ranks fit results.
type Selector struct {
	criterion           Criterion
	includeNonConverged bool
}

// Option configures a Selector.
type Option func(*Selector)

// WithCriterion sets the ranking criterion. The default is AICc.
func WithCriterion(c Criterion) Option {
	return func(s *Selector) {
		if c != "" {
			s.criterion = c
		}
	}
}

// IncludeNonConverged ranks non-converged fits instead of excluding them.
func IncludeNonConverged(include bool) Option {
	return func(s *Selector) {
		s.includeNonConverged = include
	}
}

// NewSelector returns a Selector.
func NewSelector(opts ...Option) *Selector {
	s := &Selector{criterion: AICc}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Criterion returns the ranking criterion.
func (s *Selector) Criterion() Criterion { return s.criterion }

// Rank orders results by ascending score. Ties keep input order. Results
// that cannot be scored are listed in Excluded with a reason.
func (s *Selector) Rank(results []*model.FitResult) (*Ranking, error) {
	r := &Ranking{Criterion: s.criterion}
	for _, res := range results {
		if res == nil {
			r.Excluded = append(r.Excluded, Excluded{Reason: "no result"})
			continue
		}
		if !res.Converged && !s.includeNonConverged {
			r.Excluded = append(r.Excluded, Excluded{Result: res, Reason: "not converged: " + res.Reason})
			continue
		}
		if math.IsNaN(res.NLL) || math.IsInf(res.NLL, 0) {
			r.Excluded = append(r.Excluded, Excluded{Result: res, Reason: fmt.Sprintf("non-finite NLL %g", res.NLL)})
			continue
		}
		c, err := Compute(res.NLL, res.NumParams(), res.NumEvents())
		score, ok := Score(c, s.criterion)
		if !ok {
			metrics.RecordDegenerateCorrection()
			r.Excluded = append(r.Excluded, Excluded{Result: res, Reason: err.Error()})
			continue
		}
		r.Entries = append(r.Entries, Ranked{Result: res, Score: score})
	}
	if len(r.Entries) == 0 {
		return r, ErrNoCandidates
	}

	sort.SliceStable(r.Entries, func(i, j int) bool {
		return r.Entries[i].Score < r.Entries[j].Score
	})
	best := r.Entries[0].Score
	total := 0.0
	for i := range r.Entries {
		r.Entries[i].Rank = i + 1
		r.Entries[i].Delta = r.Entries[i].Score - best
		r.Entries[i].Weight = math.Exp(-r.Entries[i].Delta / 2)
		total += r.Entries[i].Weight
	}
	for i := range r.Entries {
		r.Entries[i].Weight /= total
	}
	return r, nil
}
