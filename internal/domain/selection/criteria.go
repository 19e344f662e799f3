// Package selection scores fitted models with information criteria and
// ranks them.
package selection

import (
	"fmt"
	"math"

	"github.com/okian/nhpp/internal/domain/model"
)

// Criterion selects the score a Ranking orders by.
type Criterion string

// Supported criteria.
const (
	AICc Criterion = "aicc"
	AIC  Criterion = "aic"
	BIC  Criterion = "bic"
)

// ParseCriterion maps a configuration name to a Criterion.
func ParseCriterion(s string) (Criterion, error) {
	switch c := Criterion(s); c {
	case "":
		return AICc, nil
	case AICc, AIC, BIC:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCriterion, s)
	}
}

// Compute returns AIC = 2k + 2NLL, AICc = AIC + 2k(k+1)/(n-k-1) and
// BIC = k ln n + 2NLL. When n-k-1 <= 0 the AICc is left unset, AICcValid is
// false and ErrDegenerateCorrection is returned alongside the other values.
func Compute(nll float64, k, n int) (model.Criteria, error) {
	c := model.Criteria{
		K:   k,
		N:   n,
		AIC: 2*float64(k) + 2*nll,
		BIC: float64(k)*math.Log(float64(n)) + 2*nll,
	}
	denom := n - k - 1
	if denom <= 0 {
		c.AICc = math.NaN()
		return c, fmt.Errorf("%w: n=%d k=%d", ErrDegenerateCorrection, n, k)
	}
	c.AICc = c.AIC + 2*float64(k*(k+1))/float64(denom)
	c.AICcValid = true
	return c, nil
}

// Attach computes the criteria of res and stores them on it.
func Attach(res *model.FitResult) error {
	c, err := Compute(res.NLL, res.NumParams(), res.NumEvents())
	res.Criteria = &c
	return err
}

// Score returns the value of criterion in c and whether it is usable.
func Score(c model.Criteria, criterion Criterion) (float64, bool) {
	switch criterion {
	case AIC:
		return c.AIC, true
	case BIC:
		return c.BIC, true
	default:
		return c.AICc, c.AICcValid
	}
}
