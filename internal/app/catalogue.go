package service

import (
	"strings"

	"github.com/okian/nhpp/internal/config"
	"github.com/okian/nhpp/internal/domain/rate"
)

// Candidate is one combination of catalogue entries, one per family.
type Candidate struct {
	// Index is the position in the Cartesian product, first family slowest.
	Index int
	// Name joins the entry labels, e.g. "constant+sinusoid+none".
	Name string
	// Terms are the entries with each term named after its family, so
	// priors carry over between candidates that share a family entry.
	Terms []rate.TermDef
}

// Expand enumerates the Cartesian product of the families. Families with
// no entries are skipped. Entries of kind none stay in the name but
// contribute no term.
func Expand(families []config.Family) []Candidate {
	axes := make([]config.Family, 0, len(families))
	for _, f := range families {
		if len(f.Entries) > 0 {
			axes = append(axes, f)
		}
	}
	if len(axes) == 0 {
		return nil
	}

	total := 1
	for _, f := range axes {
		total *= len(f.Entries)
	}

	out := make([]Candidate, 0, total)
	pick := make([]int, len(axes))
	for idx := 0; idx < total; idx++ {
		labels := make([]string, len(axes))
		terms := make([]rate.TermDef, 0, len(axes))
		for a, f := range axes {
			def := f.Entries[pick[a]]
			labels[a] = config.EntryLabel(def)
			if def.Kind == rate.KindNone {
				continue
			}
			def.Name = f.Name
			def.Start = append([]float64(nil), def.Start...)
			def.Scale = append([]float64(nil), def.Scale...)
			def.NonNegative = append([]bool(nil), def.NonNegative...)
			terms = append(terms, def)
		}
		out = append(out, Candidate{Index: idx, Name: strings.Join(labels, "+"), Terms: terms})

		// odometer, last axis fastest
		for a := len(axes) - 1; a >= 0; a-- {
			pick[a]++
			if pick[a] < len(axes[a].Entries) {
				break
			}
			pick[a] = 0
		}
	}
	return out
}
