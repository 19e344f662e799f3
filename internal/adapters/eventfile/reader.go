// Package eventfile reads event series and yearly covariate tables from CSV.
//
// Event files have two columns, start and active_duration, both in decimal
// years. Covariate files have year and value. A header row is optional.
package eventfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/okian/nhpp/internal/domain/model"
)

// ReadEventsFile reads events from the CSV file at path.
func ReadEventsFile(path string) ([]model.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	//nolint:errcheck // read only
	defer f.Close()
	return ReadEvents(f)
}

// ReadEvents parses start,active_duration rows, sorted by start.
func ReadEvents(r io.Reader) ([]model.Event, error) {
	var events []model.Event
	err := readRows(r, 2, func(row int, rec []string) error {
		start, err := parseFloat(row, "start", rec[0])
		if err != nil {
			return err
		}
		d, err := parseFloat(row, "active_duration", rec[1])
		if err != nil {
			return err
		}
		if d < 0 {
			return fmt.Errorf("%w: row %d: negative active_duration %g", ErrMalformedRow, row, d)
		}
		events = append(events, model.Event{Start: start, ActiveDuration: d})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Start < events[j].Start })
	return events, nil
}

// ReadCovariateFile reads a year,value table from path.
func ReadCovariateFile(path string) (map[int]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	//nolint:errcheck // read only
	defer f.Close()
	return ReadCovariate(f)
}

// ReadCovariate parses year,value rows.
func ReadCovariate(r io.Reader) (map[int]float64, error) {
	out := make(map[int]float64)
	err := readRows(r, 2, func(row int, rec []string) error {
		year, err := strconv.Atoi(strings.TrimSpace(rec[0]))
		if err != nil {
			return fmt.Errorf("%w: row %d: year %q", ErrMalformedRow, row, rec[0])
		}
		v, err := parseFloat(row, "value", rec[1])
		if err != nil {
			return err
		}
		if _, dup := out[year]; dup {
			return fmt.Errorf("%w: row %d: duplicate year %d", ErrMalformedRow, row, year)
		}
		out[year] = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// readRows calls fn for each data row. The first row is skipped when its
// first field is not numeric.
func readRows(r io.Reader, fields int, fn func(row int, rec []string) error) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	for row := 1; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedRow, err)
		}
		if len(rec) < fields {
			return fmt.Errorf("%w: row %d: want %d fields, got %d", ErrMalformedRow, row, fields, len(rec))
		}
		if row == 1 {
			if _, err := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64); err != nil {
				continue
			}
		}
		if err := fn(row, rec); err != nil {
			return err
		}
	}
}

func parseFloat(row int, name, s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: row %d: %s %q", ErrMalformedRow, row, name, s)
	}
	return v, nil
}
