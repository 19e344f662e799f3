package eventfile

import (
	"encoding/csv"
	"fmt"
	"io"
	"iter"
	"strconv"

	"github.com/okian/nhpp/internal/domain/model"
)

// WriteEvents writes a header and one start,active_duration row per event.
// It returns the number of rows written.
func WriteEvents(w io.Writer, events iter.Seq[model.Event]) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"start", "active_duration"}); err != nil {
		return 0, err
	}
	n := 0
	for ev := range events {
		rec := []string{
			strconv.FormatFloat(ev.Start, 'f', -1, 64),
			strconv.FormatFloat(ev.ActiveDuration, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return n, fmt.Errorf("row %d: %w", n+1, err)
		}
		n++
	}
	cw.Flush()
	return n, cw.Error()
}
