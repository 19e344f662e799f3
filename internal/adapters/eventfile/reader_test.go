package eventfile_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okian/nhpp/internal/adapters/eventfile"
	"github.com/okian/nhpp/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestReadEvents(t *testing.T) {
	Convey("Given an event CSV with a header", t, func() {
		in := "start,active_duration\n1985.10, 0.01\n1985.05,0.02\n# storm gap\n1986.5,0\n"

		Convey("When reading", func() {
			events, err := eventfile.ReadEvents(strings.NewReader(in))

			Convey("Then rows are parsed and ordered by start", func() {
				So(err, ShouldBeNil)
				So(events, ShouldResemble, []model.Event{
					{Start: 1985.05, ActiveDuration: 0.02},
					{Start: 1985.10, ActiveDuration: 0.01},
					{Start: 1986.5, ActiveDuration: 0},
				})
			})
		})
	})

	Convey("Given a file without a header", t, func() {
		path := filepath.Join(t.TempDir(), "events.csv")
		So(os.WriteFile(path, []byte("1,0\n2,0\n"), 0o600), ShouldBeNil)
		events, err := eventfile.ReadEventsFile(path)
		So(err, ShouldBeNil)
		So(len(events), ShouldEqual, 2)
	})

	Convey("Given malformed rows", t, func() {
		cases := []string{
			"1,abc\n",
			"1\n",
			"start,active_duration\n1,-0.5\n",
			"1,0\nnan,0\n",
		}
		for _, in := range cases {
			_, err := eventfile.ReadEvents(strings.NewReader(in))
			So(errors.Is(err, eventfile.ErrMalformedRow), ShouldBeTrue)
		}
	})

	Convey("Given a missing file", t, func() {
		_, err := eventfile.ReadEventsFile(filepath.Join(t.TempDir(), "nope.csv"))
		So(errors.Is(err, os.ErrNotExist), ShouldBeTrue)
	})
}

func TestReadCovariate(t *testing.T) {
	Convey("Given a yearly index", t, func() {
		table, err := eventfile.ReadCovariate(strings.NewReader("year,oni\n1985,-0.5\n1986,1.2\n"))
		So(err, ShouldBeNil)
		So(table, ShouldResemble, map[int]float64{1985: -0.5, 1986: 1.2})

		_, err = eventfile.ReadCovariate(strings.NewReader("1985,1\n1985,2\n"))
		So(errors.Is(err, eventfile.ErrMalformedRow), ShouldBeTrue)
		_, err = eventfile.ReadCovariate(strings.NewReader("1985,1\n1985.5,2\n"))
		So(errors.Is(err, eventfile.ErrMalformedRow), ShouldBeTrue)
	})
}
