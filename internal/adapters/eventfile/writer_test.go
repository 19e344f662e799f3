package eventfile_test

import (
	"bytes"
	"slices"
	"testing"

	"github.com/okian/nhpp/internal/adapters/eventfile"
	"github.com/okian/nhpp/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestWriteEvents(t *testing.T) {
	Convey("Given a few events", t, func() {
		events := []model.Event{
			{Start: 1990.25, ActiveDuration: 0.01},
			{Start: 1990.5, ActiveDuration: 0},
		}

		Convey("When writing them", func() {
			var buf bytes.Buffer
			n, err := eventfile.WriteEvents(&buf, slices.Values(events))

			Convey("Then the CSV has a header and exact values", func() {
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 2)
				So(buf.String(), ShouldEqual, "start,active_duration\n1990.25,0.01\n1990.5,0\n")
			})

			Convey("And reading it back yields the same events", func() {
				back, err := eventfile.ReadEvents(&buf)
				So(err, ShouldBeNil)
				So(back, ShouldResemble, events)
			})
		})
	})
}
