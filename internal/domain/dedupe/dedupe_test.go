package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	dedupe "github.com/okian/nhpp/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new InMemoryDeduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithSizeHint(8))
		So(d.Size(), ShouldEqual, 0)

		Convey("When recording a new equation", func() {
			first, seen := d.SeenAndRecord(ctx, "max(0, p[0])", "annual-constant")

			Convey("Then it is recorded under its name", func() {
				So(seen, ShouldBeFalse)
				So(first, ShouldEqual, "annual-constant")
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And a second candidate with the same equation is reported", func() {
				first, seen := d.SeenAndRecord(ctx, "max(0, p[0])", "annual-constant+seasonal-none")
				So(seen, ShouldBeTrue)
				So(first, ShouldEqual, "annual-constant")
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When many goroutines record the same keys", func() {
			var wg sync.WaitGroup
			var mu sync.Mutex
			fresh := 0
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					if _, seen := d.SeenAndRecord(ctx, fmt.Sprintf("eq-%d", i%10), fmt.Sprintf("c-%d", i)); !seen {
						mu.Lock()
						fresh++
						mu.Unlock()
					}
				}(i)
			}
			wg.Wait()

			Convey("Then each key is new exactly once", func() {
				So(fresh, ShouldEqual, 10)
				So(d.Size(), ShouldEqual, 10)
			})
		})
	})
}
