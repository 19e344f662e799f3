package config_test

import (
	"context"
	"errors"
	"runtime"
	"testing"

	"github.com/okian/nhpp/internal/config"
	"github.com/okian/nhpp/internal/domain/rate"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.QueueSize, convey.ShouldEqual, 1024)
			convey.So(cfg.MaxIterations, convey.ShouldEqual, 2000)
			convey.So(cfg.QuadratureNodes, convey.ShouldEqual, 8)
			convey.So(cfg.PanelWidth, convey.ShouldAlmostEqual, 1.0/24)
			convey.So(cfg.Exclusion, convey.ShouldEqual, "full")
			convey.So(cfg.Penalty, convey.ShouldEqual, 1e10)
			convey.So(cfg.CorrectedAIC, convey.ShouldBeTrue)
			convey.So(cfg.Covariate.Enabled(), convey.ShouldBeFalse)
		})

		convey.Convey("Then the default catalogue spans three families", func() {
			fams := cfg.Catalogue.Families()
			convey.So(fams, convey.ShouldHaveLength, 3)
			convey.So(fams[0].Name, convey.ShouldEqual, "annual")
			convey.So(fams[1].Name, convey.ShouldEqual, "seasonal")
			convey.So(fams[2].Name, convey.ShouldEqual, "cluster")
			convey.So(len(fams[0].Entries)*len(fams[1].Entries)*len(fams[2].Entries), convey.ShouldEqual, 6)
		})

		convey.Convey("Then the defaults validate", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		ctx := context.Background()

		cases := map[string]func(*config.Config){
			"log level":         func(c *config.Config) { c.LogLevel = "loud" },
			"workers":           func(c *config.Config) { c.WorkerCount = 0 },
			"queue":             func(c *config.Config) { c.QueueSize = -1 },
			"iterations":        func(c *config.Config) { c.MaxIterations = 0 },
			"nodes":             func(c *config.Config) { c.QuadratureNodes = 0 },
			"panel":             func(c *config.Config) { c.PanelWidth = 0 },
			"penalty":           func(c *config.Config) { c.Penalty = -1 },
			"minimum rate":      func(c *config.Config) { c.MinimumRate = -0.1 },
			"window":            func(c *config.Config) { start := 2000.0; c.ObservationStart, c.ObservationEnd = &start, 1990 },
			"simulations":       func(c *config.Config) { c.Simulations = -3 },
			"passes":            func(c *config.Config) { c.Passes = []string{"simplex-annealing"} },
			"exclusion":         func(c *config.Config) { c.Exclusion = "partial" },
			"negative offset":   func(c *config.Config) { c.Exclusion, c.ExclusionOffset = "offset", -1 },
			"covariate mode":    func(c *config.Config) { c.Covariate.Mode = "mirror" },
			"empty family":      func(c *config.Config) { c.Catalogue.Cluster = nil },
			"duplicate entries": func(c *config.Config) { c.Catalogue.Seasonal = append(c.Catalogue.Seasonal, rate.TermDef{Kind: rate.KindNone}) },
			"covariate missing": func(c *config.Config) {
				c.Catalogue.Annual = []rate.TermDef{{Name: "enso", Kind: rate.KindCovariate, Start: []float64{1}}}
			},
		}

		convey.Convey("When a single field is out of range", func() {
			convey.Convey("Then validation fails with ErrInvalidConfig", func() {
				for name, mutate := range cases {
					cfg := config.New(ctx)
					mutate(cfg)
					err := cfg.Validate()
					convey.So(err, convey.ShouldNotBeNil)
					convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
					convey.So(name, convey.ShouldNotBeEmpty)
				}
			})
		})

		convey.Convey("When a covariate table backs a covariate term", func() {
			cfg := config.New(ctx)
			cfg.Covariate.Values = map[string]float64{"1990": 0.5}
			cfg.Catalogue.Annual = append(cfg.Catalogue.Annual,
				rate.TermDef{Name: "enso", Kind: rate.KindCovariate, Start: []float64{1}})

			convey.Convey("Then the config is valid", func() {
				convey.So(cfg.Validate(), convey.ShouldBeNil)
				convey.So(config.EntryLabel(cfg.Catalogue.Annual[1]), convey.ShouldEqual, "enso")
				convey.So(config.EntryLabel(rate.TermDef{Kind: rate.KindCluster}), convey.ShouldEqual, "cluster")
			})
		})
	})
}
