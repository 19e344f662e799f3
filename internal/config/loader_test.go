package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/nhpp/internal/config"
	"github.com/okian/nhpp/internal/domain/rate"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		convey.Convey("When loading config with no file or environment variables", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return the defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldResemble, config.New(ctx))
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("NHPP_WORKER_COUNT", "3")
			_ = os.Setenv("NHPP_EVENTS_FILE", "/data/storms.csv")
			_ = os.Setenv("NHPP_EXCLUSION", "none")
			_ = os.Setenv("NHPP_OBSERVATION_END", "2016")
			_ = os.Setenv("NHPP_OBSERVATION_START", "0")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should apply them over the defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 3)
				convey.So(cfg.EventsFile, convey.ShouldEqual, "/data/storms.csv")
				convey.So(cfg.Exclusion, convey.ShouldEqual, "none")
				convey.So(cfg.ObservationEnd, convey.ShouldEqual, 2016)
				convey.So(cfg.ObservationStart, convey.ShouldNotBeNil)
				convey.So(*cfg.ObservationStart, convey.ShouldEqual, 0)
				convey.So(cfg.QueueSize, convey.ShouldEqual, 1024)
			})
		})

		convey.Convey("When loading config from a YAML file", func() {
			yamlContent := `
# storm catalogue
events_file: storms.csv
observation_start: 1985
observation_end: 2015
worker_count: 4
passes: [nelder-mead, bfgs]
exclusion: offset
exclusion_offset: 0.01
covariate:
  mode: periodic
  window_start: 1985
  window_end: 1987
  values:
    "1985": 0.5
    "1986": -1
    "1987": 2
catalogue:
  annual:
    - name: constant
      kind: constant
      start: [8]
    - name: enso
      kind: covariate
      start: [1]
  seasonal:
    - name: sinusoid
      kind: sinusoid
      start: [3, 0.2]
      nonnegative: [true, false]
  cluster:
    - kind: none
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv(config.EnvConfigFile, tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load scalars, lists and the catalogue", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.EventsFile, convey.ShouldEqual, "storms.csv")
				convey.So(*cfg.ObservationStart, convey.ShouldEqual, 1985)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
				convey.So(cfg.Passes, convey.ShouldResemble, []string{"nelder-mead", "bfgs"})
				convey.So(cfg.ExclusionOffset, convey.ShouldEqual, 0.01)
				convey.So(cfg.Covariate.Mode, convey.ShouldEqual, "periodic")
				convey.So(cfg.Covariate.Values, convey.ShouldHaveLength, 3)
				convey.So(cfg.Covariate.Values["1986"], convey.ShouldEqual, -1)
				convey.So(cfg.Catalogue.Annual, convey.ShouldHaveLength, 2)
				convey.So(cfg.Catalogue.Annual[1].Kind, convey.ShouldEqual, rate.KindCovariate)
				convey.So(cfg.Catalogue.Seasonal[0].Start, convey.ShouldResemble, []float64{3, 0.2})
				convey.So(cfg.Catalogue.Seasonal[0].NonNegative, convey.ShouldResemble, []bool{true, false})
				convey.So(cfg.Catalogue.Annual[1].NonNegative, convey.ShouldBeEmpty)
				convey.So(cfg.Catalogue.Cluster[0].Kind, convey.ShouldEqual, rate.KindNone)
			})

			convey.Convey("Then untouched keys keep their defaults", func() {
				convey.So(cfg.QueueSize, convey.ShouldEqual, 1024)
				convey.So(cfg.Penalty, convey.ShouldEqual, 1e10)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			tmpFile := createTempConfigFile("worker_count: 4\nseed: 11\n")
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv(config.EnvConfigFile, tmpFile)
			_ = os.Setenv("NHPP_WORKER_COUNT", "9")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 9)
				convey.So(cfg.Seed, convey.ShouldEqual, 11)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv(config.EnvConfigFile, tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv(config.EnvConfigFile, "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("NHPP_WORKER_COUNT", "not_a_number")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with an unknown exclusion policy", func() {
			_ = os.Setenv("NHPP_EXCLUSION", "partial")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "exclusion")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		config.EnvConfigFile,
		"NHPP_WORKER_COUNT",
		"NHPP_EVENTS_FILE",
		"NHPP_EXCLUSION",
		"NHPP_OBSERVATION_END",
		"NHPP_OBSERVATION_START",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "nhpp-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
