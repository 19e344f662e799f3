package worker

import (
	"github.com/okian/nhpp/pkg/logger"
)

// Option applies a configuration option to the FitWorker.
type Option func(*FitWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *FitWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *FitWorker) {
		if l != nil {
			w.logger = l
		}
	}
}
