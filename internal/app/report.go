package service

import (
	"cmp"
	"context"
	"slices"

	"github.com/okian/nhpp/internal/adapters/mq/worker"
	"github.com/okian/nhpp/internal/domain/model"
	"github.com/okian/nhpp/internal/domain/selection"
	"github.com/okian/nhpp/internal/domain/types"
	"github.com/okian/nhpp/pkg/logger"
)

func sortOutcomes(out []worker.Outcome) {
	slices.SortFunc(out, func(a, b worker.Outcome) int { return cmp.Compare(a.Index, b.Index) })
}

// summarize builds one row per result in catalogue order. Unranked fits
// get rank 0.
func summarize(results []*model.FitResult, ranking *selection.Ranking) []types.Summary {
	ranks := make(map[*model.FitResult]int, len(results))
	if ranking != nil {
		for _, e := range ranking.Entries {
			ranks[e.Result] = e.Rank
		}
	}
	out := make([]types.Summary, 0, len(results))
	for _, res := range results {
		out = append(out, types.NewSummary(res, ranks[res]))
	}
	return out
}

func (s *Service) logSummaries(ctx context.Context, log logger.Logger, report *BatchReport) {
	for _, row := range report.Summaries {
		log.Info(ctx, "candidate fitted",
			logger.String("fit.name", row.Name),
			logger.String("fit.equation", row.Equation),
			logger.Floats("fit.theta", row.Theta),
			logger.Floats("fit.std_err", row.StdErr),
			logger.Bool("fit.converged", row.Converged),
			logger.Float64("fit.nll", row.NLL),
			logger.Float64("fit.aicc", row.AICc),
			logger.Int("fit.rank", row.Rank),
		)
	}

	if report.Ranking != nil {
		for _, ex := range report.Ranking.Excluded {
			if ex.Result == nil {
				continue
			}
			log.Debug(ctx, "candidate excluded from ranking",
				logger.String("fit.name", ex.Result.Name),
				logger.String("reason", ex.Reason),
			)
		}
	}

	if report.Best != nil {
		log.Info(ctx, "best model",
			logger.String("fit.name", report.Best.Name),
			logger.String("fit.equation", report.Best.Equation),
			logger.Floats("fit.theta", report.Best.Theta),
			logger.String("criterion", string(report.Ranking.Criterion)),
		)
	}

	if len(report.Failed) > 0 || len(report.NonConverged) > 0 {
		names := make([]string, 0, len(report.Failed)+len(report.NonConverged))
		for _, f := range report.Failed {
			names = append(names, f.Name)
		}
		for _, r := range report.NonConverged {
			names = append(names, r.Name)
		}
		log.Warn(ctx, "some candidates did not produce a converged fit",
			logger.Int("failed", len(report.Failed)),
			logger.Int("non_converged", len(report.NonConverged)),
			logger.Any("candidates", names),
		)
	}
}
