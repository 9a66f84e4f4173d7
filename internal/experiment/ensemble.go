package experiment

import (
	"context"

	"github.com/san-kum/rigidsim/internal/config"
	"github.com/san-kum/rigidsim/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// Ensemble runs independent scenes concurrently, at most workers at a
// time. The first failure cancels the others.
type Ensemble struct {
	configs []*config.Config
	workers int
	opts    []Option
}

func NewEnsemble(configs []*config.Config, workers int, opts ...Option) *Ensemble {
	return &Ensemble{configs: configs, workers: workers, opts: opts}
}

func (en *Ensemble) Run(ctx context.Context) ([]*Result, error) {
	results := make([]*Result, len(en.configs))
	g, ctx := errgroup.WithContext(ctx)
	if en.workers > 0 {
		g.SetLimit(en.workers)
	}
	for i, cfg := range en.configs {
		g.Go(func() error {
			e, err := New(cfg, en.opts...)
			if err != nil {
				return err
			}
			defer e.Close()
			for _, m := range metrics.Defaults() {
				e.AddMetric(m)
			}
			results[i], err = e.Run(ctx)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
