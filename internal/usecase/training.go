package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"MandiCast/internal/domain/models"
	domrepo "MandiCast/internal/domain/repository"
	"MandiCast/internal/services/lstm"
	"MandiCast/internal/services/registry"
	"MandiCast/internal/services/window"
	applogger "MandiCast/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// TrainConfig controls an offline training run.
type TrainConfig struct {
	Model       lstm.Config
	Epochs      int
	BatchSize   int
	Parallelism int
}

// TrainFilter narrows a run to one district, market or crop. Empty fields
// match everything.
type TrainFilter struct {
	District string
	Market   string
	Crop     string
}

// TrainOutcome is the result for one (district, market, crop) key.
type TrainOutcome struct {
	Key     string
	Windows int
	Loss    float64
	ValLoss float64
	Skipped string
	Err     error
}

// TrainSummary aggregates a run.
type TrainSummary struct {
	Trained  int
	Skipped  int
	Failed   int
	Outcomes []TrainOutcome
}

// TrainUseCase fits one model per catalog pair and persists it.
type TrainUseCase struct {
	catalog *models.Catalog
	series  domrepo.SeriesSource
	store   domrepo.ModelStore
	logger  *applogger.Logger
	cfg     TrainConfig
}

func NewTrainUseCase(catalog *models.Catalog, series domrepo.SeriesSource, store domrepo.ModelStore, l *applogger.Logger, cfg TrainConfig) *TrainUseCase {
	if l == nil {
		l = applogger.NewNop()
	}
	if cfg.Model.Lookback == 0 {
		cfg.Model = lstm.DefaultConfig()
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}
	return &TrainUseCase{catalog: catalog, series: series, store: store, logger: l, cfg: cfg}
}

type trainTarget struct {
	district, market, crop string
}

func (uc *TrainUseCase) targets(f TrainFilter) []trainTarget {
	var out []trainTarget
	for _, d := range uc.catalog.Districts {
		if f.District != "" && d.Name != f.District {
			continue
		}
		for _, m := range d.Markets {
			if f.Market != "" && m != f.Market {
				continue
			}
			for _, c := range d.Crops {
				if f.Crop != "" && c != f.Crop {
					continue
				}
				out = append(out, trainTarget{district: d.Name, market: m, crop: c})
			}
		}
	}
	return out
}

// Run trains every matching pair. Pairs without enough data are skipped;
// a failing pair does not stop the others. The returned error is non-nil
// only when ctx ends or nothing matched the filter.
func (uc *TrainUseCase) Run(ctx context.Context, f TrainFilter) (*TrainSummary, error) {
	targets := uc.targets(f)
	if len(targets) == 0 {
		return nil, fmt.Errorf("no catalog pair matches %+v: %w", f, models.ErrNotFound)
	}

	outcomes := make([]TrainOutcome, len(targets))
	var mu sync.Mutex
	summary := &TrainSummary{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.cfg.Parallelism)
	for i, t := range targets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out := uc.trainOne(t)
			outcomes[i] = out

			mu.Lock()
			defer mu.Unlock()
			switch {
			case out.Err != nil:
				summary.Failed++
			case out.Skipped != "":
				summary.Skipped++
			default:
				summary.Trained++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	summary.Outcomes = outcomes
	return summary, nil
}

func (uc *TrainUseCase) trainOne(t trainTarget) TrainOutcome {
	key := registry.Key(t.district, t.market, t.crop)
	out := TrainOutcome{Key: key}
	log := uc.logger.With(applogger.String("key", key))

	s, err := uc.series.Series(t.market, t.crop)
	if err != nil {
		if errors.Is(err, models.ErrNoData) {
			log.Warn("no data, skipping")
			out.Skipped = "no data"
			return out
		}
		out.Err = err
		return out
	}

	set, err := window.Build(s, uc.cfg.Model.Lookback)
	if err != nil {
		if errors.Is(err, models.ErrInsufficientData) {
			log.Warn("insufficient data, skipping", applogger.Int("points", s.Len()))
			out.Skipped = "insufficient data"
			return out
		}
		out.Err = err
		return out
	}
	out.Windows = set.Len()

	m, err := lstm.New(uc.cfg.Model)
	if err != nil {
		out.Err = err
		return out
	}
	start := time.Now()
	history, err := m.Train(set.Windows, set.Labels, uc.cfg.Epochs, uc.cfg.BatchSize)
	if err != nil {
		if errors.Is(err, models.ErrInsufficientData) {
			log.Warn("training split empty, skipping", applogger.Int("windows", set.Len()))
			out.Skipped = "insufficient data"
			return out
		}
		log.Error("training failed", applogger.Error(err))
		out.Err = err
		return out
	}
	if n := len(history); n > 0 {
		out.Loss = history[n-1].Loss
		out.ValLoss = history[n-1].ValLoss
	}

	if err := uc.store.Save(key, m); err != nil {
		log.Error("save model failed", applogger.Error(err))
		out.Err = fmt.Errorf("save %s: %w", key, err)
		return out
	}
	log.Info("model trained",
		applogger.Int("windows", out.Windows),
		applogger.Float64("loss", out.Loss),
		applogger.Float64("val_loss", out.ValLoss),
		applogger.Duration("elapsed", time.Since(start)),
		applogger.String("path", uc.store.Path(key)))
	return out
}
