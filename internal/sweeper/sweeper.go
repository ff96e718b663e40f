// Package sweeper runs the periodic asset housekeeping: overdue maintenance
// and depreciation refresh.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"meeting-resource-backend/config"
	"meeting-resource-backend/internal/depreciation"
	"meeting-resource-backend/internal/logger"
	"meeting-resource-backend/internal/model"
	"meeting-resource-backend/internal/store"
)

// Source is the part of the store the sweeper writes through.
type Source interface {
	MarkOverdueAssets(ctx context.Context, today time.Time) ([]int64, error)
	ListAssets(ctx context.Context, f store.AssetFilter) ([]model.Asset, error)
	SaveAssetFigures(ctx context.Context, asset *model.Asset) error
}

// Report summarises one sweep.
type Report struct {
	Overdue     []int64
	Revalued    int
	SaveFailure int
}

type Service struct {
	cfg   config.SweeperConfig
	store Source
	log   *logger.Logger
	now   func() time.Time
}

func NewService(cfg config.SweeperConfig, src Source, log *logger.Logger) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	return &Service{cfg: cfg, store: src, log: logger.OrNop(log), now: time.Now}
}

// Run sweeps once immediately, then every configured interval until ctx ends.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		s.log.Info("sweeper is disabled, not starting")
		return
	}
	s.log.Info("starting sweeper", "interval", s.cfg.Interval.String())

	s.sweep(ctx)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper shutting down")
			return
		case <-timer.C:
			s.sweep(ctx)
			timer.Reset(s.cfg.Interval)
		}
	}
}

func (s *Service) sweep(ctx context.Context) {
	rep, err := s.SweepOnce(ctx, s.now())
	if err != nil {
		s.log.Error("sweep failed", "error", err)
		return
	}
	s.log.Info("sweep finished",
		"overdue", len(rep.Overdue),
		"revalued", rep.Revalued,
		"save_failures", rep.SaveFailure,
	)
}

// SweepOnce moves overdue assets into maintenance, then recomputes the
// depreciation figures of every active asset with a schedule. A failed save
// of one asset does not stop the others.
func (s *Service) SweepOnce(ctx context.Context, now time.Time) (Report, error) {
	var rep Report

	y, m, d := now.UTC().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	overdue, err := s.store.MarkOverdueAssets(ctx, today)
	if err != nil {
		return rep, fmt.Errorf("failed to mark overdue assets: %w", err)
	}
	rep.Overdue = overdue
	if len(overdue) > 0 {
		s.log.Info("assets moved to maintenance", "ids", overdue)
	}

	assets, err := s.store.ListAssets(ctx, store.AssetFilter{ActiveOnly: true})
	if err != nil {
		return rep, fmt.Errorf("failed to load assets: %w", err)
	}
	for i := range assets {
		a := &assets[i]
		if a.DepreciationMethod == "" || a.DepreciationMethod == model.DepreciationNone {
			continue
		}
		before := figures(a)
		depreciation.Apply(a, now)
		if figures(a) == before {
			continue
		}
		if err := s.store.SaveAssetFigures(ctx, a); err != nil {
			rep.SaveFailure++
			s.log.Warn("failed to save depreciation", "asset_id", a.ID, "error", err)
			continue
		}
		rep.Revalued++
	}
	return rep, nil
}

type derived struct {
	elapsed            int
	period, acc, value float64
}

func figures(a *model.Asset) derived {
	return derived{a.ElapsedPeriods, a.PeriodDepreciation, a.AccumulatedDepreciation, a.BookValue}
}
