package service

import (
	"context"
	"math/rand"

	"github.com/cartpulse/cartpulse/internal/cache"
	ierr "github.com/cartpulse/cartpulse/internal/errors"
)

// ExperimentService assigns customers to A/B test variants and tracks
// per-variant outcomes. Assignments are sticky: a customer keeps the variant
// they first drew for as long as the assignment key lives.
type ExperimentService interface {
	// AssignVariant returns the customer's variant for an experiment,
	// drawing a new one on first contact. Impressions are counted once,
	// at assignment time.
	AssignVariant(ctx context.Context, experimentName, customerID string) (string, error)

	// RecordConversion credits a conversion to the customer's assigned
	// variant. Customers never enrolled in the experiment are ignored.
	RecordConversion(ctx context.Context, experimentName, customerID string) error

	// Results reports impressions, conversions and conversion rate per
	// variant in draw order
	Results(ctx context.Context, experimentName string) ([]*VariantStats, error)
}

// VariantStats is the outcome report for one variant of an experiment
type VariantStats struct {
	Variant        string  `json:"variant"`
	Impressions    int64   `json:"impressions"`
	Conversions    int64   `json:"conversions"`
	ConversionRate float64 `json:"conversion_rate"`
}

type experimentService struct {
	ServiceParams

	// draw is swapped in tests to force deterministic variant picks
	draw func() float64
}

func NewExperimentService(params ServiceParams) ExperimentService {
	return &experimentService{
		ServiceParams: params,
		draw:          rand.Float64,
	}
}

func assignmentKey(experimentName, customerID string) string {
	return cache.GenerateKey(cache.PrefixExperiment, "assign", experimentName, customerID)
}

func statKey(experimentName, variant, stat string) string {
	return cache.GenerateKey(cache.PrefixExperiment, "stats", experimentName, variant, stat)
}

func (s *experimentService) AssignVariant(ctx context.Context, experimentName, customerID string) (string, error) {
	def, ok := s.Experiments.Get(experimentName)
	if !ok {
		return "", ierr.NewError("unknown experiment").
			WithHintf("Experiment %s is not registered", experimentName).
			Mark(ierr.ErrNotFound)
	}
	if !def.Active {
		return "", ierr.NewError("experiment is not active").
			WithHintf("Experiment %s is disabled", experimentName).
			Mark(ierr.ErrValidation)
	}

	key := assignmentKey(experimentName, customerID)
	if existing, found := s.Cache.Get(ctx, key); found {
		return existing, nil
	}

	variant := def.PickVariant(s.draw())

	// the first writer wins; a losing caller adopts the stored variant so
	// racing assignments never hand out two variants or two impressions
	won, err := s.Cache.SetNX(ctx, key, variant, 0)
	if err != nil {
		return "", err
	}
	if !won {
		existing, found := s.Cache.Get(ctx, key)
		if !found {
			return "", ierr.NewError("assignment lost").
				WithHintf("Assignment for experiment %s vanished after a write conflict", experimentName).
				Mark(ierr.ErrSystem)
		}
		return existing, nil
	}

	if _, err := s.Cache.Increment(ctx, statKey(experimentName, variant, "impressions"), 1); err != nil {
		s.Logger.Errorw("failed to count impression",
			"experiment", experimentName, "variant", variant, "error", err)
	}

	s.Logger.Debugw("assigned experiment variant",
		"experiment", experimentName, "customer_id", customerID, "variant", variant)
	return variant, nil
}

func (s *experimentService) RecordConversion(ctx context.Context, experimentName, customerID string) error {
	if _, ok := s.Experiments.Get(experimentName); !ok {
		return ierr.NewError("unknown experiment").
			WithHintf("Experiment %s is not registered", experimentName).
			Mark(ierr.ErrNotFound)
	}

	variant, found := s.Cache.Get(ctx, assignmentKey(experimentName, customerID))
	if !found {
		// conversions from customers outside the experiment carry no signal
		s.Logger.Debugw("ignoring conversion from unenrolled customer",
			"experiment", experimentName, "customer_id", customerID)
		return nil
	}

	if _, err := s.Cache.Increment(ctx, statKey(experimentName, variant, "conversions"), 1); err != nil {
		return ierr.WithError(err).
			WithHintf("Failed to count conversion for experiment %s", experimentName).
			Mark(ierr.ErrSystem)
	}
	return nil
}

func (s *experimentService) Results(ctx context.Context, experimentName string) ([]*VariantStats, error) {
	def, ok := s.Experiments.Get(experimentName)
	if !ok {
		return nil, ierr.NewError("unknown experiment").
			WithHintf("Experiment %s is not registered", experimentName).
			Mark(ierr.ErrNotFound)
	}

	stats := make([]*VariantStats, 0, len(def.Variants))
	for _, variant := range def.Variants {
		impressions, err := s.Cache.GetCounter(ctx, statKey(experimentName, variant, "impressions"))
		if err != nil {
			return nil, err
		}
		conversions, err := s.Cache.GetCounter(ctx, statKey(experimentName, variant, "conversions"))
		if err != nil {
			return nil, err
		}

		vs := &VariantStats{
			Variant:     variant,
			Impressions: impressions,
			Conversions: conversions,
		}
		if impressions > 0 {
			vs.ConversionRate = float64(conversions) / float64(impressions) * 100
		}
		stats = append(stats, vs)
	}
	return stats, nil
}
