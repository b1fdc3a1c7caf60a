package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/samber/lo"

	"github.com/cartpulse/cartpulse/internal/cache"
	"github.com/cartpulse/cartpulse/internal/domain/segment"
	ierr "github.com/cartpulse/cartpulse/internal/errors"
	"github.com/cartpulse/cartpulse/internal/types"
)

// SegmentationService classifies customers into behavioral segments
type SegmentationService interface {
	// Classify returns the customer's segment labels, serving from the
	// classification cache when possible
	Classify(ctx context.Context, customerID string) ([]string, error)

	// RefreshSegments invalidates the cached classification, recomputes it
	// and persists the new label set onto the customer record
	RefreshSegments(ctx context.Context, customerID string) ([]string, error)
}

type segmentationService struct {
	ServiceParams
	rules []segment.Rule

	// now anchors the time-relative rules; swapped in tests
	now func() time.Time
}

// NewSegmentationService builds the engine with the default rule list:
// frequency, spend, engagement and recency, evaluated in that order.
func NewSegmentationService(params ServiceParams) SegmentationService {
	return &segmentationService{
		ServiceParams: params,
		rules: segment.DefaultRules(
			params.CustomerRepo,
			params.Cache,
			params.Config.Analytics.SegmentCacheTTL(),
		),
		now: time.Now,
	}
}

func (s *segmentationService) Classify(ctx context.Context, customerID string) ([]string, error) {
	key := cache.GenerateKey(cache.PrefixSegments, customerID)
	if cached, found := s.Cache.Get(ctx, key); found {
		var labels []string
		if err := json.Unmarshal([]byte(cached), &labels); err == nil {
			return labels, nil
		}
		// fall through and recompute on a corrupt entry
		s.Logger.Warnw("corrupt classification cache entry", "customer_id", customerID)
	}

	labels, err := s.classify(ctx, customerID)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(labels); err == nil {
		s.Cache.SetWithTTL(ctx, key, string(encoded), s.Config.Analytics.SegmentCacheTTL())
	}
	return labels, nil
}

func (s *segmentationService) RefreshSegments(ctx context.Context, customerID string) ([]string, error) {
	key := cache.GenerateKey(cache.PrefixSegments, customerID)
	s.Cache.Delete(ctx, key)

	labels, err := s.classify(ctx, customerID)
	if err != nil {
		// the stale persisted snapshot is deliberately left untouched
		return nil, err
	}

	if err := s.CustomerRepo.UpdateSegments(ctx, customerID, labels); err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(labels); err == nil {
		s.Cache.SetWithTTL(ctx, key, string(encoded), s.Config.Analytics.SegmentCacheTTL())
	}

	if err := s.EventPublisher.Publish(ctx, types.TopicSegmentsRefreshed, map[string]interface{}{
		"customer_id": customerID,
		"segments":    labels,
	}); err != nil {
		s.Logger.Errorw("failed to publish segment refresh", "customer_id", customerID, "error", err)
	}

	return labels, nil
}

// classify evaluates every registered rule in registration order and unions
// the results. A single faulted rule aborts the whole classification; no
// partial label set is ever produced.
func (s *segmentationService) classify(ctx context.Context, customerID string) ([]string, error) {
	cust, err := s.CustomerRepo.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}

	orders, err := s.OrderRepo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	input := &segment.Input{Customer: cust, Orders: orders, Now: s.now().UTC()}

	var labels []string
	for _, rule := range s.rules {
		ruleLabels, err := rule.Evaluate(ctx, input)
		if err != nil {
			return nil, ierr.WithError(err).
				WithHintf("Segmentation rule %s faulted", rule.Name()).
				Mark(ierr.ErrClassification)
		}
		labels = append(labels, ruleLabels...)
	}

	// derived labels layered on top of the rule outputs
	if cust.Type == types.CustomerTypeBusiness {
		labels = append(labels, types.SegmentBusinessAccount)
	}
	if cust.LoyaltyTier != "" {
		labels = append(labels, types.SegmentLoyaltyTierPrefix+cust.LoyaltyTier)
	}

	return lo.Uniq(labels), nil
}
