package segment

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cartpulse/cartpulse/internal/cache"
	ierr "github.com/cartpulse/cartpulse/internal/errors"
	"github.com/cartpulse/cartpulse/internal/types"
)

// Thresholds used by the default rules. These are product-defined constants;
// changing them reclassifies the whole customer base.
var (
	frequentBuyerRate   = 0.5
	regularCustomerRate = 0.2

	highValueSpend   = decimal.NewFromInt(10000)
	mediumValueSpend = decimal.NewFromInt(5000)

	highlyEngagedMessages = int64(50)
	engagedMessages       = int64(20)

	activeDays = 30.0
	atRiskDays = 90.0
)

// FrequencyRule labels customers by order rate since their first purchase
type FrequencyRule struct{}

func (r FrequencyRule) Name() string { return "frequency" }

func (r FrequencyRule) Evaluate(_ context.Context, input *Input) ([]string, error) {
	m := input.Customer.Metrics
	if m.TotalOrders == 0 {
		return []string{types.SegmentNewCustomer}, nil
	}

	days := 1.0
	if m.FirstPurchaseDate != nil {
		days = input.AsOf().Sub(*m.FirstPurchaseDate).Hours() / 24
		if days < 1 {
			days = 1
		}
	}

	rate := float64(m.TotalOrders) / days
	switch {
	case rate >= frequentBuyerRate:
		return []string{types.SegmentFrequentBuyer}, nil
	case rate >= regularCustomerRate:
		return []string{types.SegmentRegularCustomer}, nil
	default:
		return []string{types.SegmentOccasionalBuyer}, nil
	}
}

// SpendRule labels customers by lifetime spend
type SpendRule struct{}

func (r SpendRule) Name() string { return "spend" }

func (r SpendRule) Evaluate(_ context.Context, input *Input) ([]string, error) {
	spent := input.Customer.Metrics.TotalSpent
	switch {
	case spent.GreaterThanOrEqual(highValueSpend):
		return []string{types.SegmentHighValue}, nil
	case spent.GreaterThanOrEqual(mediumValueSpend):
		return []string{types.SegmentMediumValue}, nil
	default:
		return []string{types.SegmentLowValue}, nil
	}
}

// MessageCounter looks up the number of messages exchanged with a customer
type MessageCounter interface {
	CountMessages(ctx context.Context, customerID string) (int64, error)
}

// EngagementRule labels customers by messaging volume. The count lookup is
// sub-cached per customer with the same TTL as the classification itself;
// the cached count is keyed by customer id and never shared across customers.
type EngagementRule struct {
	Counter MessageCounter
	Cache   cache.Cache
	TTL     time.Duration
}

func (r EngagementRule) Name() string { return "engagement" }

func (r EngagementRule) Evaluate(ctx context.Context, input *Input) ([]string, error) {
	count, err := r.messageCount(ctx, input.Customer.ID)
	if err != nil {
		return nil, err
	}

	var labels []string
	switch {
	case count > highlyEngagedMessages:
		labels = append(labels, types.SegmentHighlyEngaged)
	case count > engagedMessages:
		labels = append(labels, types.SegmentEngaged)
	default:
		labels = append(labels, types.SegmentLowEngagement)
	}

	if input.Customer.ContactPreferences[types.ChannelWhatsApp] {
		labels = append(labels, types.SegmentWhatsAppEnabled)
	}
	return labels, nil
}

func (r EngagementRule) messageCount(ctx context.Context, customerID string) (int64, error) {
	key := cache.GenerateKey(cache.PrefixEngagement, customerID)
	if r.Cache != nil {
		if cached, found := r.Cache.Get(ctx, key); found {
			if n, err := strconv.ParseInt(cached, 10, 64); err == nil {
				return n, nil
			}
		}
	}

	count, err := r.Counter.CountMessages(ctx, customerID)
	if err != nil {
		return 0, ierr.WithError(err).
			WithHintf("Failed to count messages for customer %s", customerID).
			Mark(ierr.ErrDatabase)
	}

	if r.Cache != nil {
		r.Cache.SetWithTTL(ctx, key, fmt.Sprintf("%d", count), r.TTL)
	}
	return count, nil
}

// RecencyRule labels customers by days since their last purchase
type RecencyRule struct{}

func (r RecencyRule) Name() string { return "recency" }

func (r RecencyRule) Evaluate(_ context.Context, input *Input) ([]string, error) {
	last := input.Customer.Metrics.LastPurchaseDate
	if last == nil {
		return []string{types.SegmentNeverPurchased}, nil
	}

	days := input.AsOf().Sub(*last).Hours() / 24
	switch {
	case days <= activeDays:
		return []string{types.SegmentActive}, nil
	case days <= atRiskDays:
		return []string{types.SegmentAtRisk}, nil
	default:
		return []string{types.SegmentInactive}, nil
	}
}

// DefaultRules returns the fixed rule list in registration order. The set is
// explicit and static so each rule is individually testable.
func DefaultRules(counter MessageCounter, c cache.Cache, ttl time.Duration) []Rule {
	return []Rule{
		FrequencyRule{},
		SpendRule{},
		EngagementRule{Counter: counter, Cache: c, TTL: ttl},
		RecencyRule{},
	}
}
