package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/cartpulse/cartpulse/internal/cache"
	"github.com/cartpulse/cartpulse/internal/dispatch"
	"github.com/cartpulse/cartpulse/internal/domain/cart"
	"github.com/cartpulse/cartpulse/internal/domain/order"
	"github.com/cartpulse/cartpulse/internal/domain/recoveryplan"
	"github.com/cartpulse/cartpulse/internal/domain/scheduledjob"
	ierr "github.com/cartpulse/cartpulse/internal/errors"
	"github.com/cartpulse/cartpulse/internal/types"
)

// RecoveryService orchestrates the cart recovery lifecycle: detecting
// abandonment, building recovery plans, executing scheduled attempts and
// folding responses and conversions back in.
type RecoveryService interface {
	// RunAbandonmentSweep finds active carts inactive past the threshold,
	// marks them abandoned and builds a recovery plan for each. A failure on
	// one cart never blocks the rest; the count of carts newly abandoned is
	// returned.
	RunAbandonmentSweep(ctx context.Context) (int, error)

	// ExecuteAttempt runs one claimed scheduled job. Carts that left the
	// abandoned state in the meantime complete the job without sending.
	ExecuteAttempt(ctx context.Context, job *scheduledjob.ScheduledJob) error

	// HandleCartActivity reacts to the customer touching the cart again:
	// an abandoned cart reactivates and its pending attempts are cancelled
	HandleCartActivity(ctx context.Context, cartID string) error

	// RecordRecoveryResponse records the customer's reaction to a recovery
	// message. A converted response also converts the cart and credits the
	// experiments.
	RecordRecoveryResponse(ctx context.Context, cartID, attemptID string, response types.RecoveryResponse) error

	// HandleOrderPlaced folds a completed order in: converts the referenced
	// cart, updates the customer's purchase metrics and refreshes their
	// segments. The caller ingests the sale into analytics separately.
	HandleOrderPlaced(ctx context.Context, o *order.Order) error
}

type recoveryService struct {
	ServiceParams
	segmentation SegmentationService
	experiments  ExperimentService

	now func() time.Time
}

func NewRecoveryService(
	params ServiceParams,
	segmentation SegmentationService,
	experiments ExperimentService,
) RecoveryService {
	return &recoveryService{
		ServiceParams: params,
		segmentation:  segmentation,
		experiments:   experiments,
		now:           time.Now,
	}
}

func planKey(cartID string) string {
	return cache.GenerateKey(cache.PrefixPlan, cartID)
}

func (s *recoveryService) RunAbandonmentSweep(ctx context.Context) (int, error) {
	cutoff := s.now().UTC().Add(-s.Config.Recovery.AbandonmentThreshold())
	carts, err := s.CartRepo.ListActiveInactiveSince(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	abandoned := 0
	for _, c := range carts {
		if err := s.processAbandonment(ctx, c); err != nil {
			if ierr.IsConflict(err) {
				s.Logger.Debugw("cart claimed by another sweeper", "cart_id", c.ID)
				continue
			}
			s.Logger.Errorw("failed to process abandonment",
				"cart_id", c.ID, "customer_id", c.CustomerID, "error", err)
			continue
		}
		abandoned++
	}

	s.Logger.Infow("abandonment sweep finished",
		"candidates", len(carts), "abandoned", abandoned)
	return abandoned, nil
}

func (s *recoveryService) processAbandonment(ctx context.Context, c *cart.Cart) error {
	now := s.now().UTC()
	if err := c.MarkAbandoned(now); err != nil {
		return err
	}

	// the guarded update is the cross-instance claim: when two sweepers race
	// on the same cart, exactly one persists the transition and builds the
	// plan; the loser backs off with a conflict
	if err := s.CartRepo.UpdateIfStatus(ctx, c, types.CartStatusActive); err != nil {
		return err
	}

	// replace any jobs left from an earlier abandonment episode
	if err := s.JobRepo.CancelPendingByCart(ctx, c.ID); err != nil {
		s.revertAbandonment(ctx, c)
		return err
	}

	plan, err := s.buildPlan(ctx, c, now)
	if err != nil {
		s.revertAbandonment(ctx, c)
		return err
	}

	if err := s.storePlan(ctx, plan); err != nil {
		s.revertAbandonment(ctx, c)
		return err
	}

	for _, attempt := range plan.Attempts {
		job := scheduledjob.New(c.ID, plan.ID, attempt.ID, attempt.ScheduledFor)
		if err := s.JobRepo.Create(ctx, job); err != nil {
			s.revertAbandonment(ctx, c)
			return err
		}
	}

	if err := s.EventPublisher.Publish(ctx, types.TopicCartAbandoned, map[string]interface{}{
		"cart_id":     c.ID,
		"customer_id": c.CustomerID,
		"total_value": c.TotalValue,
		"plan_id":     plan.ID,
		"attempts":    len(plan.Attempts),
	}); err != nil {
		s.Logger.Errorw("failed to publish abandonment", "cart_id", c.ID, "error", err)
	}

	s.Logger.Infow("cart abandoned",
		"cart_id", c.ID, "customer_id", c.CustomerID,
		"plan_id", plan.ID, "attempts", len(plan.Attempts))
	return nil
}

// revertAbandonment rolls the cart back to active after a failed plan setup
// so the next sweep retries it instead of leaving an abandoned cart with no
// campaign. LastActivity is preserved, keeping the cart inside the sweep
// window. Best effort; a failed rollback is logged and picked up manually.
func (s *recoveryService) revertAbandonment(ctx context.Context, c *cart.Cart) {
	s.Cache.Delete(ctx, planKey(c.ID))
	if err := s.JobRepo.CancelPendingByCart(ctx, c.ID); err != nil {
		s.Logger.Errorw("failed to cancel jobs while reverting abandonment",
			"cart_id", c.ID, "error", err)
	}

	if err := c.RevertAbandonment(s.now().UTC()); err != nil {
		s.Logger.Errorw("failed to revert abandonment",
			"cart_id", c.ID, "status", c.Status, "error", err)
		return
	}
	if err := s.CartRepo.Update(ctx, c); err != nil {
		s.Logger.Errorw("failed to persist abandonment rollback",
			"cart_id", c.ID, "error", err)
	}
}

// buildPlan assigns the customer to every active experiment and lays out the
// attempt schedule from the configured windows, dropping attempts whose
// channel intersection comes up empty.
func (s *recoveryService) buildPlan(ctx context.Context, c *cart.Cart, now time.Time) (*recoveryplan.Plan, error) {
	variants := make(map[string]string)
	for _, def := range s.Experiments.Active() {
		variant, err := s.experiments.AssignVariant(ctx, def.Name, c.CustomerID)
		if err != nil {
			return nil, err
		}
		variants[def.Name] = variant
	}

	allowed, err := s.allowedChannels(ctx, c)
	if err != nil {
		return nil, err
	}

	plan := &recoveryplan.Plan{
		ID:         types.GenerateUUIDWithPrefix(types.UUIDPrefixRecoveryPlan),
		CartID:     c.ID,
		CustomerID: c.CustomerID,
		Variants:   variants,
		CreatedAt:  now,
	}

	sequence := 0
	for _, window := range s.Config.Recovery.AttemptWindows {
		channels := lo.FilterMap(window.Channels, func(name string, _ int) (types.Channel, bool) {
			ch := types.Channel(name)
			return ch, lo.Contains(allowed, ch)
		})
		if len(channels) == 0 {
			continue
		}

		sequence++
		plan.Attempts = append(plan.Attempts, recoveryplan.Attempt{
			ID:           types.GenerateUUIDWithPrefix(types.UUIDPrefixRecoveryAttempt),
			Sequence:     sequence,
			ScheduledFor: now.Add(window.Offset()),
			Channels:     channels,
		})
	}
	return plan, nil
}

// allowedChannels widens the channel set to whatsapp for high value targets:
// customers in the high_value segment or carts above the configured
// threshold. Explicit opt-outs are then removed.
func (s *recoveryService) allowedChannels(ctx context.Context, c *cart.Cart) ([]types.Channel, error) {
	cust, err := s.CustomerRepo.Get(ctx, c.CustomerID)
	if err != nil {
		return nil, err
	}

	segments, err := s.segmentation.Classify(ctx, c.CustomerID)
	if err != nil {
		return nil, err
	}

	highValue := lo.Contains(segments, types.SegmentHighValue) ||
		c.TotalValue.InexactFloat64() > s.Config.Recovery.HighValueCartThreshold

	candidates := []types.Channel{types.ChannelEmail}
	if highValue {
		candidates = []types.Channel{types.ChannelWhatsApp, types.ChannelEmail}
	}

	return lo.Filter(candidates, func(ch types.Channel, _ int) bool {
		return cust.AcceptsChannel(ch)
	}), nil
}

func (s *recoveryService) storePlan(ctx context.Context, plan *recoveryplan.Plan) error {
	encoded, err := json.Marshal(plan)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to marshal recovery plan").
			Mark(ierr.ErrSystem)
	}
	s.Cache.SetWithTTL(ctx, planKey(plan.CartID), string(encoded), s.Config.Recovery.PlanTTL())
	return nil
}

func (s *recoveryService) loadPlan(ctx context.Context, cartID string) (*recoveryplan.Plan, error) {
	cached, found := s.Cache.Get(ctx, planKey(cartID))
	if !found {
		return nil, ierr.NewError("recovery plan not found").
			WithHintf("No recovery plan cached for cart %s", cartID).
			Mark(ierr.ErrNotFound)
	}
	var plan recoveryplan.Plan
	if err := json.Unmarshal([]byte(cached), &plan); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Corrupt recovery plan in cache").
			Mark(ierr.ErrSystem)
	}
	return &plan, nil
}

func (s *recoveryService) ExecuteAttempt(ctx context.Context, job *scheduledjob.ScheduledJob) error {
	c, err := s.CartRepo.Get(ctx, job.CartID)
	if err != nil {
		return err
	}

	// the cart may have reactivated, converted or expired since scheduling;
	// the attempt simply evaporates
	if c.Status != types.CartStatusAbandoned {
		s.Logger.Infow("skipping attempt for non-abandoned cart",
			"cart_id", c.ID, "status", c.Status, "job_id", job.ID)
		return s.JobRepo.Complete(ctx, job.ID)
	}

	plan, err := s.loadPlan(ctx, c.ID)
	if err != nil {
		if ierr.IsNotFound(err) {
			// the plan expired out of the cache; nothing left to send
			s.Logger.Warnw("recovery plan expired before attempt",
				"cart_id", c.ID, "job_id", job.ID)
			return s.JobRepo.Complete(ctx, job.ID)
		}
		return err
	}

	attempt, ok := plan.FindAttempt(job.AttemptID)
	if !ok {
		// the plan was replaced while this job sat claimed, so the job
		// belongs to a dead episode; completing it stops it from bouncing
		// between pending and claimed forever
		s.Logger.Warnw("attempt not in current plan, retiring job",
			"cart_id", c.ID, "job_id", job.ID,
			"attempt_id", job.AttemptID, "plan_id", plan.ID)
		return s.JobRepo.Complete(ctx, job.ID)
	}

	cust, err := s.CustomerRepo.Get(ctx, c.CustomerID)
	if err != nil {
		return err
	}

	variables := s.templateVariables(c, cust.Name, plan)
	tags := []string{
		plan.Variants[types.ExperimentMessageStyle],
		plan.Variants[types.ExperimentDiscountOffer],
	}

	sent := 0
	for _, channel := range attempt.Channels {
		tmpl, err := s.TemplateRepo.FindByTags(ctx, channel, types.TemplateCategoryCartRecovery, tags)
		if err != nil {
			if ierr.IsTemplateNotFound(err) {
				s.Logger.Warnw("no template for channel, skipping",
					"cart_id", c.ID, "channel", channel, "tags", tags)
				continue
			}
			return err
		}

		result, err := s.Dispatcher.Send(ctx, &dispatch.Request{
			Recipient:  cust.RecipientFor(channel),
			Channel:    channel,
			TemplateID: tmpl.ID,
			Subject:    dispatch.Render(tmpl.Subject, variables),
			Body:       dispatch.Render(tmpl.Body, variables),
			Variables:  variables,
		})
		if err != nil {
			s.Logger.Errorw("dispatch failed",
				"cart_id", c.ID, "channel", channel, "error", err)
			continue
		}

		record := cart.RecoveryAttempt{
			ID:            types.GenerateUUIDWithPrefix(types.UUIDPrefixRecoveryAttempt),
			PlanAttemptID: attempt.ID,
			Channel:       channel,
			TemplateID:    tmpl.ID,
			SentAt:        s.now().UTC(),
			Response:      types.RecoveryResponseNone,
		}
		c.AppendRecoveryAttempt(record)
		sent++

		if err := s.EventPublisher.Publish(ctx, types.TopicRecoveryAttempt, map[string]interface{}{
			"cart_id":         c.ID,
			"customer_id":     c.CustomerID,
			"attempt_id":      record.ID,
			"plan_attempt_id": attempt.ID,
			"sequence":        attempt.Sequence,
			"channel":         channel,
			"message_id":      result.MessageID,
		}); err != nil {
			s.Logger.Errorw("failed to publish recovery attempt", "cart_id", c.ID, "error", err)
		}
	}

	if sent > 0 {
		if err := s.CartRepo.Update(ctx, c); err != nil {
			return err
		}
	}

	return s.JobRepo.Complete(ctx, job.ID)
}

func (s *recoveryService) templateVariables(c *cart.Cart, customerName string, plan *recoveryplan.Plan) map[string]string {
	discount := ""
	switch plan.Variants[types.ExperimentDiscountOffer] {
	case types.VariantTenPercentOff:
		discount = "10%"
	case types.VariantTwentyPercentOff:
		discount = "20%"
	}

	return map[string]string{
		"customer_name": customerName,
		"cart_total":    c.TotalValue.StringFixed(2),
		"item_count":    fmt.Sprintf("%d", c.ItemCount()),
		"recovery_url":  fmt.Sprintf("%s/recover/%s", s.Config.Recovery.RecoveryBaseURL, c.ID),
		"discount":      discount,
	}
}

func (s *recoveryService) HandleCartActivity(ctx context.Context, cartID string) error {
	c, err := s.CartRepo.Get(ctx, cartID)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	switch c.Status {
	case types.CartStatusActive:
		c.LastActivity = now
		c.UpdatedAt = now
		return s.CartRepo.Update(ctx, c)

	case types.CartStatusAbandoned:
		if err := c.Reactivate(now); err != nil {
			return err
		}
		if err := s.CartRepo.Update(ctx, c); err != nil {
			return err
		}
		if err := s.JobRepo.CancelPendingByCart(ctx, c.ID); err != nil {
			return err
		}
		s.Cache.Delete(ctx, planKey(c.ID))
		s.Logger.Infow("cart reactivated", "cart_id", c.ID)
		return nil

	default:
		// converted and expired carts ignore late activity
		return nil
	}
}

func (s *recoveryService) RecordRecoveryResponse(ctx context.Context, cartID, attemptID string, response types.RecoveryResponse) error {
	if !response.Validate() {
		return ierr.NewError("invalid recovery response").
			WithHintf("Response must be one of none, opened, clicked, converted, got %s", response).
			Mark(ierr.ErrValidation)
	}

	c, err := s.CartRepo.Get(ctx, cartID)
	if err != nil {
		return err
	}

	attempt, ok := c.FindRecoveryAttempt(attemptID)
	if !ok {
		return ierr.NewError("recovery attempt not found").
			WithHintf("Cart %s has no recovery attempt %s", cartID, attemptID).
			Mark(ierr.ErrNotFound)
	}
	attempt.Response = response

	if response == types.RecoveryResponseConverted {
		if err := s.convertCart(ctx, c); err != nil {
			return err
		}
	}
	return s.CartRepo.Update(ctx, c)
}

func (s *recoveryService) HandleOrderPlaced(ctx context.Context, o *order.Order) error {
	if o.CartID != "" {
		c, err := s.CartRepo.Get(ctx, o.CartID)
		if err != nil {
			if !ierr.IsNotFound(err) {
				return err
			}
			s.Logger.Warnw("order references unknown cart",
				"order_id", o.ID, "cart_id", o.CartID)
		} else if c.Status == types.CartStatusActive || c.Status == types.CartStatusAbandoned {
			if err := s.convertCart(ctx, c); err != nil {
				return err
			}
			if err := s.CartRepo.Update(ctx, c); err != nil {
				return err
			}
		}
	}

	cust, err := s.CustomerRepo.Get(ctx, o.CustomerID)
	if err != nil {
		return err
	}
	cust.ApplyOrder(o.Total, o.CreatedAt)
	if err := s.CustomerRepo.Update(ctx, cust); err != nil {
		return err
	}

	// purchase metrics changed, so the classification is stale
	if _, err := s.segmentation.RefreshSegments(ctx, o.CustomerID); err != nil {
		s.Logger.Errorw("failed to refresh segments after order",
			"customer_id", o.CustomerID, "error", err)
	}
	return nil
}

// convertCart converts the cart in place, cancels its remaining attempts and
// credits the enrolled experiments. The caller persists the cart.
func (s *recoveryService) convertCart(ctx context.Context, c *cart.Cart) error {
	now := s.now().UTC()
	if err := c.MarkConverted(now); err != nil {
		return err
	}

	if err := s.JobRepo.CancelPendingByCart(ctx, c.ID); err != nil {
		return err
	}
	s.Cache.Delete(ctx, planKey(c.ID))

	// only carts we actually messaged carry experiment signal
	if len(c.RecoveryAttempts) > 0 {
		for _, name := range []string{types.ExperimentTiming, types.ExperimentMessageStyle, types.ExperimentDiscountOffer} {
			if err := s.experiments.RecordConversion(ctx, name, c.CustomerID); err != nil {
				s.Logger.Errorw("failed to record experiment conversion",
					"experiment", name, "customer_id", c.CustomerID, "error", err)
			}
		}
	}

	if err := s.EventPublisher.Publish(ctx, types.TopicCartConverted, map[string]interface{}{
		"cart_id":     c.ID,
		"customer_id": c.CustomerID,
		"total_value": c.TotalValue,
	}); err != nil {
		s.Logger.Errorw("failed to publish conversion", "cart_id", c.ID, "error", err)
	}
	return nil
}
