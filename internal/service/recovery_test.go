package service

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/cartpulse/cartpulse/internal/domain/order"
	"github.com/cartpulse/cartpulse/internal/domain/recoveryplan"
	"github.com/cartpulse/cartpulse/internal/domain/scheduledjob"
	"github.com/cartpulse/cartpulse/internal/domain/template"
	ierr "github.com/cartpulse/cartpulse/internal/errors"
	"github.com/cartpulse/cartpulse/internal/testutil"
	"github.com/cartpulse/cartpulse/internal/types"
)

type RecoveryServiceSuite struct {
	testutil.BaseServiceTestSuite
	service     *recoveryService
	experiments *experimentService
	now         time.Time
	draw        float64
}

func TestRecoveryService(t *testing.T) {
	suite.Run(t, new(RecoveryServiceSuite))
}

func (s *RecoveryServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.now = time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	s.draw = 0.1

	params := newTestServiceParams(&s.BaseServiceTestSuite)
	s.experiments = &experimentService{
		ServiceParams: params,
		draw:          func() float64 { return s.draw },
	}
	s.service = &recoveryService{
		ServiceParams: params,
		segmentation:  NewSegmentationService(params),
		experiments:   s.experiments,
		now:           func() time.Time { return s.now },
	}
}

// seedTemplates registers email and whatsapp recovery templates matching the
// variants a 0.1 draw produces: persuasive style, no discount
func (s *RecoveryServiceSuite) seedTemplates() {
	for _, channel := range []types.Channel{types.ChannelEmail, types.ChannelWhatsApp} {
		s.GetStores().TemplateRepo.Add(&template.MessageTemplate{
			ID:       "tmpl-" + string(channel),
			Name:     "recovery " + string(channel),
			Channel:  channel,
			Category: types.TemplateCategoryCartRecovery,
			Tags:     []string{types.VariantPersuasive, types.VariantNoDiscount},
			Subject:  "Your cart misses you, {{customer_name}}",
			Body:     "Hi {{customer_name}}, {{item_count}} items for {{cart_total}} are waiting: {{recovery_url}}",
			Active:   true,
		})
	}
}

// seedAbandonedCart drives one cart through the sweep and returns its id
func (s *RecoveryServiceSuite) seedAbandonedCart(total int64) string {
	s.GetStores().CustomerRepo.Add(testCustomer("cust-1"))
	c := testCart("cart-1", "cust-1", total, s.now.Add(-time.Hour))
	s.Require().NoError(s.GetStores().CartRepo.Create(s.GetContext(), c))

	count, err := s.service.RunAbandonmentSweep(s.GetContext())
	s.Require().NoError(err)
	s.Require().Equal(1, count)
	return c.ID
}

func (s *RecoveryServiceSuite) loadCachedPlan(cartID string) *recoveryplan.Plan {
	raw, found := s.GetCache().Get(s.GetContext(), planKey(cartID))
	s.Require().True(found, "no plan cached for cart %s", cartID)
	var plan recoveryplan.Plan
	s.Require().NoError(json.Unmarshal([]byte(raw), &plan))
	return &plan
}

func (s *RecoveryServiceSuite) TestSweepMarksCartsAbandoned() {
	s.seedAbandonedCart(50)

	stored, err := s.GetStores().CartRepo.Get(s.GetContext(), "cart-1")
	s.NoError(err)
	s.Equal(types.CartStatusAbandoned, stored.Status)
	s.NotNil(stored.AbandonedAt)

	events := s.GetPublisher().EventsForTopic(types.TopicCartAbandoned)
	s.Len(events, 1)
}

func (s *RecoveryServiceSuite) TestSweepIgnoresRecentAndEmptyCarts() {
	s.GetStores().CustomerRepo.Add(testCustomer("cust-1"))

	recent := testCart("cart-recent", "cust-1", 50, s.now.Add(-10*time.Minute))
	s.NoError(s.GetStores().CartRepo.Create(s.GetContext(), recent))

	empty := testCart("cart-empty", "cust-1", 0, s.now.Add(-time.Hour))
	empty.Items = nil
	s.NoError(s.GetStores().CartRepo.Create(s.GetContext(), empty))

	count, err := s.service.RunAbandonmentSweep(s.GetContext())
	s.NoError(err)
	s.Equal(0, count)
}

func (s *RecoveryServiceSuite) TestSweepIsIdempotent() {
	s.seedAbandonedCart(50)

	// the cart is already abandoned, so a second sweep finds nothing
	count, err := s.service.RunAbandonmentSweep(s.GetContext())
	s.NoError(err)
	s.Equal(0, count)

	pending := s.GetStores().JobRepo.JobsByStatus(types.ScheduledJobStatusPending)
	s.Len(pending, 2)
}

func (s *RecoveryServiceSuite) TestPlanForRegularCustomerIsEmailOnly() {
	cartID := s.seedAbandonedCart(50)
	plan := s.loadCachedPlan(cartID)

	// the whatsapp-only first window drops out entirely
	s.Len(plan.Attempts, 2)
	s.Equal([]types.Channel{types.ChannelEmail}, plan.Attempts[0].Channels)
	s.Equal([]types.Channel{types.ChannelEmail}, plan.Attempts[1].Channels)
	s.Equal(s.now.Add(24*time.Hour), plan.Attempts[0].ScheduledFor)
	s.Equal(s.now.Add(72*time.Hour), plan.Attempts[1].ScheduledFor)
	s.Equal(1, plan.Attempts[0].Sequence)
	s.Equal(2, plan.Attempts[1].Sequence)

	// every experiment got a variant
	s.Len(plan.Variants, 3)
	s.Equal(types.VariantPersuasive, plan.Variants[types.ExperimentMessageStyle])

	pending := s.GetStores().JobRepo.JobsByStatus(types.ScheduledJobStatusPending)
	s.Len(pending, 2)
}

func (s *RecoveryServiceSuite) TestPlanForHighValueCartUsesWhatsApp() {
	cartID := s.seedAbandonedCart(1500)
	plan := s.loadCachedPlan(cartID)

	s.Len(plan.Attempts, 3)
	s.Equal([]types.Channel{types.ChannelWhatsApp}, plan.Attempts[0].Channels)
	s.Equal([]types.Channel{types.ChannelEmail, types.ChannelWhatsApp}, plan.Attempts[1].Channels)
	s.Equal([]types.Channel{types.ChannelEmail}, plan.Attempts[2].Channels)
	s.Equal(s.now.Add(time.Hour), plan.Attempts[0].ScheduledFor)
}

func (s *RecoveryServiceSuite) TestPlanHonoursWhatsAppOptOut() {
	cust := testCustomer("cust-1")
	cust.ContactPreferences = map[types.Channel]bool{types.ChannelWhatsApp: false}
	s.GetStores().CustomerRepo.Add(cust)

	c := testCart("cart-1", "cust-1", 1500, s.now.Add(-time.Hour))
	s.NoError(s.GetStores().CartRepo.Create(s.GetContext(), c))

	count, err := s.service.RunAbandonmentSweep(s.GetContext())
	s.NoError(err)
	s.Equal(1, count)

	plan := s.loadCachedPlan("cart-1")
	s.Len(plan.Attempts, 2)
	for _, attempt := range plan.Attempts {
		s.Equal([]types.Channel{types.ChannelEmail}, attempt.Channels)
	}
}

func (s *RecoveryServiceSuite) claimDue(at time.Time) []*scheduledjob.ScheduledJob {
	jobs, err := s.GetStores().JobRepo.ClaimDue(s.GetContext(), "test-worker", at, 2*time.Minute, 50)
	s.Require().NoError(err)
	return jobs
}

func (s *RecoveryServiceSuite) TestExecuteAttemptSendsAndRecords() {
	s.seedTemplates()
	cartID := s.seedAbandonedCart(50)

	s.now = s.now.Add(25 * time.Hour)
	jobs := s.claimDue(s.now)
	s.Require().Len(jobs, 1)

	s.NoError(s.service.ExecuteAttempt(s.GetContext(), jobs[0]))

	requests := s.GetDispatcher().Requests()
	s.Require().Len(requests, 1)
	s.Equal(types.ChannelEmail, requests[0].Channel)
	s.Equal("cust-1@example.com", requests[0].Recipient)
	s.Contains(requests[0].Body, "Hi Test Customer")
	s.Contains(requests[0].Body, fmt.Sprintf("https://shop.test/recover/%s", cartID))
	s.NotContains(requests[0].Body, "{{")

	stored, err := s.GetStores().CartRepo.Get(s.GetContext(), cartID)
	s.NoError(err)
	s.Require().Len(stored.RecoveryAttempts, 1)
	s.Equal(types.RecoveryResponseNone, stored.RecoveryAttempts[0].Response)

	job, err := s.GetStores().JobRepo.Get(s.GetContext(), jobs[0].ID)
	s.NoError(err)
	s.Equal(types.ScheduledJobStatusCompleted, job.Status)

	events := s.GetPublisher().EventsForTopic(types.TopicRecoveryAttempt)
	s.Len(events, 1)
}

func (s *RecoveryServiceSuite) TestExecuteAttemptSkipsReactivatedCart() {
	s.seedTemplates()
	cartID := s.seedAbandonedCart(50)

	s.NoError(s.service.HandleCartActivity(s.GetContext(), cartID))

	// a job claimed before the reactivation still completes without sending
	job := scheduledjob.New(cartID, "plan-x", "attempt-x", s.now)
	s.NoError(s.GetStores().JobRepo.Create(s.GetContext(), job))
	s.NoError(s.service.ExecuteAttempt(s.GetContext(), job))

	s.Empty(s.GetDispatcher().Requests())

	stored, err := s.GetStores().JobRepo.Get(s.GetContext(), job.ID)
	s.NoError(err)
	s.Equal(types.ScheduledJobStatusCompleted, stored.Status)
}

func (s *RecoveryServiceSuite) TestExecuteAttemptSkipsChannelWithoutTemplate() {
	// no templates seeded at all
	s.seedAbandonedCart(50)

	s.now = s.now.Add(25 * time.Hour)
	jobs := s.claimDue(s.now)
	s.Require().Len(jobs, 1)

	s.NoError(s.service.ExecuteAttempt(s.GetContext(), jobs[0]))
	s.Empty(s.GetDispatcher().Requests())

	// the attempt is spent either way
	stored, err := s.GetStores().JobRepo.Get(s.GetContext(), jobs[0].ID)
	s.NoError(err)
	s.Equal(types.ScheduledJobStatusCompleted, stored.Status)

	cart, err := s.GetStores().CartRepo.Get(s.GetContext(), jobs[0].CartID)
	s.NoError(err)
	s.Empty(cart.RecoveryAttempts)
}

func (s *RecoveryServiceSuite) TestSweepRetriesAfterPlanBuildFailure() {
	s.GetStores().CustomerRepo.Add(testCustomer("cust-1"))
	c := testCart("cart-1", "cust-1", 50, s.now.Add(-time.Hour))
	s.Require().NoError(s.GetStores().CartRepo.Create(s.GetContext(), c))

	// the engagement lookup fails mid-plan, so the abandonment rolls back
	s.GetStores().CustomerRepo.FailMessageCounts(ierr.NewError("store down").Mark(ierr.ErrDatabase))
	count, err := s.service.RunAbandonmentSweep(s.GetContext())
	s.NoError(err)
	s.Equal(0, count)

	stored, err := s.GetStores().CartRepo.Get(s.GetContext(), "cart-1")
	s.NoError(err)
	s.Equal(types.CartStatusActive, stored.Status)
	s.Nil(stored.AbandonedAt)
	_, found := s.GetCache().Get(s.GetContext(), planKey("cart-1"))
	s.False(found)
	s.Empty(s.GetStores().JobRepo.JobsByStatus(types.ScheduledJobStatusPending))

	// once the store recovers the very next sweep picks the cart up again
	s.GetStores().CustomerRepo.FailMessageCounts(nil)
	count, err = s.service.RunAbandonmentSweep(s.GetContext())
	s.NoError(err)
	s.Equal(1, count)
	s.loadCachedPlan("cart-1")
	s.Len(s.GetStores().JobRepo.JobsByStatus(types.ScheduledJobStatusPending), 2)
}

func (s *RecoveryServiceSuite) TestSweepSkipsCartClaimedByPeer() {
	s.GetStores().CustomerRepo.Add(testCustomer("cust-1"))
	c := testCart("cart-1", "cust-1", 50, s.now.Add(-time.Hour))
	s.Require().NoError(s.GetStores().CartRepo.Create(s.GetContext(), c))

	// another instance flips the stored cart between our listing and our
	// own transition
	peer, err := s.GetStores().CartRepo.Get(s.GetContext(), "cart-1")
	s.Require().NoError(err)
	s.Require().NoError(peer.MarkAbandoned(s.now))
	s.Require().NoError(s.GetStores().CartRepo.Update(s.GetContext(), peer))

	err = s.service.processAbandonment(s.GetContext(), c)
	s.Error(err)
	s.True(ierr.IsConflict(err))

	// the loser leaves no plan and no jobs behind
	_, found := s.GetCache().Get(s.GetContext(), planKey("cart-1"))
	s.False(found)
	s.Empty(s.GetStores().JobRepo.JobsByStatus(types.ScheduledJobStatusPending))
}

func (s *RecoveryServiceSuite) TestExecuteAttemptFromReplacedPlanIsRetired() {
	s.seedTemplates()
	cartID := s.seedAbandonedCart(50)

	s.now = s.now.Add(25 * time.Hour)
	jobs := s.claimDue(s.now)
	s.Require().Len(jobs, 1)

	// the customer comes back and wanders off again while the job sits
	// claimed, so the plan is rebuilt underneath it
	s.NoError(s.service.HandleCartActivity(s.GetContext(), cartID))
	s.now = s.now.Add(time.Hour)
	count, err := s.service.RunAbandonmentSweep(s.GetContext())
	s.Require().NoError(err)
	s.Require().Equal(1, count)

	s.NoError(s.service.ExecuteAttempt(s.GetContext(), jobs[0]))
	s.Empty(s.GetDispatcher().Requests())

	// the job is spent for good rather than bouncing back to pending
	stored, err := s.GetStores().JobRepo.Get(s.GetContext(), jobs[0].ID)
	s.NoError(err)
	s.Equal(types.ScheduledJobStatusCompleted, stored.Status)
}

func (s *RecoveryServiceSuite) TestHandleCartActivityReactivates() {
	cartID := s.seedAbandonedCart(50)

	s.NoError(s.service.HandleCartActivity(s.GetContext(), cartID))

	stored, err := s.GetStores().CartRepo.Get(s.GetContext(), cartID)
	s.NoError(err)
	s.Equal(types.CartStatusActive, stored.Status)
	s.Nil(stored.AbandonedAt)

	s.Empty(s.GetStores().JobRepo.JobsByStatus(types.ScheduledJobStatusPending))
	_, found := s.GetCache().Get(s.GetContext(), planKey(cartID))
	s.False(found)
}

func (s *RecoveryServiceSuite) TestReabandonmentReplacesPlan() {
	cartID := s.seedAbandonedCart(50)
	firstPlan := s.loadCachedPlan(cartID)

	s.NoError(s.service.HandleCartActivity(s.GetContext(), cartID))

	// the customer wanders off again
	s.now = s.now.Add(2 * time.Hour)
	count, err := s.service.RunAbandonmentSweep(s.GetContext())
	s.NoError(err)
	s.Equal(1, count)

	secondPlan := s.loadCachedPlan(cartID)
	s.NotEqual(firstPlan.ID, secondPlan.ID)

	// only the second plan's jobs are pending
	pending := s.GetStores().JobRepo.JobsByStatus(types.ScheduledJobStatusPending)
	s.Len(pending, 2)
	for _, job := range pending {
		s.Equal(secondPlan.ID, job.PlanID)
	}
}

func (s *RecoveryServiceSuite) TestRecordRecoveryResponseConverted() {
	s.seedTemplates()
	cartID := s.seedAbandonedCart(50)

	s.now = s.now.Add(25 * time.Hour)
	jobs := s.claimDue(s.now)
	s.Require().Len(jobs, 1)
	s.NoError(s.service.ExecuteAttempt(s.GetContext(), jobs[0]))

	stored, err := s.GetStores().CartRepo.Get(s.GetContext(), cartID)
	s.NoError(err)
	attemptID := stored.RecoveryAttempts[0].ID

	s.NoError(s.service.RecordRecoveryResponse(s.GetContext(), cartID, attemptID, types.RecoveryResponseConverted))

	converted, err := s.GetStores().CartRepo.Get(s.GetContext(), cartID)
	s.NoError(err)
	s.Equal(types.CartStatusConverted, converted.Status)
	s.Equal(types.RecoveryResponseConverted, converted.RecoveryAttempts[0].Response)

	// the remaining attempt never fires
	s.Empty(s.GetStores().JobRepo.JobsByStatus(types.ScheduledJobStatusPending))

	// the conversion is credited to the assigned variants
	results, err := s.experiments.Results(s.GetContext(), types.ExperimentMessageStyle)
	s.NoError(err)
	s.Equal(int64(1), results[0].Conversions)

	events := s.GetPublisher().EventsForTopic(types.TopicCartConverted)
	s.Len(events, 1)
}

func (s *RecoveryServiceSuite) TestRecoveryResponseTargetsChannelRecord() {
	s.seedTemplates()
	cartID := s.seedAbandonedCart(1500)
	plan := s.loadCachedPlan(cartID)

	s.now = s.now.Add(25 * time.Hour)
	jobs := s.claimDue(s.now)
	s.Require().Len(jobs, 2)

	// the second attempt fans out over email and whatsapp, one record each
	s.NoError(s.service.ExecuteAttempt(s.GetContext(), jobs[1]))

	stored, err := s.GetStores().CartRepo.Get(s.GetContext(), cartID)
	s.NoError(err)
	s.Require().Len(stored.RecoveryAttempts, 2)
	email, whatsapp := stored.RecoveryAttempts[0], stored.RecoveryAttempts[1]
	s.Equal(types.ChannelEmail, email.Channel)
	s.Equal(types.ChannelWhatsApp, whatsapp.Channel)
	s.NotEqual(email.ID, whatsapp.ID)
	s.Equal(plan.Attempts[1].ID, email.PlanAttemptID)
	s.Equal(plan.Attempts[1].ID, whatsapp.PlanAttemptID)

	s.NoError(s.service.RecordRecoveryResponse(s.GetContext(), cartID, whatsapp.ID, types.RecoveryResponseOpened))

	// only the whatsapp record carries the response
	after, err := s.GetStores().CartRepo.Get(s.GetContext(), cartID)
	s.NoError(err)
	s.Equal(types.RecoveryResponseNone, after.RecoveryAttempts[0].Response)
	s.Equal(types.RecoveryResponseOpened, after.RecoveryAttempts[1].Response)
}

func (s *RecoveryServiceSuite) TestRecordRecoveryResponseValidation() {
	cartID := s.seedAbandonedCart(50)

	err := s.service.RecordRecoveryResponse(s.GetContext(), cartID, "attempt-x", types.RecoveryResponse("bogus"))
	s.Error(err)

	err = s.service.RecordRecoveryResponse(s.GetContext(), cartID, "attempt-x", types.RecoveryResponseOpened)
	s.Error(err)
}

func (s *RecoveryServiceSuite) TestHandleOrderPlacedConvertsCart() {
	cartID := s.seedAbandonedCart(50)

	o := &order.Order{
		ID:         "ord-1",
		CustomerID: "cust-1",
		CartID:     cartID,
		Total:      decimal.NewFromInt(50),
		Status:     "completed",
		CreatedAt:  time.Now().UTC(),
	}
	s.GetStores().OrderRepo.Add(o)

	s.NoError(s.service.HandleOrderPlaced(s.GetContext(), o))

	stored, err := s.GetStores().CartRepo.Get(s.GetContext(), cartID)
	s.NoError(err)
	s.Equal(types.CartStatusConverted, stored.Status)

	s.Empty(s.GetStores().JobRepo.JobsByStatus(types.ScheduledJobStatusPending))

	cust, err := s.GetStores().CustomerRepo.Get(s.GetContext(), "cust-1")
	s.NoError(err)
	s.Equal(1, cust.Metrics.TotalOrders)
	s.True(cust.Metrics.TotalSpent.Equal(decimal.NewFromInt(50)))
	s.NotNil(cust.Metrics.LastPurchaseDate)

	// the refreshed classification reflects the purchase
	s.NotContains(cust.Segments, types.SegmentNewCustomer)
	s.Contains(cust.Segments, types.SegmentActive)
}

func (s *RecoveryServiceSuite) TestHandleOrderPlacedWithoutCart() {
	s.GetStores().CustomerRepo.Add(testCustomer("cust-1"))

	o := &order.Order{
		ID:         "ord-1",
		CustomerID: "cust-1",
		Total:      decimal.NewFromInt(25),
		Status:     "completed",
		CreatedAt:  s.now,
	}
	s.GetStores().OrderRepo.Add(o)

	s.NoError(s.service.HandleOrderPlaced(s.GetContext(), o))

	cust, err := s.GetStores().CustomerRepo.Get(s.GetContext(), "cust-1")
	s.NoError(err)
	s.Equal(1, cust.Metrics.TotalOrders)
}
