package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/cartpulse/cartpulse/internal/domain/cart"
	"github.com/cartpulse/cartpulse/internal/domain/customer"
	"github.com/cartpulse/cartpulse/internal/domain/experiment"
	"github.com/cartpulse/cartpulse/internal/testutil"
	"github.com/cartpulse/cartpulse/internal/types"
)

// newTestServiceParams assembles ServiceParams on top of the in-memory
// stores of a base suite
func newTestServiceParams(s *testutil.BaseServiceTestSuite) ServiceParams {
	stores := s.GetStores()
	return ServiceParams{
		Logger:         s.GetLogger(),
		Config:         s.GetConfig(),
		Cache:          s.GetCache(),
		CustomerRepo:   stores.CustomerRepo,
		OrderRepo:      stores.OrderRepo,
		CartRepo:       stores.CartRepo,
		TemplateRepo:   stores.TemplateRepo,
		JobRepo:        stores.JobRepo,
		Experiments:    experiment.DefaultRegistry(),
		Dispatcher:     s.GetDispatcher(),
		EventPublisher: s.GetPublisher(),
	}
}

func testCustomer(id string) *customer.Customer {
	now := time.Now().UTC()
	return &customer.Customer{
		ID:         id,
		ExternalID: "ext-" + id,
		Name:       "Test Customer",
		Email:      id + "@example.com",
		Phone:      "+4915112345678",
		Type:       types.CustomerTypeIndividual,
		Metrics: customer.Metrics{
			TotalSpent:        decimal.Zero,
			AverageOrderValue: decimal.Zero,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func testCart(id, customerID string, total int64, lastActivity time.Time) *cart.Cart {
	c := &cart.Cart{
		ID:         id,
		CustomerID: customerID,
		Status:     types.CartStatusActive,
		Items: []cart.Item{
			{ProductID: "p1", Name: "product", Quantity: 1, UnitPrice: decimal.NewFromInt(total)},
		},
		TotalValue:   decimal.NewFromInt(total),
		LastActivity: lastActivity,
		CreatedAt:    lastActivity,
		UpdatedAt:    lastActivity,
	}
	return c
}
