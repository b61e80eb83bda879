package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cyclebill/cyclebill/internal/config"
	"github.com/cyclebill/cyclebill/internal/domain/billing"
	"github.com/cyclebill/cyclebill/internal/domain/cusproduct"
	"github.com/cyclebill/cyclebill/internal/domain/product"
	"github.com/cyclebill/cyclebill/internal/domain/proration"
	"github.com/cyclebill/cyclebill/internal/domain/schedule"
	ierr "github.com/cyclebill/cyclebill/internal/errors"
	"github.com/cyclebill/cyclebill/internal/logger"
	"github.com/cyclebill/cyclebill/internal/processor"
	"github.com/cyclebill/cyclebill/internal/types"
)

// inMemoryCusProductRepo is a map-backed cusproduct.Repository for tests.
type inMemoryCusProductRepo struct {
	rows map[string]*cusproduct.CustomerProduct

	failInsert bool
}

func newCusProductRepo() *inMemoryCusProductRepo {
	return &inMemoryCusProductRepo{rows: map[string]*cusproduct.CustomerProduct{}}
}

func (r *inMemoryCusProductRepo) ListByCustomer(_ context.Context, customerID string) ([]*cusproduct.CustomerProduct, error) {
	var out []*cusproduct.CustomerProduct
	for _, cp := range r.rows {
		if cp.CustomerID == customerID {
			clone := *cp
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *inMemoryCusProductRepo) Get(_ context.Context, id string) (*cusproduct.CustomerProduct, error) {
	cp, ok := r.rows[id]
	if !ok {
		return nil, ierr.NewErrorf("customer product %s not found", id).Mark(ierr.ErrNotFound)
	}
	clone := *cp
	return &clone, nil
}

func (r *inMemoryCusProductRepo) Insert(_ context.Context, cp *cusproduct.CustomerProduct) error {
	if r.failInsert {
		return ierr.NewError("store unavailable").Mark(ierr.ErrSystem)
	}
	if _, ok := r.rows[cp.ID]; ok {
		return ierr.NewErrorf("customer product %s already exists", cp.ID).Mark(ierr.ErrAlreadyExists)
	}
	clone := *cp
	r.rows[cp.ID] = &clone
	return nil
}

func (r *inMemoryCusProductRepo) Update(_ context.Context, patch *cusproduct.Patch) error {
	cp, ok := r.rows[patch.CustomerProductID]
	if !ok {
		return ierr.NewErrorf("customer product %s not found", patch.CustomerProductID).Mark(ierr.ErrNotFound)
	}
	patch.Apply(cp)
	return nil
}

func (r *inMemoryCusProductRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.rows[id]; !ok {
		return ierr.NewErrorf("customer product %s not found", id).Mark(ierr.ErrNotFound)
	}
	delete(r.rows, id)
	return nil
}

// inMemoryProductRepo serves fixed products keyed by id.
type inMemoryProductRepo struct {
	products map[string]*product.Product
}

func newProductRepo(products ...*product.Product) *inMemoryProductRepo {
	r := &inMemoryProductRepo{products: map[string]*product.Product{}}
	for _, p := range products {
		r.products[p.ID] = p
	}
	return r
}

func (r *inMemoryProductRepo) Get(_ context.Context, id string) (*product.Product, error) {
	p, ok := r.products[id]
	if !ok {
		return nil, ierr.NewErrorf("product %s not found", id).Mark(ierr.ErrNotFound)
	}
	return p, nil
}

func (r *inMemoryProductRepo) GetVersion(ctx context.Context, id string, _ int) (*product.Product, error) {
	return r.Get(ctx, id)
}

func (r *inMemoryProductRepo) List(ctx context.Context, ids []string) ([]*product.Product, error) {
	out := make([]*product.Product, 0, len(ids))
	for _, id := range ids {
		p, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// fakeProcessor records schedule pushes and serves canned processor state.
type fakeProcessor struct {
	subscription  *processor.Subscription
	paymentMethod *processor.PaymentMethod
	discounts     []billing.Discount

	schedulePushes [][]*schedule.Phase
	pushedIDs      []string
}

func (f *fakeProcessor) GetSubscription(_ context.Context, id string) (*processor.Subscription, error) {
	if f.subscription == nil || f.subscription.ID != id {
		return nil, ierr.NewErrorf("subscription %s not found", id).Mark(ierr.ErrIntegration)
	}
	return f.subscription, nil
}

func (f *fakeProcessor) GetPaymentMethod(_ context.Context, _ string) (*processor.PaymentMethod, error) {
	return f.paymentMethod, nil
}

func (f *fakeProcessor) ListDiscounts(_ context.Context, _ string) ([]billing.Discount, error) {
	return f.discounts, nil
}

func (f *fakeProcessor) UpdateSubscriptionSchedule(_ context.Context, scheduleID string, phases []*schedule.Phase) error {
	f.pushedIDs = append(f.pushedIDs, scheduleID)
	f.schedulePushes = append(f.schedulePushes, phases)
	return nil
}

func testParams(repo *inMemoryCusProductRepo, products *inMemoryProductRepo, proc *fakeProcessor) ServiceParams {
	return ServiceParams{
		Logger:              logger.NewNopLogger(),
		Config:              config.GetDefaultConfig(),
		CusProductRepo:      repo,
		ProductRepo:         products,
		Processor:           proc,
		ProrationCalculator: proration.NewCalculator(types.StrategyDayBased),
	}
}

func activeSubscription(id string) *processor.Subscription {
	return &processor.Subscription{
		ID:         id,
		Status:     "active",
		CustomerID: "cust_1",
	}
}

func monthlyTestProduct(id, group string, amount int64) *product.Product {
	return &product.Product{
		ID:    id,
		Name:  id,
		Group: group,
		Prices: []*product.Price{
			{
				ID:               id + "_price",
				ProcessorPriceID: "proc_" + id,
				Amount:           decimal.NewFromInt(amount),
				Currency:         "USD",
				Type:             types.PRICE_TYPE_FIXED,
				Cadence:          types.BILLING_CADENCE_RECURRING,
				BillingPeriod:    types.BILLING_PERIOD_MONTHLY,
				PeriodCount:      1,
				Quantity:         decimal.NewFromInt(1),
			},
		},
	}
}

func oneOffTestProduct(id, group string, amount int64) *product.Product {
	p := monthlyTestProduct(id, group, amount)
	p.Prices[0].Cadence = types.BILLING_CADENCE_ONETIME
	p.Prices[0].BillingPeriod = ""
	p.Prices[0].PeriodCount = 0
	return p
}

func activeTestRow(id, customerID string, p *product.Product, startsAt time.Time) *cusproduct.CustomerProduct {
	return &cusproduct.CustomerProduct{
		ID:         id,
		CustomerID: customerID,
		ProductID:  p.ID,
		Product:    p,
		Status:     types.CustomerProductStatusActive,
		StartsAt:   startsAt,
	}
}
