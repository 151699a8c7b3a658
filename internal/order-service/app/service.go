// Package app is the order service use-case layer: the purchase saga, line
// management and summaries.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jcmexdev/gamestore-orders/internal/coordinator"
	"github.com/jcmexdev/gamestore-orders/internal/coordinator/sagalog"
	"github.com/jcmexdev/gamestore-orders/internal/order-service/domain"
	"github.com/jcmexdev/gamestore-orders/internal/order-service/entitlement"
	"github.com/jcmexdev/gamestore-orders/internal/order-service/inventory"
	"github.com/jcmexdev/gamestore-orders/internal/order-service/licensing"
	"github.com/jcmexdev/gamestore-orders/internal/order-service/ports"
	"github.com/jcmexdev/gamestore-orders/internal/order-service/pricing"
	"github.com/jcmexdev/gamestore-orders/internal/order-service/summary"
	"github.com/jcmexdev/gamestore-orders/internal/pkg/cache"
)

const opCreateOrder = "create_order"

// Collaborators groups the remote services the order service depends on.
type Collaborators struct {
	Catalog   ports.CatalogClient
	Identity  ports.IdentityClient
	Licensing ports.LicensingClient
	Library   ports.LibraryClient
	Reviews   ports.ReviewsClient
}

type Options struct {
	// TaxRate nil means pricing.DefaultTaxRate; a zero rate is honored.
	TaxRate            *decimal.Decimal
	PricingConcurrency int
	SummaryConcurrency int
	IdempotencyTTL     time.Duration
}

var _ ports.OrderService = (*Service)(nil)

type Service struct {
	repo      ports.OrderRepository
	identity  ports.IdentityClient
	resolver  *pricing.Resolver
	adjuster  *inventory.Adjuster
	binder    *licensing.Binder
	registrar *entitlement.Registrar
	summaries *summary.Builder
	sagaLog   sagalog.Repository
	cache     cache.Cache
	opts      Options
}

// NewService wires the use cases. sagaLog and idem may be nil.
func NewService(repo ports.OrderRepository, c Collaborators, sagaLog sagalog.Repository, idem cache.Cache, opts Options) *Service {
	taxRate := pricing.DefaultTaxRate
	if opts.TaxRate != nil {
		taxRate = *opts.TaxRate
	}
	if opts.PricingConcurrency < 1 {
		opts.PricingConcurrency = 4
	}
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = 24 * time.Hour
	}

	return &Service{
		repo:      repo,
		identity:  c.Identity,
		resolver:  pricing.NewResolver(c.Catalog, taxRate),
		adjuster:  inventory.NewAdjuster(c.Catalog),
		binder:    licensing.NewBinder(c.Licensing),
		registrar: entitlement.NewRegistrar(c.Library),
		summaries: summary.NewBuilder(repo, c.Identity, c.Catalog, c.Reviews, c.Licensing, opts.SummaryConcurrency),
		sagaLog:   sagaLog,
		cache:     idem,
		opts:      opts,
	}
}

// CreateOrder runs the purchase saga. With a non-empty idempotencyKey a
// repeated request returns the outcome of the first one: the order it created
// or the error it failed with once the order was persisted.
//
// When a stock decrement fails the order stays persisted and the error is
// returned; the saga log holds the FAILED row for reconciliation.
func (s *Service) CreateOrder(ctx context.Context, idempotencyKey string, req domain.CreateOrder) (*domain.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = domain.DefaultPaymentMethod
	}

	orderID := uuid.NewString()

	cacheKey := ""
	if s.cache != nil && idempotencyKey != "" {
		cacheKey = s.cache.GenerateKey(opCreateOrder, idempotencyKey)
		replay, err := s.claim(ctx, cacheKey, orderID)
		if replay != nil || err != nil {
			return replay, err
		}
	}

	p := &coordinator.Purchase{
		Request: req,
		Order: &domain.Order{
			ID:              orderID,
			UserID:          req.UserID,
			Status:          domain.StatusDraft,
			PaymentMethod:   req.PaymentMethod,
			ShippingAddress: req.ShippingAddress,
			Total:           decimal.Zero,
		},
	}

	steps := []coordinator.Step{
		coordinator.NewVerifyUserStep(s.identity, p),
		coordinator.NewPriceLinesStep(s.resolver, p, s.opts.PricingConcurrency),
		coordinator.NewPersistOrderStep(s.repo, p),
		coordinator.NewDecrementStockStep(s.adjuster, p),
		coordinator.NewBindLicensesStep(s.binder, s.repo, p),
		coordinator.NewGrantEntitlementsStep(s.registrar, p),
	}

	payload, _ := json.Marshal(req)
	err := coordinator.NewOrchestrator(orderID, string(payload), steps, s.sagaLog).Start(ctx)
	if err != nil {
		err = unwrapStep(err)
		if cacheKey != "" {
			if p.Order.Status == domain.StatusPlaced {
				// The order exists and stock may be partly taken; a retry must not run again.
				s.recordFailure(ctx, cacheKey, orderID, err)
			} else {
				// Nothing was written, so a retry with the same key may start over.
				s.release(ctx, cacheKey)
			}
		}
		return nil, err
	}

	slog.InfoContext(ctx, "order placed",
		"order_id", p.Order.ID,
		"user_id", p.Order.UserID,
		"lines", len(p.Order.Lines),
		"total", p.Order.Total.StringFixed(2),
	)
	return p.Order, nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return s.repo.GetOrder(ctx, id)
}

func (s *Service) ListOrdersByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	return s.repo.ListOrdersByUser(ctx, userID)
}

// DeleteOrder fails with domain.ErrOrderHasLines until every line is removed.
func (s *Service) DeleteOrder(ctx context.Context, id string) error {
	return s.repo.DeleteOrder(ctx, id)
}

func (s *Service) ListLines(ctx context.Context, orderID string) ([]domain.OrderLine, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return order.Lines, nil
}

// AddLine prices a new line at the current catalog price and appends it.
func (s *Service) AddLine(ctx context.Context, orderID string, req domain.LineRequest) (*domain.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	price, _, err := s.resolver.PriceLine(ctx, req.ItemID, req.Quantity)
	if err != nil {
		return nil, err
	}

	line := &domain.OrderLine{
		OrderID:   orderID,
		ItemID:    req.ItemID,
		Quantity:  req.Quantity,
		UnitPrice: price.UnitPrice,
		Subtotal:  price.Subtotal,
		Tax:       price.Tax,
	}
	if err := s.repo.AddLine(ctx, line); err != nil {
		return nil, err
	}
	return s.repo.GetOrder(ctx, orderID)
}

// UpdateLine changes item or quantity. The line is re-priced from the catalog.
func (s *Service) UpdateLine(ctx context.Context, orderID, lineID string, req domain.LineRequest) (*domain.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetLine(ctx, orderID, lineID); err != nil {
		return nil, err
	}

	price, _, err := s.resolver.PriceLine(ctx, req.ItemID, req.Quantity)
	if err != nil {
		return nil, err
	}

	line := &domain.OrderLine{
		ID:        lineID,
		OrderID:   orderID,
		ItemID:    req.ItemID,
		Quantity:  req.Quantity,
		UnitPrice: price.UnitPrice,
		Subtotal:  price.Subtotal,
		Tax:       price.Tax,
	}
	if err := s.repo.UpdateLine(ctx, line); err != nil {
		return nil, err
	}
	return s.repo.GetOrder(ctx, orderID)
}

func (s *Service) RemoveLine(ctx context.Context, orderID, lineID string) (*domain.Order, error) {
	if err := s.repo.RemoveLine(ctx, orderID, lineID); err != nil {
		return nil, err
	}
	return s.repo.GetOrder(ctx, orderID)
}

// Confirm recomputes the total from the current lines.
func (s *Service) Confirm(ctx context.Context, orderID string) (*domain.Order, error) {
	if _, err := s.repo.RecomputeTotal(ctx, orderID); err != nil {
		return nil, err
	}
	return s.repo.GetOrder(ctx, orderID)
}

func (s *Service) Summary(ctx context.Context, orderID string) (*domain.Summary, error) {
	return s.summaries.Build(ctx, orderID)
}

// unwrapStep drops the saga step wrapper so callers see the domain error text.
func unwrapStep(err error) error {
	var stepErr *coordinator.StepError
	if errors.As(err, &stepErr) {
		return stepErr.Err
	}
	return err
}
