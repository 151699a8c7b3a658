package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/jcmexdev/gamestore-orders/internal/order-service/domain"
	"github.com/jcmexdev/gamestore-orders/internal/order-service/entitlement"
	"github.com/jcmexdev/gamestore-orders/internal/order-service/inventory"
	"github.com/jcmexdev/gamestore-orders/internal/order-service/licensing"
	"github.com/jcmexdev/gamestore-orders/internal/order-service/ports"
	"github.com/jcmexdev/gamestore-orders/internal/order-service/pricing"
)

// Purchase is the state shared by the steps of one saga. Order is built by
// PriceLinesStep and filled with ids by PersistOrderStep.
type Purchase struct {
	Request domain.CreateOrder
	Order   *domain.Order
	User    *domain.User
	// Items is aligned with Order.Lines.
	Items []*domain.CatalogItem
	// Stock holds the catalog stock left after each line's decrement.
	Stock []int
}

// --- VerifyUserStep ---

type VerifyUserStep struct {
	identity ports.IdentityClient
	p        *Purchase
}

func NewVerifyUserStep(identity ports.IdentityClient, p *Purchase) *VerifyUserStep {
	return &VerifyUserStep{identity: identity, p: p}
}

func (s *VerifyUserStep) Name() string   { return "verify_user" }
func (s *VerifyUserStep) Policy() Policy { return Fatal }

func (s *VerifyUserStep) Execute(ctx context.Context) error {
	user, err := s.identity.GetUser(ctx, s.p.Request.UserID)
	if err != nil {
		return err
	}
	s.p.User = user
	return nil
}

// --- PriceLinesStep ---

type PriceLinesStep struct {
	resolver    *pricing.Resolver
	p           *Purchase
	concurrency int
}

// NewPriceLinesStep prices up to concurrency lines at a time.
func NewPriceLinesStep(resolver *pricing.Resolver, p *Purchase, concurrency int) *PriceLinesStep {
	if concurrency < 1 {
		concurrency = 1
	}
	return &PriceLinesStep{resolver: resolver, p: p, concurrency: concurrency}
}

func (s *PriceLinesStep) Name() string   { return "price_lines" }
func (s *PriceLinesStep) Policy() Policy { return Fatal }

func (s *PriceLinesStep) Execute(ctx context.Context) error {
	reqs := s.p.Request.Lines
	lines := make([]domain.OrderLine, len(reqs))
	items := make([]*domain.CatalogItem, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, req := range reqs {
		g.Go(func() error {
			price, item, err := s.resolver.PriceLine(gctx, req.ItemID, req.Quantity)
			if err != nil {
				return fmt.Errorf("line %d: %w", i, err)
			}
			lines[i] = domain.OrderLine{
				ItemID:    req.ItemID,
				Quantity:  req.Quantity,
				UnitPrice: price.UnitPrice,
				Subtotal:  price.Subtotal,
				Tax:       price.Tax,
			}
			items[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.p.Order.Lines = lines
	s.p.Items = items
	return nil
}

// --- PersistOrderStep ---

type PersistOrderStep struct {
	repo ports.OrderRepository
	p    *Purchase
}

func NewPersistOrderStep(repo ports.OrderRepository, p *Purchase) *PersistOrderStep {
	return &PersistOrderStep{repo: repo, p: p}
}

func (s *PersistOrderStep) Name() string   { return "persist_order" }
func (s *PersistOrderStep) Policy() Policy { return Fatal }

func (s *PersistOrderStep) Execute(ctx context.Context) error {
	return s.repo.CreateOrder(ctx, s.p.Order)
}

// --- DecrementStockStep ---

// DecrementStockStep decrements stock line by line in request order. A
// failure leaves earlier decrements in place.
type DecrementStockStep struct {
	adjuster *inventory.Adjuster
	p        *Purchase
}

func NewDecrementStockStep(adjuster *inventory.Adjuster, p *Purchase) *DecrementStockStep {
	return &DecrementStockStep{adjuster: adjuster, p: p}
}

func (s *DecrementStockStep) Name() string   { return "decrement_stock" }
func (s *DecrementStockStep) Policy() Policy { return Fatal }

func (s *DecrementStockStep) Execute(ctx context.Context) error {
	s.p.Stock = make([]int, 0, len(s.p.Order.Lines))
	for _, line := range s.p.Order.Lines {
		left, err := s.adjuster.Decrease(ctx, line.ItemID, line.Quantity)
		if err != nil {
			return fmt.Errorf("line %s: %w", line.ID, err)
		}
		s.p.Stock = append(s.p.Stock, left)
	}
	return nil
}

// --- BindLicensesStep ---

// BindLicensesStep binds at most one free key to each line.
type BindLicensesStep struct {
	binder *licensing.Binder
	repo   ports.OrderRepository
	p      *Purchase
}

func NewBindLicensesStep(binder *licensing.Binder, repo ports.OrderRepository, p *Purchase) *BindLicensesStep {
	return &BindLicensesStep{binder: binder, repo: repo, p: p}
}

func (s *BindLicensesStep) Name() string   { return "bind_licenses" }
func (s *BindLicensesStep) Policy() Policy { return BestEffort }

func (s *BindLicensesStep) Execute(ctx context.Context) error {
	var errs []error
	for i := range s.p.Order.Lines {
		line := &s.p.Order.Lines[i]

		lic, found, err := s.binder.AssignFreeLicense(ctx, line.ItemID, line.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !found {
			continue
		}

		if err := s.repo.SetLineLicense(ctx, line.ID, lic.ID); err != nil {
			errs = append(errs, fmt.Errorf("record license %s on line %s: %w", lic.ID, line.ID, err))
			continue
		}
		line.LicenseID = lic.ID
		slog.InfoContext(ctx, "license bound", "order_id", line.OrderID, "line_id", line.ID, "license_id", lic.ID)
	}
	return errors.Join(errs...)
}

// --- GrantEntitlementsStep ---

type GrantEntitlementsStep struct {
	registrar *entitlement.Registrar
	p         *Purchase
}

func NewGrantEntitlementsStep(registrar *entitlement.Registrar, p *Purchase) *GrantEntitlementsStep {
	return &GrantEntitlementsStep{registrar: registrar, p: p}
}

func (s *GrantEntitlementsStep) Name() string   { return "grant_entitlements" }
func (s *GrantEntitlementsStep) Policy() Policy { return BestEffort }

func (s *GrantEntitlementsStep) Execute(ctx context.Context) error {
	var errs []error
	for i, line := range s.p.Order.Lines {
		meta := domain.EntryMetadata{Price: line.UnitPrice}
		if i < len(s.p.Items) && s.p.Items[i] != nil {
			meta.Name = s.p.Items[i].Name
		}

		_, owned, err := s.registrar.Grant(ctx, s.p.Order.UserID, line.ItemID, meta)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if owned {
			slog.InfoContext(ctx, "item already in library", "user_id", s.p.Order.UserID, "item_id", line.ItemID)
		}
	}
	return errors.Join(errs...)
}
