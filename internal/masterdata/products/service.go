package products

import (
	"context"
	"log/slog"
	"strings"

	"github.com/odyssey-erp/backoffice/internal/masterdata/shared"
	"github.com/odyssey-erp/backoffice/internal/pricing"
)

type Service struct {
	repo    Repository
	catalog *Catalog
	logger  *slog.Logger
}

func NewService(repo Repository, catalog *Catalog, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, catalog: catalog, logger: logger}
}

func (s *Service) List(ctx context.Context, orgID int64, filters shared.ListFilters) ([]Product, int, error) {
	return s.repo.List(ctx, orgID, filters)
}

func (s *Service) Get(ctx context.Context, orgID, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, orgID, id)
}

func (s *Service) Create(ctx context.Context, orgID int64, product Product) (Product, error) {
	product = normalize(product)
	product.OrgID = orgID
	if err := s.validate(product); err != nil {
		return Product{}, err
	}
	created, err := s.repo.Create(ctx, product)
	if err != nil {
		return Product{}, err
	}
	s.invalidate(ctx, orgID)
	return created, nil
}

func (s *Service) Update(ctx context.Context, orgID, id int64, product Product) (Product, error) {
	if id <= 0 {
		return Product{}, shared.ErrInvalidID
	}
	product = normalize(product)
	product.OrgID = orgID
	product.ID = id
	if err := s.validate(product); err != nil {
		return Product{}, err
	}
	if err := s.repo.Update(ctx, product); err != nil {
		return Product{}, err
	}
	s.invalidate(ctx, orgID)
	return s.repo.Get(ctx, orgID, id)
}

func (s *Service) Delete(ctx context.Context, orgID, id int64) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	if err := s.repo.Delete(ctx, orgID, id); err != nil {
		return err
	}
	s.invalidate(ctx, orgID)
	return nil
}

// invalidate drops cached snapshots; orders priced afterwards see the change.
func (s *Service) invalidate(ctx context.Context, orgID int64) {
	if err := s.catalog.Invalidate(ctx, orgID); err != nil {
		s.logger.Warn("invalidate catalog cache", slog.Int64("org_id", orgID), slog.Any("error", err))
	}
}

func normalize(p Product) Product {
	p.SKU = strings.TrimSpace(p.SKU)
	p.Name = strings.TrimSpace(p.Name)
	p.UnitOfMeasure = pricingUnit(string(p.UnitOfMeasure))
	return p
}

func pricingUnit(code string) pricing.UnitOfMeasure {
	return pricing.UnitOfMeasure(strings.ToUpper(strings.TrimSpace(code)))
}
