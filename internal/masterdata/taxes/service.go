package taxes

import (
	"context"
	"fmt"
	"strings"

	"github.com/odyssey-erp/backoffice/internal/masterdata/shared"
	"github.com/odyssey-erp/backoffice/internal/pricing"
	coreshared "github.com/odyssey-erp/backoffice/internal/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, orgID int64, filters shared.ListFilters) ([]Tax, int, error) {
	return s.repo.List(ctx, orgID, filters)
}

func (s *Service) Get(ctx context.Context, orgID, id int64) (Tax, error) {
	if id <= 0 {
		return Tax{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, orgID, id)
}

func (s *Service) Create(ctx context.Context, orgID int64, tax Tax) (Tax, error) {
	tax = normalize(tax)
	tax.OrgID = orgID
	if err := s.validate(tax); err != nil {
		return Tax{}, err
	}
	return s.repo.Create(ctx, tax)
}

func (s *Service) Update(ctx context.Context, orgID, id int64, tax Tax) (Tax, error) {
	if id <= 0 {
		return Tax{}, shared.ErrInvalidID
	}
	tax = normalize(tax)
	tax.OrgID = orgID
	tax.ID = id
	if err := s.validate(tax); err != nil {
		return Tax{}, err
	}
	if err := s.repo.Update(ctx, tax); err != nil {
		return Tax{}, err
	}
	return s.repo.Get(ctx, orgID, id)
}

func (s *Service) Delete(ctx context.Context, orgID, id int64) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	return s.repo.Delete(ctx, orgID, id)
}

// Snapshot copies the current rate of each requested tax. Orders store the
// copy, so later rate changes never touch them. Inactive taxes are refused.
func (s *Service) Snapshot(ctx context.Context, orgID int64, ids []int64) ([]pricing.TaxRate, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	seen := make(map[int64]bool, len(ids))
	unique := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	found, err := s.repo.GetMany(ctx, orgID, unique)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]Tax, len(found))
	for _, t := range found {
		byID[t.ID] = t
	}
	rates := make([]pricing.TaxRate, 0, len(unique))
	for _, id := range unique {
		t, ok := byID[id]
		if !ok {
			return nil, coreshared.Validationf(fmt.Sprintf("tax %d does not exist", id))
		}
		if !t.IsActive {
			return nil, coreshared.Validationf(fmt.Sprintf("tax %s is inactive", t.Code))
		}
		rates = append(rates, pricing.TaxRate{TaxID: t.ID, Name: t.Name, Rate: t.Rate})
	}
	return rates, nil
}

func normalize(t Tax) Tax {
	t.Code = strings.ToUpper(strings.TrimSpace(t.Code))
	t.Name = strings.TrimSpace(t.Name)
	return t
}
