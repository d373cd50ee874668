package products

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/backoffice/internal/platform/cache"
	"github.com/odyssey-erp/backoffice/internal/pricing"
	coreshared "github.com/odyssey-erp/backoffice/internal/shared"
)

// Catalog serves immutable product snapshots to the order modules. Results
// are cached per organization and dropped whenever a product changes.
type Catalog struct {
	repo  Repository
	cache *cache.JSONCache
}

// NewCatalog constructs a Catalog. A nil cache reads straight from the repository.
func NewCatalog(repo Repository, cache *cache.JSONCache) *Catalog {
	return &Catalog{repo: repo, cache: cache}
}

func catalogScope(orgID int64) string {
	return fmt.Sprintf("org:%d:catalog", orgID)
}

// Snapshot returns the catalog attributes of every requested product. Each
// call yields a fresh copy, so callers may keep it for the whole calculation.
func (c *Catalog) Snapshot(ctx context.Context, orgID int64, productIDs []int64) (Snapshot, error) {
	ids := uniqueIDs(productIDs)
	if len(ids) == 0 {
		return emptySnapshot(), nil
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	key, err := c.cache.BuildKey(ctx, catalogScope(orgID), strings.Join(parts, ","))
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	err = c.cache.FetchJSON(ctx, key, &snap, func(ctx context.Context) (any, error) {
		rows, err := c.repo.GetMany(ctx, orgID, ids)
		if err != nil {
			return nil, err
		}
		built := emptySnapshot()
		for _, p := range rows {
			built.Products[p.ID] = p.Snapshot()
			built.Cost[p.ID] = p.CostPrice
			built.Sale[p.ID] = p.SalePrice
		}
		return built, nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	if snap.Products == nil {
		snap = emptySnapshot()
	}
	for _, id := range ids {
		if _, ok := snap.Products[id]; !ok {
			return Snapshot{}, coreshared.Validationf(fmt.Sprintf("product %d does not exist", id))
		}
	}
	return snap, nil
}

// Invalidate drops every cached snapshot of the organization.
func (c *Catalog) Invalidate(ctx context.Context, orgID int64) error {
	if c == nil {
		return nil
	}
	return c.cache.Bump(ctx, catalogScope(orgID))
}

func emptySnapshot() Snapshot {
	return Snapshot{
		Products: make(map[int64]pricing.ProductSnapshot),
		Cost:     make(map[int64]decimal.Decimal),
		Sale:     make(map[int64]decimal.Decimal),
	}
}

func uniqueIDs(in []int64) []int64 {
	seen := make(map[int64]struct{}, len(in))
	out := make([]int64, 0, len(in))
	for _, id := range in {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
