package orgs

import (
	"context"
	"strings"

	"github.com/odyssey-erp/backoffice/internal/platform/cache"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

const cacheScope = "orgs"

// Resolver maps slugs to organizations, caching hits in Redis.
type Resolver struct {
	repo  Repository
	cache *cache.JSONCache
}

// NewResolver builds a resolver. A nil cache queries the repository every time.
func NewResolver(repo Repository, c *cache.JSONCache) *Resolver {
	return &Resolver{repo: repo, cache: c}
}

// Resolve returns the organization for slug or shared.ErrNotFound.
func (r *Resolver) Resolve(ctx context.Context, slug string) (shared.Org, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return shared.Org{}, shared.ErrNotFound
	}
	key, err := r.cache.BuildKey(ctx, cacheScope, slug)
	if err != nil {
		return shared.Org{}, err
	}
	var org shared.Org
	err = r.cache.FetchJSON(ctx, key, &org, func(ctx context.Context) (any, error) {
		return r.repo.FindBySlug(ctx, slug)
	})
	if err != nil {
		return shared.Org{}, err
	}
	return org, nil
}

// List returns every organization, uncached.
func (r *Resolver) List(ctx context.Context) ([]shared.Org, error) {
	return r.repo.List(ctx)
}

// Invalidate drops every cached resolution.
func (r *Resolver) Invalidate(ctx context.Context) error {
	return r.cache.Bump(ctx, cacheScope)
}
