package kicksync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BearBump/KickSync/internal/integrations/identity"
)

const (
	DefaultFranchiseSearch = "미지정"
	DefaultRegionSearch    = "미운영"
)

// ReferenceNotFoundError means the identity service has no default franchise
// or region to backfill with. It aborts the run.
type ReferenceNotFoundError struct {
	Kind   string
	Search string
}

func (e *ReferenceNotFoundError) Error() string {
	return fmt.Sprintf("default %s %q not found", e.Kind, e.Search)
}

type DefaultReferences struct {
	FranchiseID string
	RegionID    string
}

type IdentityClient interface {
	SearchFranchises(ctx context.Context, take int, search string) ([]identity.Franchise, error)
	SearchRegions(ctx context.Context, take int, search string) ([]identity.Region, error)
}

type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type Resolver struct {
	client IdentityClient

	franchiseSearch string
	regionSearch    string

	cache    BytesCache
	cacheTTL time.Duration
}

func NewResolver(client IdentityClient) *Resolver {
	return &Resolver{
		client:          client,
		franchiseSearch: DefaultFranchiseSearch,
		regionSearch:    DefaultRegionSearch,
	}
}

func (r *Resolver) WithSearch(franchise, region string) *Resolver {
	if franchise != "" {
		r.franchiseSearch = franchise
	}
	if region != "" {
		r.regionSearch = region
	}
	return r
}

// WithCache keeps resolved ids for ttl. A zero ttl or nil cache disables it.
func (r *Resolver) WithCache(c BytesCache, ttl time.Duration) *Resolver {
	r.cache = c
	r.cacheTTL = ttl
	return r
}

// ResolveFranchiseID logs through log so the lines carry the run attributes.
func (r *Resolver) ResolveFranchiseID(ctx context.Context, log *slog.Logger) (string, error) {
	return r.resolve(ctx, log, "franchise", r.franchiseSearch, func(ctx context.Context) (string, error) {
		fs, err := r.client.SearchFranchises(ctx, 1, r.franchiseSearch)
		if err != nil || len(fs) == 0 {
			return "", err
		}
		return fs[0].FranchiseID, nil
	})
}

func (r *Resolver) ResolveRegionID(ctx context.Context, log *slog.Logger) (string, error) {
	return r.resolve(ctx, log, "region", r.regionSearch, func(ctx context.Context) (string, error) {
		rs, err := r.client.SearchRegions(ctx, 1, r.regionSearch)
		if err != nil || len(rs) == 0 {
			return "", err
		}
		return rs[0].RegionID, nil
	})
}

func (r *Resolver) resolve(ctx context.Context, log *slog.Logger, kind, search string, lookup func(context.Context) (string, error)) (string, error) {
	if log == nil {
		log = slog.Default()
	}
	key := fmt.Sprintf("defaults:%s:%s", kind, search)
	if r.cacheEnabled() {
		b, ok, err := r.cache.Get(ctx, key)
		if err != nil {
			log.Warn("default reference cache get", "kind", kind, "error", err.Error())
		} else if ok && len(b) > 0 {
			log.Info("default reference resolved from cache", "kind", kind, "id", string(b))
			return string(b), nil
		}
	}

	id, err := lookup(ctx)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", &ReferenceNotFoundError{Kind: kind, Search: search}
	}
	log.Info("default reference resolved", "kind", kind, "id", id)

	if r.cacheEnabled() {
		if err := r.cache.Set(ctx, key, []byte(id), r.cacheTTL); err != nil {
			log.Warn("default reference cache set", "kind", kind, "error", err.Error())
		}
	}
	return id, nil
}

func (r *Resolver) cacheEnabled() bool {
	return r.cache != nil && r.cacheTTL > 0
}
