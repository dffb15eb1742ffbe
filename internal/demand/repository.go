package demand

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/demandflow/demandflow/internal/shared"
)

// ListFilter narrows and orders the demand working set. All projection is
// performed by the backend of record; the filter only describes the query.
type ListFilter struct {
	Search          string
	Status          Status
	Priority        Priority
	FulfillmentType FulfillmentType
	LocationID      int64
	SortBy          string
	SortDesc        bool
	Page            int
	PerPage         int
}

// Values encodes the filter as backend query parameters.
func (f ListFilter) Values() url.Values {
	q := url.Values{}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.Status != "" {
		q.Set("processing_status", string(f.Status))
	}
	if f.Priority != "" {
		q.Set("priority", string(f.Priority))
	}
	if f.FulfillmentType != "" {
		q.Set("fulfillment_type", string(f.FulfillmentType))
	}
	if f.LocationID != 0 {
		q.Set("location_id", strconv.FormatInt(f.LocationID, 10))
	}
	if f.SortBy != "" {
		q.Set("sort_by", f.SortBy)
		if f.SortDesc {
			q.Set("sort_dir", "desc")
		} else {
			q.Set("sort_dir", "asc")
		}
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	perPage := f.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	return q
}

func (f ListFilter) cacheKey() string {
	return "demands:list:" + f.Values().Encode()
}

// Page is a single page of the working set plus pagination metadata.
type Page struct {
	Demands []SiteDemand
	Meta    shared.Pagination
}

// ListerPort is the backend read operation the repository projects.
type ListerPort interface {
	ListDemands(ctx context.Context, filter ListFilter) ([]SiteDemand, shared.Pagination, error)
}

// Repository is the read-side projection of demands. It never writes demand
// state; a short-lived Redis snapshot keeps repeat listings off the backend.
type Repository struct {
	backend ListerPort
	cache   *redis.Client
	ttl     time.Duration
	logger  *slog.Logger
}

// NewRepository constructs Repository. cache may be nil to disable snapshots.
func NewRepository(backend ListerPort, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *Repository {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Repository{backend: backend, cache: cache, ttl: ttl, logger: logger}
}

// List returns one page of the working set, serving from the snapshot cache
// when fresh.
func (r *Repository) List(ctx context.Context, filter ListFilter) (Page, error) {
	key := filter.cacheKey()
	if r.cache != nil {
		payload, err := r.cache.Get(ctx, key).Bytes()
		if err == nil {
			var page Page
			if err := json.Unmarshal(payload, &page); err == nil {
				return page, nil
			}
		} else if err != redis.Nil {
			r.logger.Warn("demand snapshot read", slog.Any("error", err))
		}
	}
	demands, meta, err := r.backend.ListDemands(ctx, filter)
	if err != nil {
		return Page{}, fmt.Errorf("demand: list: %w", err)
	}
	page := Page{Demands: demands, Meta: meta}
	if r.cache != nil {
		if raw, err := json.Marshal(page); err == nil {
			if err := r.cache.Set(ctx, key, raw, r.ttl).Err(); err != nil {
				r.logger.Warn("demand snapshot write", slog.Any("error", err))
			}
		}
	}
	return page, nil
}

// Refresh drops every cached snapshot so the next listing reflects
// authoritative backend state. Called after any state-changing submission.
func (r *Repository) Refresh(ctx context.Context) error {
	if r.cache == nil {
		return nil
	}
	iter := r.cache.Scan(ctx, 0, "demands:list:*", 0).Iterator()
	for iter.Next(ctx) {
		if err := r.cache.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Warm pre-populates the snapshot for a filter, used by the background
// warmup job rather than request handling.
func (r *Repository) Warm(ctx context.Context, filter ListFilter) error {
	if r.cache == nil {
		return nil
	}
	demands, meta, err := r.backend.ListDemands(ctx, filter)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(Page{Demands: demands, Meta: meta})
	if err != nil {
		return err
	}
	return r.cache.Set(ctx, filter.cacheKey(), raw, r.ttl).Err()
}
