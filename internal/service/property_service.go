package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/babui-rent/babui/internal/domain"
	"github.com/babui-rent/babui/internal/geo"
	"github.com/babui-rent/babui/internal/observability/metrics"
	"github.com/babui-rent/babui/internal/observability/tracing"
	"github.com/babui-rent/babui/pkg/cache"
)

const (
	nearbyCachePrefix = "nearby:"
	minSearchRunes    = 2
)

// PropertyService coordinates the repository, spatial queries and geocoding
type PropertyService struct {
	repo      domain.PropertyRepository
	geocoder  domain.Geocoder
	gazetteer *geo.Gazetteer
	nearby    *cache.Cache[[]geo.Nearby]
	cacheGen  atomic.Uint64
	cacheTTL  time.Duration
	logger    *slog.Logger

	// searchFallback lets Search answer from the gazetteer
	searchFallback bool
}

// NewPropertyService creates a property service. geocoder may be nil, in
// which case addresses fall back to formatted coordinates and searches to the
// gazetteer. A zero queryCacheTTL disables proximity result caching.
func NewPropertyService(
	repo domain.PropertyRepository,
	geocoder domain.Geocoder,
	gazetteer *geo.Gazetteer,
	queryCacheTTL time.Duration,
	logger *slog.Logger,
) *PropertyService {
	if gazetteer == nil {
		gazetteer = geo.NewGazetteer()
	}
	return &PropertyService{
		repo:           repo,
		geocoder:       geocoder,
		gazetteer:      gazetteer,
		nearby:         cache.New[[]geo.Nearby](),
		cacheTTL:       queryCacheTTL,
		logger:         logger,
		searchFallback: true,
	}
}

// WithoutSearchFallback stops Search from answering with gazetteer areas when
// the geocoder fails. Area lookups for proximity queries still use it.
func (s *PropertyService) WithoutSearchFallback() *PropertyService {
	s.searchFallback = false
	return s
}

// HandleChange drops cached proximity results. Subscribe it to the repository.
func (s *PropertyService) HandleChange(ev domain.ChangeEvent) {
	s.cacheGen.Add(1)
	if n := s.nearby.Invalidate(nearbyCachePrefix); n > 0 {
		s.logger.Debug("proximity cache invalidated",
			slog.String("property_id", ev.PropertyID),
			slog.String("kind", string(ev.Kind)),
			slog.Int("entries", n),
		)
	}
}

// Add validates and stores p. An empty id is replaced with a new UUID.
func (s *PropertyService) Add(ctx context.Context, p domain.Property) (domain.Property, error) {
	_, span := tracing.Tracer().Start(ctx, "PropertyService.Add")
	defer span.End()

	if err := p.ValidateShape(); err != nil {
		metrics.ObserveMutation(domain.ChangeAdded, "invalid")
		return domain.Property{}, err
	}
	if strings.TrimSpace(p.ID) == "" {
		p.ID = uuid.NewString()
	}
	span.SetAttributes(attribute.String("property.id", p.ID))

	if err := s.repo.Add(p); err != nil {
		metrics.ObserveMutation(domain.ChangeAdded, "rejected")
		span.RecordError(err)
		return domain.Property{}, fmt.Errorf("add property: %w", err)
	}

	stored, _ := s.repo.Get(p.ID)
	s.logger.Info("property added",
		slog.String("property_id", stored.ID),
		slog.String("type", string(stored.Type)),
		slog.Bool("locatable", stored.Location.Locatable()),
	)
	return stored, nil
}

// Update applies patch to the property with the given id
func (s *PropertyService) Update(ctx context.Context, id string, patch domain.PropertyPatch) (domain.Property, error) {
	_, span := tracing.Tracer().Start(ctx, "PropertyService.Update")
	defer span.End()
	span.SetAttributes(attribute.String("property.id", id))

	if err := patch.ValidateShape(); err != nil {
		metrics.ObserveMutation(domain.ChangeUpdated, "invalid")
		return domain.Property{}, err
	}

	ok, err := s.repo.Update(id, patch)
	if err != nil {
		metrics.ObserveMutation(domain.ChangeUpdated, "rejected")
		return domain.Property{}, fmt.Errorf("update property %s: %w", id, err)
	}
	if !ok {
		metrics.ObserveMutation(domain.ChangeUpdated, "not_found")
		return domain.Property{}, domain.ErrNotFound
	}

	updated, ok := s.repo.Get(id)
	if !ok {
		// removed concurrently between Update and Get
		return domain.Property{}, domain.ErrNotFound
	}
	return updated, nil
}

// Remove deletes the property with the given id
func (s *PropertyService) Remove(ctx context.Context, id string) error {
	_, span := tracing.Tracer().Start(ctx, "PropertyService.Remove")
	defer span.End()
	span.SetAttributes(attribute.String("property.id", id))

	if !s.repo.Remove(id) {
		metrics.ObserveMutation(domain.ChangeRemoved, "not_found")
		return domain.ErrNotFound
	}
	s.logger.Info("property removed", slog.String("property_id", id))
	return nil
}

// Get returns one property
func (s *PropertyService) Get(_ context.Context, id string) (domain.Property, error) {
	p, ok := s.repo.Get(id)
	if !ok {
		return domain.Property{}, domain.ErrNotFound
	}
	return p, nil
}

// List returns every property in insertion order, optionally only those of type t
func (s *PropertyService) List(_ context.Context, t domain.PropertyType) []domain.Property {
	all := s.repo.List()
	if t == "" {
		return all
	}
	return slices.DeleteFunc(all, func(p domain.Property) bool { return p.Type != t })
}

// Count returns the number of stored properties
func (s *PropertyService) Count() int {
	return s.repo.Len()
}

// QueryByLocation returns the properties within radiusKm of center, in
// insertion order, each paired with its distance. It reads the repository
// snapshot at call time.
func (s *PropertyService) QueryByLocation(ctx context.Context, center domain.Coordinates, radiusKm float64) []geo.Nearby {
	_, span := tracing.Tracer().Start(ctx, "PropertyService.QueryByLocation")
	defer span.End()
	span.SetAttributes(
		attribute.Float64("geo.lat", center.Lat),
		attribute.Float64("geo.lng", center.Lng),
		attribute.Float64("geo.radius_km", radiusKm),
	)

	key := nearbyKey(s.cacheGen.Load(), center, radiusKm)
	if cached, ok := s.nearby.Get(key); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return cloneNearby(cached)
	}

	start := time.Now()
	results := geo.WithinRadius(center, s.repo.List(), radiusKm)
	metrics.ObserveProximityQuery(time.Since(start), len(results))
	span.SetAttributes(attribute.Int("geo.results", len(results)))

	s.nearby.Set(key, cloneNearby(results), s.cacheTTL)
	return results
}

// SweepCache drops expired proximity results and returns how many went
func (s *PropertyService) SweepCache() int {
	return s.nearby.Sweep()
}

// nearbyKey carries the exact float bits so no two distinct queries share an
// entry. A result computed before a change lands under the old generation and
// is never read.
func nearbyKey(gen uint64, center domain.Coordinates, radiusKm float64) string {
	return nearbyCachePrefix + strconv.FormatUint(gen, 10) + ":" +
		strconv.FormatUint(math.Float64bits(center.Lat), 16) + "," +
		strconv.FormatUint(math.Float64bits(center.Lng), 16) + "," +
		strconv.FormatUint(math.Float64bits(radiusKm), 16)
}

func cloneNearby(in []geo.Nearby) []geo.Nearby {
	out := make([]geo.Nearby, len(in))
	for i, n := range in {
		out[i] = geo.Nearby{Property: n.Property.Clone(), DistanceKm: n.DistanceKm}
	}
	return out
}

// AreaCenter resolves a neighbourhood name through the gazetteer
func (s *PropertyService) AreaCenter(name string) (geo.Place, bool) {
	return s.gazetteer.Lookup(name)
}

// Clusters groups properties into map marker buckets. With a non-nil scope
// only properties within scope's radius take part.
func (s *PropertyService) Clusters(ctx context.Context, scope *NearbyScope) []geo.Bucket {
	_, span := tracing.Tracer().Start(ctx, "PropertyService.Clusters")
	defer span.End()

	var props []domain.Property
	if scope == nil {
		props = s.repo.List()
	} else {
		for _, n := range s.QueryByLocation(ctx, scope.Center, scope.RadiusKm) {
			props = append(props, n.Property)
		}
	}

	buckets := geo.Cluster(props)
	metrics.ObserveClusters(len(buckets))
	span.SetAttributes(attribute.Int("geo.buckets", len(buckets)))
	return buckets
}

// NearbyScope restricts clustering to a circle
type NearbyScope struct {
	Center   domain.Coordinates
	RadiusKm float64
}

// AddressResult is the outcome of ResolveAddress
type AddressResult struct {
	Address  string `json:"address"`
	Resolved bool   `json:"resolved"`
}

// ResolveAddress reverse-geocodes c. It never fails: when the geocoder is
// missing, errors or finds nothing, the formatted coordinates are returned
// with Resolved false.
func (s *PropertyService) ResolveAddress(ctx context.Context, c domain.Coordinates) AddressResult {
	ctx, span := tracing.Tracer().Start(ctx, "PropertyService.ResolveAddress")
	defer span.End()

	fallback := AddressResult{Address: geo.FormatCoordinates(c)}
	if s.geocoder == nil || !c.Valid() {
		metrics.ObserveGeocode("reverse", "fallback")
		return fallback
	}

	addr, err := s.geocoder.Reverse(ctx, c)
	if err != nil || strings.TrimSpace(addr) == "" {
		if err != nil {
			span.RecordError(err)
			s.logger.Warn("reverse geocoding failed",
				slog.String("coordinates", fallback.Address),
				slog.String("error", err.Error()),
			)
		}
		metrics.ObserveGeocode("reverse", "fallback")
		return fallback
	}
	return AddressResult{Address: addr, Resolved: true}
}

// Search returns ranked candidates for a free-text place query. Queries under
// two characters return nothing. The gazetteer answers when the geocoder is
// unavailable or has no match.
func (s *PropertyService) Search(ctx context.Context, query string, limit int) []domain.GeocodeCandidate {
	ctx, span := tracing.Tracer().Start(ctx, "PropertyService.Search")
	defer span.End()

	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < minSearchRunes {
		return []domain.GeocodeCandidate{}
	}

	if s.geocoder != nil {
		candidates, err := s.geocoder.Search(ctx, query, limit)
		if err == nil && len(candidates) > 0 {
			return candidates
		}
		if err != nil {
			span.RecordError(err)
			s.logger.Warn("geocoder search failed, using gazetteer",
				slog.String("query", query),
				slog.String("error", err.Error()),
			)
		}
	}

	if !s.searchFallback {
		return []domain.GeocodeCandidate{}
	}
	metrics.ObserveGeocode("search", "fallback")
	return s.gazetteer.Search(query, limit)
}
