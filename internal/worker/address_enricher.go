package worker

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/babui-rent/babui/internal/domain"
	"github.com/babui-rent/babui/internal/observability/metrics"
	"github.com/babui-rent/babui/internal/service"
)

// PropertyEnricher is the slice of the property service the worker drives
type PropertyEnricher interface {
	List(ctx context.Context, t domain.PropertyType) []domain.Property
	Get(ctx context.Context, id string) (domain.Property, error)
	Update(ctx context.Context, id string, patch domain.PropertyPatch) (domain.Property, error)
	ResolveAddress(ctx context.Context, c domain.Coordinates) service.AddressResult
}

// AddressEnricher fills in Location.Address for pinned properties that were
// submitted without one. Unresolved lookups are retried on the next tick.
type AddressEnricher struct {
	properties PropertyEnricher
	logger     *slog.Logger
	interval   time.Duration
	batchSize  int
}

// NewAddressEnricher creates the worker. batchSize bounds lookups per tick so
// the geocoder's usage policy is respected.
func NewAddressEnricher(properties PropertyEnricher, logger *slog.Logger, interval time.Duration, batchSize int) *AddressEnricher {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &AddressEnricher{
		properties: properties,
		logger:     logger,
		interval:   interval,
		batchSize:  batchSize,
	}
}

// Start runs the enrichment loop until ctx is cancelled
func (w *AddressEnricher) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("address enricher started", slog.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("address enricher stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce enriches up to batchSize properties and returns how many were updated
func (w *AddressEnricher) RunOnce(ctx context.Context) int {
	updated := 0
	attempted := 0
	for _, p := range w.properties.List(ctx, "") {
		if attempted >= w.batchSize || ctx.Err() != nil {
			break
		}
		if !needsAddress(p) {
			continue
		}
		attempted++
		if w.enrich(ctx, p) {
			updated++
		}
	}

	if attempted > 0 {
		w.logger.Info("address enrichment pass finished",
			slog.Int("attempted", attempted),
			slog.Int("updated", updated),
		)
	}
	return updated
}

func needsAddress(p domain.Property) bool {
	return p.Location.Locatable() && strings.TrimSpace(p.Location.Address) == ""
}

func (w *AddressEnricher) enrich(ctx context.Context, p domain.Property) bool {
	logger := w.logger.With(slog.String("property_id", p.ID))
	coords := *p.Location.Coordinates

	res := w.properties.ResolveAddress(ctx, coords)
	if !res.Resolved {
		logger.Debug("address not resolved, will retry")
		metrics.ObserveEnrichment("unresolved")
		return false
	}

	// re-read so an edit made during the lookup is not overwritten
	current, err := w.properties.Get(ctx, p.ID)
	if err != nil || !needsAddress(current) || *current.Location.Coordinates != coords {
		logger.Debug("property changed during lookup, skipping")
		metrics.ObserveEnrichment("skipped")
		return false
	}

	loc := current.Location
	loc.Address = res.Address
	if _, err := w.properties.Update(ctx, p.ID, domain.PropertyPatch{Location: &loc}); err != nil {
		logger.Error("failed to store enriched address", slog.String("error", err.Error()))
		metrics.ObserveEnrichment("error")
		return false
	}

	logger.Info("address enriched", slog.String("address", res.Address))
	metrics.ObserveEnrichment("updated")
	return true
}
