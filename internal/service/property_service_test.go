package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/babui-rent/babui/internal/domain"
	"github.com/babui-rent/babui/internal/geo"
	"github.com/babui-rent/babui/internal/repository"
)

type fakeGeocoder struct {
	address    string
	reverseErr error
	candidates []domain.GeocodeCandidate
	searchErr  error
	reverses   int
	searches   int
}

func (f *fakeGeocoder) Reverse(ctx context.Context, c domain.Coordinates) (string, error) {
	f.reverses++
	return f.address, f.reverseErr
}

func (f *fakeGeocoder) Search(ctx context.Context, q string, limit int) ([]domain.GeocodeCandidate, error) {
	f.searches++
	return f.candidates, f.searchErr
}

func newTestService(t *testing.T, geocoder domain.Geocoder) (*PropertyService, *repository.MemoryPropertyRepository) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := repository.NewMemoryPropertyRepository(logger)
	svc := NewPropertyService(repo, geocoder, nil, time.Minute, logger)
	repo.Subscribe(svc.HandleChange)
	return svc, repo
}

func located(id string, lat, lng float64) domain.Property {
	return domain.Property{
		ID:       id,
		Title:    id,
		Type:     domain.TypeApartment,
		Location: domain.Location{City: "Dhaka", Coordinates: &domain.Coordinates{Lat: lat, Lng: lng}},
	}
}

func TestAddAssignsIDAndValidates(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	p, err := svc.Add(ctx, located("", 23.79, 90.40))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if p.ID == "" || p.Currency != domain.DefaultCurrency {
		t.Fatalf("expected generated id and default currency, got %+v", p)
	}

	if _, err := svc.Add(ctx, located(p.ID, 23.79, 90.40)); !errors.Is(err, domain.ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}

	bad := located("bad", 123, 90)
	if _, err := svc.Add(ctx, bad); !errors.Is(err, domain.ErrInvalidCoordinate) {
		t.Fatalf("expected ErrInvalidCoordinate, got %v", err)
	}
	if svc.Count() != 1 {
		t.Fatalf("Count = %d, want 1", svc.Count())
	}
}

func TestUpdateRemoveGet(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	_, _ = svc.Add(ctx, located("p1", 23.79, 90.40))

	price := 42000.0
	updated, err := svc.Update(ctx, "p1", domain.PropertyPatch{Price: &price})
	if err != nil || updated.Price != 42000 {
		t.Fatalf("Update = %+v, %v", updated, err)
	}

	if _, err := svc.Update(ctx, "ghost", domain.PropertyPatch{Price: &price}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	neg := -1.0
	if _, err := svc.Update(ctx, "p1", domain.PropertyPatch{Price: &neg}); !errors.Is(err, domain.ErrInvalidProperty) {
		t.Fatalf("expected ErrInvalidProperty, got %v", err)
	}

	if err := svc.Remove(ctx, "p1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := svc.Get(ctx, "p1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after remove, got %v", err)
	}
	if err := svc.Remove(ctx, "p1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second remove = %v", err)
	}
}

func TestListFiltersByType(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	office := located("o1", 23.73, 90.41)
	office.Type = domain.TypeOffice
	_, _ = svc.Add(ctx, located("a1", 23.79, 90.40))
	_, _ = svc.Add(ctx, office)
	_, _ = svc.Add(ctx, located("a2", 23.75, 90.37))

	if got := svc.List(ctx, ""); len(got) != 3 {
		t.Fatalf("List() returned %d", len(got))
	}
	got := svc.List(ctx, domain.TypeApartment)
	if len(got) != 2 || got[0].ID != "a1" || got[1].ID != "a2" {
		t.Fatalf("filtered list = %+v", got)
	}
}

func TestQueryByLocationSeesChanges(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	center := domain.Coordinates{Lat: 23.7925, Lng: 90.4078}

	_, _ = svc.Add(ctx, located("gulshan", 23.7925, 90.4078))
	_, _ = svc.Add(ctx, located("dhanmondi", 23.7461, 90.3742))

	first := svc.QueryByLocation(ctx, center, 5)
	if len(first) != 1 || first[0].Property.ID != "gulshan" {
		t.Fatalf("first query = %+v", first)
	}
	second := svc.QueryByLocation(ctx, center, 5)
	if len(second) != 1 || second[0].Property.ID != "gulshan" {
		t.Fatalf("repeat query differs: %+v", second)
	}

	// a cached result must not survive a mutation
	_, _ = svc.Add(ctx, located("banani", 23.7940, 90.4043))
	third := svc.QueryByLocation(ctx, center, 5)
	if len(third) != 2 || third[1].Property.ID != "banani" {
		t.Fatalf("query after add = %+v", third)
	}

	_ = svc.Remove(ctx, "gulshan")
	fourth := svc.QueryByLocation(ctx, center, 5)
	if len(fourth) != 1 || fourth[0].Property.ID != "banani" {
		t.Fatalf("query after remove = %+v", fourth)
	}
}

func TestQueryByLocationResultIsCallerOwned(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	center := domain.Coordinates{Lat: 23.79, Lng: 90.40}
	far := located("far", 23.80, 90.41)
	far.Amenities = []string{"lift", "generator"}
	_, _ = svc.Add(ctx, far)
	_, _ = svc.Add(ctx, located("near", 23.79, 90.40))

	sorted := svc.QueryByLocation(ctx, center, 10)
	geo.SortByDistance(sorted)

	again := svc.QueryByLocation(ctx, center, 10)
	if again[0].Property.ID != "far" {
		t.Fatalf("sorting a result reordered the cached copy: %+v", again)
	}

	again[0].Property.Amenities[0] = "pool"
	again[0].Property.Location.Coordinates.Lat = 0

	third := svc.QueryByLocation(ctx, center, 10)
	if got := third[0].Property.Amenities[0]; got != "lift" {
		t.Fatalf("amenity = %q, cached entry was mutated", got)
	}
	if got := third[0].Property.Location.Coordinates.Lat; got != 23.80 {
		t.Fatalf("lat = %v, cached entry was mutated", got)
	}
}

func TestQueryByLocationKeysExactCenter(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	_, _ = svc.Add(ctx, located("pin", 23.7925001, 90.4078))

	if got := svc.QueryByLocation(ctx, domain.Coordinates{Lat: 23.7925, Lng: 90.4078}, 0); len(got) != 0 {
		t.Fatalf("offset center matched at radius 0: %+v", got)
	}
	got := svc.QueryByLocation(ctx, domain.Coordinates{Lat: 23.7925001, Lng: 90.4078}, 0)
	if len(got) != 1 || got[0].Property.ID != "pin" {
		t.Fatalf("coincident center = %+v, want pin", got)
	}
}

func TestSweepCacheDropsExpiredResults(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := repository.NewMemoryPropertyRepository(logger)
	svc := NewPropertyService(repo, nil, nil, time.Millisecond, logger)
	ctx := context.Background()
	_, _ = svc.Add(ctx, located("a", 23.79, 90.40))

	for i := range 3 {
		svc.QueryByLocation(ctx, domain.Coordinates{Lat: 23.79, Lng: 90.40}, float64(i+1))
	}
	if n := svc.nearby.Len(); n != 3 {
		t.Fatalf("cached entries = %d, want 3", n)
	}

	time.Sleep(5 * time.Millisecond)
	if n := svc.SweepCache(); n != 3 {
		t.Fatalf("swept = %d, want 3", n)
	}
	if n := svc.nearby.Len(); n != 0 {
		t.Fatalf("entries after sweep = %d", n)
	}
}

func TestClusters(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	_, _ = svc.Add(ctx, located("a", 23.8103001, 90.4125001))
	_, _ = svc.Add(ctx, located("b", 23.8103002, 90.4125002))
	_, _ = svc.Add(ctx, located("c", 23.7461, 90.3742))
	_, _ = svc.Add(ctx, domain.Property{ID: "pinless"})

	all := svc.Clusters(ctx, nil)
	if len(all) != 2 || all[0].Count() != 2 || all[1].Count() != 1 {
		t.Fatalf("clusters = %+v", all)
	}

	scoped := svc.Clusters(ctx, &NearbyScope{Center: domain.Coordinates{Lat: 23.7461, Lng: 90.3742}, RadiusKm: 1})
	if len(scoped) != 1 || scoped[0].Properties[0].ID != "c" {
		t.Fatalf("scoped clusters = %+v", scoped)
	}
}

func TestResolveAddress(t *testing.T) {
	c := domain.Coordinates{Lat: 23.8103, Lng: 90.4125}

	tests := []struct {
		name     string
		geocoder domain.Geocoder
		want     AddressResult
	}{
		{"resolved", &fakeGeocoder{address: "Gulshan Avenue, Dhaka"}, AddressResult{Address: "Gulshan Avenue, Dhaka", Resolved: true}},
		{"geocoder error", &fakeGeocoder{reverseErr: domain.ErrGeocoderUnavailable}, AddressResult{Address: "23.810300, 90.412500"}},
		{"empty address", &fakeGeocoder{address: "  "}, AddressResult{Address: "23.810300, 90.412500"}},
		{"no geocoder", nil, AddressResult{Address: "23.810300, 90.412500"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t, tt.geocoder)
			if got := svc.ResolveAddress(context.Background(), c); got != tt.want {
				t.Fatalf("ResolveAddress = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSearchFallsBackToGazetteer(t *testing.T) {
	t.Run("geocoder answers", func(t *testing.T) {
		fake := &fakeGeocoder{candidates: []domain.GeocodeCandidate{{DisplayName: "Gulshan 1", Source: "nominatim"}}}
		svc, _ := newTestService(t, fake)
		got := svc.Search(context.Background(), "gulshan", 5)
		if len(got) != 1 || got[0].Source != "nominatim" {
			t.Fatalf("got %+v", got)
		}
	})

	t.Run("geocoder fails", func(t *testing.T) {
		fake := &fakeGeocoder{searchErr: errors.New("boom")}
		svc, _ := newTestService(t, fake)
		got := svc.Search(context.Background(), "Gulshn", 5)
		if len(got) == 0 || got[0].Source != "gazetteer" || got[0].DisplayName != "Gulshan, Dhaka" {
			t.Fatalf("got %+v", got)
		}
	})

	t.Run("geocoder finds nothing", func(t *testing.T) {
		fake := &fakeGeocoder{}
		svc, _ := newTestService(t, fake)
		got := svc.Search(context.Background(), "Uttara", 5)
		if len(got) != 1 || got[0].DisplayName != "Uttara, Dhaka" {
			t.Fatalf("got %+v", got)
		}
	})

	t.Run("fallback disabled", func(t *testing.T) {
		fake := &fakeGeocoder{searchErr: errors.New("boom")}
		svc, _ := newTestService(t, fake)
		svc.WithoutSearchFallback()
		if got := svc.Search(context.Background(), "Gulshan", 5); len(got) != 0 {
			t.Fatalf("got %+v", got)
		}
		if _, ok := svc.AreaCenter("gulshan"); !ok {
			t.Fatal("area lookups should still use the gazetteer")
		}
	})

	t.Run("short query", func(t *testing.T) {
		fake := &fakeGeocoder{}
		svc, _ := newTestService(t, fake)
		if got := svc.Search(context.Background(), " g ", 5); len(got) != 0 {
			t.Fatalf("got %+v", got)
		}
		if fake.searches != 0 {
			t.Fatal("short query reached the geocoder")
		}
	})
}
