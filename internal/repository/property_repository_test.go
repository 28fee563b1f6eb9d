package repository

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/babui-rent/babui/internal/domain"
)

func newTestRepo() *MemoryPropertyRepository {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fixed := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return NewMemoryPropertyRepository(logger).WithClock(func() time.Time { return fixed })
}

func listing(id string) domain.Property {
	return domain.Property{
		ID:        id,
		Title:     "Flat " + id,
		Price:     25000,
		Type:      domain.TypeApartment,
		Amenities: []string{"lift"},
		Location: domain.Location{
			City:        "Dhaka",
			Area:        "Gulshan",
			Coordinates: &domain.Coordinates{Lat: 23.7925, Lng: 90.4078},
		},
	}
}

func TestAddAndGet(t *testing.T) {
	repo := newTestRepo()
	if err := repo.Add(listing("p1")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	got, ok := repo.Get("p1")
	if !ok {
		t.Fatal("expected p1 to be found")
	}
	if got.Currency != domain.DefaultCurrency {
		t.Fatalf("currency = %q, want %q", got.Currency, domain.DefaultCurrency)
	}
	if got.CreatedAt.IsZero() || !got.UpdatedAt.Equal(got.CreatedAt) {
		t.Fatalf("timestamps not stamped: %v %v", got.CreatedAt, got.UpdatedAt)
	}
	if repo.Len() != 1 {
		t.Fatalf("Len = %d, want 1", repo.Len())
	}
}

func TestAddRejectsDuplicateAndMissingID(t *testing.T) {
	repo := newTestRepo()
	_ = repo.Add(listing("p1"))

	err := repo.Add(listing("p1"))
	if !errors.Is(err, domain.ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
	var dup *domain.DuplicateIDError
	if !errors.As(err, &dup) || dup.ID != "p1" {
		t.Fatalf("expected DuplicateIDError for p1, got %#v", err)
	}
	if repo.Len() != 1 {
		t.Fatalf("size changed on duplicate insert: %d", repo.Len())
	}

	if err := repo.Add(domain.Property{}); !errors.Is(err, domain.ErrMissingID) {
		t.Fatalf("expected ErrMissingID, got %v", err)
	}
}

func TestListKeepsInsertionOrder(t *testing.T) {
	repo := newTestRepo()
	for _, id := range []string{"c", "a", "b"} {
		_ = repo.Add(listing(id))
	}
	repo.Remove("a")
	_ = repo.Add(listing("d"))

	var got []string
	for _, p := range repo.List() {
		got = append(got, p.ID)
	}
	want := []string{"c", "b", "d"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}

	// index must follow the shifted positions
	if p, ok := repo.Get("d"); !ok || p.ID != "d" {
		t.Fatalf("Get(d) after removal = %v, %v", p.ID, ok)
	}
}

func TestUpdate(t *testing.T) {
	repo := newTestRepo()
	_ = repo.Add(listing("p1"))
	before, _ := repo.Get("p1")

	t.Run("unknown id", func(t *testing.T) {
		title := "x"
		ok, err := repo.Update("missing", domain.PropertyPatch{Title: &title})
		if ok || err != nil {
			t.Fatalf("Update(missing) = %v, %v", ok, err)
		}
		if repo.Len() != 1 {
			t.Fatal("unknown update changed the size")
		}
	})

	t.Run("empty patch leaves record unchanged", func(t *testing.T) {
		ok, err := repo.Update("p1", domain.PropertyPatch{})
		if !ok || err != nil {
			t.Fatalf("Update = %v, %v", ok, err)
		}
		after, _ := repo.Get("p1")
		if after.Title != before.Title || !after.UpdatedAt.Equal(before.UpdatedAt) {
			t.Fatalf("record changed: %+v", after)
		}
	})

	t.Run("partial patch", func(t *testing.T) {
		price := 30000.0
		available := true
		ok, err := repo.Update("p1", domain.PropertyPatch{Price: &price, Available: &available})
		if !ok || err != nil {
			t.Fatalf("Update = %v, %v", ok, err)
		}
		after, _ := repo.Get("p1")
		if after.Price != 30000 || !after.Available || after.Title != before.Title {
			t.Fatalf("unexpected record: %+v", after)
		}
	})
}

func TestRemove(t *testing.T) {
	repo := newTestRepo()
	_ = repo.Add(listing("p1"))

	if !repo.Remove("p1") {
		t.Fatal("expected Remove to report true")
	}
	if _, ok := repo.Get("p1"); ok {
		t.Fatal("p1 still present after Remove")
	}
	if repo.Remove("p1") {
		t.Fatal("second Remove should report false")
	}
	if repo.Len() != 0 {
		t.Fatalf("Len = %d", repo.Len())
	}
}

func TestReturnedCopiesAreIsolated(t *testing.T) {
	repo := newTestRepo()
	p := listing("p1")
	_ = repo.Add(p)

	// mutate the caller's original
	p.Amenities[0] = "caller"
	p.Location.Coordinates.Lat = 0

	got, _ := repo.Get("p1")
	got.Amenities[0] = "mutated"
	got.Location.Coordinates.Lng = 0

	again, _ := repo.Get("p1")
	if again.Amenities[0] != "lift" {
		t.Fatalf("amenities leaked: %v", again.Amenities)
	}
	if again.Location.Coordinates.Lat != 23.7925 || again.Location.Coordinates.Lng != 90.4078 {
		t.Fatalf("coordinates leaked: %+v", again.Location.Coordinates)
	}

	list := repo.List()
	list[0].Title = "changed"
	if again, _ := repo.Get("p1"); again.Title == "changed" {
		t.Fatal("List returned shared records")
	}
}

func TestSubscribe(t *testing.T) {
	repo := newTestRepo()

	var order []string
	var events []domain.ChangeEvent
	unsubFirst := repo.Subscribe(func(ev domain.ChangeEvent) {
		order = append(order, "first")
		events = append(events, ev)
	})
	repo.Subscribe(func(ev domain.ChangeEvent) {
		order = append(order, "second")
	})

	_ = repo.Add(listing("p1"))
	title := "Renamed"
	_, _ = repo.Update("p1", domain.PropertyPatch{Title: &title})
	_, _ = repo.Update("p1", domain.PropertyPatch{})
	repo.Remove("p1")
	repo.Remove("p1")

	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	kinds := []domain.ChangeKind{domain.ChangeAdded, domain.ChangeUpdated, domain.ChangeRemoved}
	for i, k := range kinds {
		if events[i].Kind != k || events[i].PropertyID != "p1" {
			t.Fatalf("event %d = %s/%s, want %s/p1", i, events[i].Kind, events[i].PropertyID, k)
		}
	}
	if events[1].Property.Title != "Renamed" {
		t.Fatalf("update event carries %q", events[1].Property.Title)
	}
	if order[0] != "first" || order[1] != "second" {
		t.Fatalf("listeners not called in subscription order: %v", order)
	}

	unsubFirst()
	unsubFirst()
	_ = repo.Add(listing("p2"))
	if len(events) != 3 {
		t.Fatalf("unsubscribed listener still notified")
	}
	if order[len(order)-1] != "second" {
		t.Fatalf("remaining listener not notified: %v", order)
	}
}

func TestListenerCanReadRepository(t *testing.T) {
	repo := newTestRepo()
	var seen int
	repo.Subscribe(func(ev domain.ChangeEvent) {
		seen = repo.Len()
	})
	_ = repo.Add(listing("p1"))
	if seen != 1 {
		t.Fatalf("listener saw Len = %d, want 1", seen)
	}
}

func TestConcurrentAccess(t *testing.T) {
	repo := newTestRepo()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a'+i%26)) + string(rune('a'+i/26))
			_ = repo.Add(listing(id))
			_ = repo.List()
			price := float64(i)
			_, _ = repo.Update(id, domain.PropertyPatch{Price: &price})
		}(i)
	}
	wg.Wait()
	if repo.Len() != 50 {
		t.Fatalf("Len = %d, want 50", repo.Len())
	}
}
