package seed

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/babui-rent/babui/internal/domain"
	"github.com/babui-rent/babui/internal/repository"
	"github.com/babui-rent/babui/internal/service"
)

func TestDefaultDataset(t *testing.T) {
	ds, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if len(ds.Properties) == 0 {
		t.Fatal("embedded dataset is empty")
	}

	locatable := 0
	for _, p := range ds.Properties {
		if !p.Type.Valid() {
			t.Errorf("property %s has unknown type %q", p.ID, p.Type)
		}
		if err := p.ValidateShape(); err != nil {
			t.Errorf("property %s: %v", p.ID, err)
		}
		if p.Location.Locatable() {
			locatable++
		}
	}
	if locatable == len(ds.Properties) {
		t.Error("dataset should include an unpinned listing")
	}
	if ds.Properties[0].AvailableFrom.IsZero() {
		t.Error("availableFrom not decoded")
	}
}

func TestApplySkipsDuplicates(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := repository.NewMemoryPropertyRepository(logger)
	svc := service.NewPropertyService(repo, nil, nil, 0, logger)
	ds, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}

	ctx := context.Background()
	n, err := ds.Apply(ctx, svc, logger)
	if err != nil || n != len(ds.Properties) {
		t.Fatalf("Apply = %d, %v; want %d", n, err, len(ds.Properties))
	}
	if got := repo.List(); got[0].ID != ds.Properties[0].ID {
		t.Fatalf("insertion order not kept: first is %s", got[0].ID)
	}

	n, err = ds.Apply(ctx, svc, logger)
	if err != nil || n != 0 {
		t.Fatalf("second Apply = %d, %v; want 0, nil", n, err)
	}
}

func TestApplyStopsOnInvalid(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := repository.NewMemoryPropertyRepository(logger)
	svc := service.NewPropertyService(repo, nil, nil, 0, logger)

	ds := &Dataset{Properties: []domain.Property{
		{ID: "ok", Type: domain.TypeRoom},
		{ID: "bad", Type: "castle"},
		{ID: "never", Type: domain.TypeRoom},
	}}
	n, err := ds.Apply(context.Background(), svc, logger)
	if err == nil || n != 1 {
		t.Fatalf("Apply = %d, %v; want 1 and an error", n, err)
	}
	if repo.Len() != 1 {
		t.Fatalf("repo has %d properties, want 1", repo.Len())
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seed.yaml")
	body := "properties:\n  - id: x1\n    type: studio\n    location:\n      area: Tejgaon\n      coordinates: {lat: 23.7639, lng: 90.3889}\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	ds, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(ds.Properties) != 1 || ds.Properties[0].Location.Coordinates.Lat != 23.7639 {
		t.Fatalf("unexpected dataset %+v", ds.Properties)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
	if err := os.WriteFile(path, []byte("properties: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}
