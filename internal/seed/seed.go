// Package seed loads demo listings into a fresh store.
package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/babui-rent/babui/internal/domain"
)

//go:embed properties.yaml
var defaultDataset []byte

// Dataset is the YAML document layout
type Dataset struct {
	Properties []domain.Property `yaml:"properties"`
}

// Adder is the part of the property service the loader needs
type Adder interface {
	Add(ctx context.Context, p domain.Property) (domain.Property, error)
}

// Default returns the embedded Dhaka dataset
func Default() (*Dataset, error) {
	return parse(defaultDataset)
}

// Load reads a dataset from path
func Load(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (*Dataset, error) {
	var ds Dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("parse seed data: %w", err)
	}
	return &ds, nil
}

// Apply adds every listing in order. Listings whose id is already present are
// skipped; any other rejection stops the load.
func (d *Dataset) Apply(ctx context.Context, svc Adder, logger *slog.Logger) (int, error) {
	added := 0
	for _, p := range d.Properties {
		_, err := svc.Add(ctx, p)
		var dup *domain.DuplicateIDError
		switch {
		case err == nil:
			added++
		case errors.As(err, &dup):
			logger.Debug("seed property already present", slog.String("property_id", p.ID))
		default:
			return added, fmt.Errorf("seed property %q: %w", p.ID, err)
		}
	}
	logger.Info("seed data loaded", slog.Int("added", added), slog.Int("total", len(d.Properties)))
	return added, nil
}
