package geo

import (
	"fmt"
	"slices"
	"strings"

	"github.com/desertthunder/footprint/internal/shared"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// NameProperty is the feature property holding the city name.
const NameProperty = "name"

// Feature is one named city boundary.
type Feature struct {
	Name     string
	Geometry orb.Geometry
	Bound    orb.Bound
}

// Dataset is an immutable, ordered collection of city boundaries.
type Dataset struct {
	features []Feature
	index    map[string]int
	bound    orb.Bound
}

// Stats summarizes progress against the dataset.
type Stats struct {
	Visited   int `json:"visited"`
	Total     int `json:"total"`
	Remaining int `json:"remaining"`
}

// ParseDataset decodes a GeoJSON feature collection. Features without a name or geometry are skipped.
func ParseDataset(data []byte) (*Dataset, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse city dataset: %w", shared.ErrInvalidInput, err)
	}

	features := make([]Feature, 0, len(fc.Features))
	for _, f := range fc.Features {
		name := strings.TrimSpace(f.Properties.MustString(NameProperty, ""))
		if name == "" || f.Geometry == nil {
			continue
		}
		features = append(features, Feature{Name: name, Geometry: f.Geometry, Bound: f.Geometry.Bound()})
	}
	return NewDataset(features)
}

// NewDataset builds a dataset from already decoded features.
func NewDataset(features []Feature) (*Dataset, error) {
	if len(features) == 0 {
		return nil, fmt.Errorf("%w: city dataset has no named features", shared.ErrInvalidInput)
	}

	d := &Dataset{features: features, index: make(map[string]int, len(features))}
	for i, f := range features {
		if _, dup := d.index[f.Name]; !dup {
			d.index[f.Name] = i
		}
		if i == 0 {
			d.bound = f.Bound
		} else {
			d.bound = d.bound.Union(f.Bound)
		}
	}
	return d, nil
}

// Len returns the number of features.
func (d *Dataset) Len() int { return len(d.features) }

// Features returns the features in dataset order. The slice must not be modified.
func (d *Dataset) Features() []Feature { return d.features }

// Bounds returns the WGS84 bounds of the whole dataset.
func (d *Dataset) Bounds() orb.Bound { return d.bound }

// Has reports whether name is a known city.
func (d *Dataset) Has(name string) bool {
	_, ok := d.index[name]
	return ok
}

// Names returns the city names in dataset order.
func (d *Dataset) Names() []string {
	names := make([]string, len(d.features))
	for i, f := range d.features {
		names[i] = f.Name
	}
	return names
}

// Search returns city names containing query (case-insensitive), in dataset order.
// An empty query matches nothing; limit <= 0 means no limit.
func (d *Dataset) Search(query string, limit int) []string {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	var matches []string
	for _, f := range d.features {
		if !strings.Contains(strings.ToLower(f.Name), query) {
			continue
		}
		if slices.Contains(matches, f.Name) {
			continue
		}
		matches = append(matches, f.Name)
		if limit > 0 && len(matches) == limit {
			break
		}
	}
	return matches
}

// Stats counts the distinct known cities in visited against the dataset size.
func (d *Dataset) Stats(visited []string) Stats {
	seen := make(map[string]bool, len(visited))
	for _, name := range visited {
		if d.Has(name) {
			seen[name] = true
		}
	}
	s := Stats{Visited: len(seen), Total: len(d.features)}
	s.Remaining = max(s.Total-s.Visited, 0)
	return s
}
