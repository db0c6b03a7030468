// Package geo places analysis results on a province map of South Africa.
package geo

import (
	_ "embed"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed provinces.yaml
var defaultProvinces []byte

// Coord is a WGS84 position.
type Coord struct {
	Lat float64 `yaml:"lat" json:"lat"`
	Lon float64 `yaml:"lon" json:"lon"`
}

// Province is a named map anchor.
type Province struct {
	Name string  `yaml:"name" json:"name"`
	Lat  float64 `yaml:"lat" json:"lat"`
	Lon  float64 `yaml:"lon" json:"lon"`
}

// Provinces is the province lookup used to place markers.
type Provinces struct {
	Center Coord      `yaml:"center" json:"center"`
	Zoom   int        `yaml:"zoom" json:"zoom"`
	List   []Province `yaml:"provinces" json:"provinces"`

	byName map[string]Province
}

// DefaultProvinces returns the built-in South African province table.
func DefaultProvinces() *Provinces {
	p, err := parseProvinces(defaultProvinces)
	if err != nil {
		// The embedded document is fixed at build time.
		panic(err)
	}
	return p
}

// LoadProvinces reads a province table from path. YAML documents use the
// same layout as the built-in table; .shp files are read as one shape per
// province, keyed by the NAME attribute and placed at the shape's bounding
// box center. An empty path returns the built-in table.
func LoadProvinces(path string) (*Provinces, error) {
	if path == "" {
		return DefaultProvinces(), nil
	}

	if strings.EqualFold(filepath.Ext(path), ".shp") {
		return loadShapefile(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: read provinces %s", path)
	}
	p, err := parseProvinces(data)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: parse provinces %s", path)
	}
	return p, nil
}

func parseProvinces(data []byte) (*Provinces, error) {
	var p Provinces
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrap(err, "geo: unmarshal provinces")
	}
	if len(p.List) == 0 {
		return nil, eris.New("geo: no provinces defined")
	}
	p.index()
	return &p, nil
}

func loadShapefile(path string) (*Provinces, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	nameIdx := -1
	for i, f := range reader.Fields() {
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), "NAME") {
			nameIdx = i
			break
		}
	}
	if nameIdx < 0 {
		return nil, eris.Errorf("geo: shapefile %s has no NAME field", path)
	}

	base := DefaultProvinces()
	p := &Provinces{Center: base.Center, Zoom: base.Zoom}
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		name := strings.TrimSpace(strings.TrimRight(reader.Attribute(nameIdx), "\x00"))
		if shape == nil || name == "" {
			skipped++
			continue
		}
		box := shape.BBox()
		p.List = append(p.List, Province{
			Name: name,
			Lat:  (box.MinY + box.MaxY) / 2,
			Lon:  (box.MinX + box.MaxX) / 2,
		})
	}

	if skipped > 0 {
		zap.L().Debug("geo: skipped shapefile records", zap.String("path", path), zap.Int("skipped", skipped))
	}
	if len(p.List) == 0 {
		return nil, eris.Errorf("geo: shapefile %s has no named shapes", path)
	}
	p.index()
	return p, nil
}

func (p *Provinces) index() {
	p.byName = make(map[string]Province, len(p.List))
	for _, prov := range p.List {
		key := strings.ToLower(strings.TrimSpace(prov.Name))
		prov.Name = key
		p.byName[key] = prov
	}
}

// Lookup returns the province named name, case-insensitively.
func (p *Provinces) Lookup(name string) (Province, bool) {
	prov, ok := p.byName[strings.ToLower(strings.TrimSpace(name))]
	return prov, ok
}
