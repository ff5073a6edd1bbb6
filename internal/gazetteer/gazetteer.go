// Package gazetteer loads the versioned city reference snapshot and answers
// lookups against it. The snapshot is immutable after load and shared by
// reference; no mutation path exists.
package gazetteer

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// City is one administrative entry in the reference data.
type City struct {
	Name    string   `yaml:"name"`
	Region  string   `yaml:"region"`
	Code    string   `yaml:"code"`
	Aliases []string `yaml:"aliases"`
}

// snapshot is the on-disk shape of the gazetteer file.
type snapshot struct {
	Version string            `yaml:"version"`
	Regions map[string]string `yaml:"regions"`
	Cities  []City            `yaml:"cities"`
}

// Gazetteer is the loaded, matcher-ready reference data.
type Gazetteer struct {
	version string
	cities  []City
	byCode  map[string]int
	regions map[string]string
	matcher *textMatcher
}

// Load reads a gazetteer snapshot from a YAML file and builds the matcher.
func Load(path string) (*Gazetteer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gazetteer: %w", err)
	}
	return Parse(data)
}

// Parse builds a Gazetteer from raw YAML bytes.
func Parse(data []byte) (*Gazetteer, error) {
	var snap snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal gazetteer: %w", err)
	}
	if snap.Version == "" {
		return nil, fmt.Errorf("gazetteer version is required")
	}
	if len(snap.Cities) == 0 {
		return nil, fmt.Errorf("gazetteer has no cities")
	}

	g := &Gazetteer{
		version: snap.Version,
		cities:  snap.Cities,
		byCode:  make(map[string]int, len(snap.Cities)),
		regions: snap.Regions,
	}
	for i, city := range snap.Cities {
		if city.Code == "" {
			return nil, fmt.Errorf("city %q: administrative code is required", city.Name)
		}
		if _, dup := g.byCode[city.Code]; dup {
			return nil, fmt.Errorf("duplicate administrative code %q", city.Code)
		}
		g.byCode[city.Code] = i
	}
	g.matcher = newTextMatcher(snap.Cities, snap.Regions)
	return g, nil
}

// Version returns the snapshot version tag.
func (g *Gazetteer) Version() string {
	return g.version
}

// CityByCode looks a city up by administrative code.
func (g *Gazetteer) CityByCode(code string) (City, bool) {
	i, ok := g.byCode[code]
	if !ok {
		return City{}, false
	}
	return g.cities[i], true
}

// Cities returns the full reference list, ordered by administrative code.
func (g *Gazetteer) Cities() []City {
	out := make([]City, len(g.cities))
	copy(out, g.cities)
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// NameMatch is one distinct city name found in a text, with every gazetteer
// entry that name could refer to.
type NameMatch struct {
	Matched    string
	Candidates []City
}

// FindCities scans normalized text for gazetteer names and aliases with word
// boundary matching. Matches are deterministic: ordered by first candidate's
// administrative code.
func (g *Gazetteer) FindCities(text string) []NameMatch {
	return g.matcher.findCities(text)
}

// RegionsIn returns the region codes whose display names appear in the text,
// used to disambiguate city names shared across regions.
func (g *Gazetteer) RegionsIn(text string) []string {
	return g.matcher.findRegions(text)
}

// RegionName resolves a region code to its display name.
func (g *Gazetteer) RegionName(code string) string {
	return g.regions[code]
}
