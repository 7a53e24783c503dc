// Package areas holds the static target-area and zone reference tables.
// Entries are validated once at startup so lookups never see a malformed
// bbox.
package areas

import (
	"fmt"

	"calmap/internal/domain"
)

// DefaultTargetArea is used when a request names no area.
const DefaultTargetArea = "downtown"

// TargetArea is a large, user-facing named region.
type TargetArea struct {
	Name              string             `json:"name"`
	Description       string             `json:"description"`
	BBox              domain.BoundingBox `json:"bbox"`
	ExpectedBuildings string             `json:"expected_buildings"`
}

// Zone is a smaller subdivision of a district, sized for fast interactive
// retrieval.
type Zone struct {
	Name              string             `json:"name"`
	Description       string             `json:"description"`
	BBox              domain.BoundingBox `json:"bbox"`
	ExpectedBuildings string             `json:"expected_buildings"`
	Center            [2]float64         `json:"center"`
}

// District groups zones under a named area of the city.
type District struct {
	Name  string          `json:"name"`
	Zones map[string]Zone `json:"zones"`
}

// DistrictSummary lists a district's zone ids without their full metadata.
type DistrictSummary struct {
	Name  string   `json:"name"`
	Zones []string `json:"zones"`
}

var targetAreas = map[string]TargetArea{
	"downtown": {
		Name:              "Downtown Core",
		Description:       "Central business district and high-rises",
		BBox:              domain.BoundingBox{West: -114.075, South: 51.045, East: -114.055, North: 51.055},
		ExpectedBuildings: "~300 buildings",
	},
}

var districts = map[string]District{
	"downtown": {
		Name: "Downtown District",
		Zones: map[string]Zone{
			"downtown_zone_1": {
				Name:              "Downtown Zone 1 - Stephen Avenue",
				Description:       "Stephen Avenue pedestrian mall and retail",
				BBox:              domain.BoundingBox{West: -114.100, South: 51.030, East: -114.040, North: 51.070},
				ExpectedBuildings: "~100 buildings",
				Center:            [2]float64{-114.070, 51.050},
			},
			"downtown_zone_2": {
				Name:              "Downtown Zone 2 - Financial District",
				Description:       "High-rise office towers and banks",
				BBox:              domain.BoundingBox{West: -114.080, South: 51.055, East: -114.060, North: 51.070},
				ExpectedBuildings: "~80 buildings",
				Center:            [2]float64{-114.070, 51.0625},
			},
			"downtown_zone_3": {
				Name:              "Downtown Zone 3 - East Village",
				Description:       "Riverside development area",
				BBox:              domain.BoundingBox{West: -114.070, South: 51.040, East: -114.050, North: 51.070},
				ExpectedBuildings: "~120 buildings",
				Center:            [2]float64{-114.060, 51.055},
			},
		},
	},
}

// Catalog is the validated, immutable reference data for named retrieval.
type Catalog struct {
	areas     map[string]TargetArea
	districts map[string]District
	zones     map[string]Zone
}

// NewCatalog validates the built-in tables and returns the catalog.
func NewCatalog() (*Catalog, error) {
	return newCatalog(targetAreas, districts)
}

func newCatalog(areas map[string]TargetArea, dists map[string]District) (*Catalog, error) {
	zones := make(map[string]Zone)

	for id, area := range areas {
		if area.Name == "" {
			return nil, fmt.Errorf("target area %q: missing name", id)
		}
		if err := area.BBox.Validate(); err != nil {
			return nil, fmt.Errorf("target area %q: %w", id, err)
		}
	}

	for districtID, district := range dists {
		if district.Name == "" {
			return nil, fmt.Errorf("district %q: missing name", districtID)
		}
		for zoneID, zone := range district.Zones {
			if zone.Name == "" {
				return nil, fmt.Errorf("zone %q: missing name", zoneID)
			}
			if err := zone.BBox.Validate(); err != nil {
				return nil, fmt.Errorf("zone %q: %w", zoneID, err)
			}
			if _, dup := zones[zoneID]; dup {
				return nil, fmt.Errorf("zone %q: duplicate id across districts", zoneID)
			}
			zones[zoneID] = zone
		}
	}

	if _, ok := areas[DefaultTargetArea]; !ok {
		return nil, fmt.Errorf("default target area %q not defined", DefaultTargetArea)
	}

	return &Catalog{areas: areas, districts: dists, zones: zones}, nil
}

// TargetArea looks up a named target area.
func (c *Catalog) TargetArea(id string) (TargetArea, bool) {
	area, ok := c.areas[id]
	return area, ok
}

// Zone looks up a zone by its id across all districts.
func (c *Catalog) Zone(id string) (Zone, bool) {
	zone, ok := c.zones[id]
	return zone, ok
}

// TargetAreas returns all target areas keyed by id.
func (c *Catalog) TargetAreas() map[string]TargetArea {
	out := make(map[string]TargetArea, len(c.areas))
	for id, area := range c.areas {
		out[id] = area
	}
	return out
}

// Districts returns the full district tables keyed by id.
func (c *Catalog) Districts() map[string]District {
	out := make(map[string]District, len(c.districts))
	for id, district := range c.districts {
		out[id] = district
	}
	return out
}

// DistrictSummaries returns district names with their zone id lists.
func (c *Catalog) DistrictSummaries() map[string]DistrictSummary {
	out := make(map[string]DistrictSummary, len(c.districts))
	for id, district := range c.districts {
		zoneIDs := make([]string, 0, len(district.Zones))
		for zoneID := range district.Zones {
			zoneIDs = append(zoneIDs, zoneID)
		}
		out[id] = DistrictSummary{Name: district.Name, Zones: zoneIDs}
	}
	return out
}
