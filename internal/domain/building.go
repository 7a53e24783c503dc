package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// BoundingBox represents a geographic rectangle in WGS84 degrees,
// ordered (west, south, east, north). It marshals as a 4-element array
// to stay compatible with GeoJSON-style bbox fields.
type BoundingBox struct {
	West  float64
	South float64
	East  float64
	North float64
}

func (b BoundingBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float64{b.West, b.South, b.East, b.North})
}

func (b *BoundingBox) UnmarshalJSON(data []byte) error {
	var coords []float64
	if err := json.Unmarshal(data, &coords); err != nil {
		return err
	}
	if len(coords) != 4 {
		return fmt.Errorf("bbox must have 4 coordinates, got %d", len(coords))
	}
	b.West, b.South, b.East, b.North = coords[0], coords[1], coords[2], coords[3]
	return nil
}

// Contains checks if a point (lon, lat) is within the bounding box.
func (b BoundingBox) Contains(lon, lat float64) bool {
	return lon >= b.West && lon <= b.East &&
		lat >= b.South && lat <= b.North
}

// Area returns the bbox area in square degrees.
func (b BoundingBox) Area() float64 {
	return (b.East - b.West) * (b.North - b.South)
}

// Validate rejects boxes with inverted ordering. Malformed user input is
// refused rather than silently producing an empty area.
func (b BoundingBox) Validate() error {
	if b.West > b.East {
		return fmt.Errorf("bbox west (%v) must not exceed east (%v)", b.West, b.East)
	}
	if b.South > b.North {
		return fmt.Errorf("bbox south (%v) must not exceed north (%v)", b.South, b.North)
	}
	return nil
}

// String renders the box as "west,south,east,north" with the shortest
// decimal representation of each coordinate. Cache keys are derived from
// this form, so it must stay stable.
func (b BoundingBox) String() string {
	parts := [4]float64{b.West, b.South, b.East, b.North}
	strs := make([]string, 0, 4)
	for _, v := range parts {
		strs = append(strs, strconv.FormatFloat(v, 'f', -1, 64))
	}
	return strings.Join(strs, ",")
}

// Elevation is a metric value as served by the open-data API, which wraps
// numbers in JSON strings. Missing or malformed values decode as absent
// instead of failing the whole record.
type Elevation struct {
	value float64
	valid bool
}

// NewElevation returns a present elevation value. Used by tests and
// synthetic records; API records decode via UnmarshalJSON.
func NewElevation(v float64) Elevation {
	return Elevation{value: v, valid: true}
}

func (e Elevation) Value() (float64, bool) {
	return e.value, e.valid
}

func (e *Elevation) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		// Non-numeric text means no elevation data, not a decode failure.
		return nil
	}
	e.value, e.valid = v, true
	return nil
}

func (e Elevation) MarshalJSON() ([]byte, error) {
	if !e.valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(e.value, 'f', -1, 64)), nil
}

// Geometry is a GeoJSON-shaped geometry. Coordinates hold rings of
// (lon, lat[, z]) points and pass through the pipeline unchanged.
type Geometry struct {
	Type        string        `json:"type"`
	Coordinates [][][]float64 `json:"coordinates"`
}

// RawBuilding is one record from the upstream open-data API. Records are
// transient: produced by the fetcher and consumed immediately by the
// filter and normalizer.
type RawBuilding struct {
	StructID     string    `json:"struct_id"`
	Stage        string    `json:"stage"`
	GrdElevMinZ  Elevation `json:"grd_elev_min_z"`
	GrdElevMaxZ  Elevation `json:"grd_elev_max_z"`
	RooftopElevZ Elevation `json:"rooftop_elev_z"`
	Polygon      *Geometry `json:"polygon"`
}

// BuildingType classifies a building by height.
type BuildingType string

const (
	BuildingTypeSingleStory BuildingType = "single_story"
	BuildingTypeLowRise     BuildingType = "low_rise"
	BuildingTypeMidRise     BuildingType = "mid_rise"
	BuildingTypeHighRise    BuildingType = "high_rise"
	BuildingTypeUnknown     BuildingType = "unknown"
)

// LandUse is a coarse land-use classification derived from building type.
type LandUse string

const (
	LandUseResidential LandUse = "residential"
	LandUseMixedUse    LandUse = "mixed_use"
)

// Properties holds the normalized attributes attached to a feature.
// Nullable fields stay in the payload as explicit nulls so map clients
// can distinguish "no data" from "field not served".
type Properties struct {
	StructID string `json:"struct_id,omitempty"`
	Stage    string `json:"stage,omitempty"`

	HeightM *float64 `json:"height_m"`
	Floors  *int     `json:"floors"`

	GrdElevMinZ  Elevation `json:"grd_elev_min_z"`
	GrdElevMaxZ  Elevation `json:"grd_elev_max_z"`
	RooftopElevZ Elevation `json:"rooftop_elev_z"`

	BuildingType   BuildingType `json:"building_type"`
	HeightCategory BuildingType `json:"height_category"`

	// Placeholders until the zoning and assessment datasets are wired in.
	Zoning        string   `json:"zoning"`
	Address       string   `json:"address"`
	AssessedValue *float64 `json:"assessed_value"`
	LandUse       LandUse  `json:"land_use"`

	DataSource  string `json:"data_source"`
	LastUpdated string `json:"last_updated"`
}

// Feature is one building's geometry plus normalized attributes,
// GeoJSON-shaped.
type Feature struct {
	Type       string     `json:"type"`
	ID         string     `json:"id,omitempty"`
	Properties Properties `json:"properties"`
	Geometry   *Geometry  `json:"geometry"`
}

// CollectionMetadata describes how a FeatureCollection was produced.
type CollectionMetadata struct {
	TargetArea  string           `json:"target_area"`
	BBox        BoundingBox      `json:"bbox"`
	Validation  ValidationReport `json:"validation"`
	GeneratedAt string           `json:"generated_at"`
}

// FeatureCollection is the full bbox-pipeline result. It is constructed
// once per cache miss and immutable afterward.
type FeatureCollection struct {
	Type     string             `json:"type"`
	Features []Feature          `json:"features"`
	Metadata CollectionMetadata `json:"metadata"`
}
