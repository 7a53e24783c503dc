package domain

import "math"

// minBuildingsForCoverage is a reasonable floor for a few city blocks.
const minBuildingsForCoverage = 50

// AreaExtent describes the validated bbox and its size in square degrees.
type AreaExtent struct {
	West    float64 `json:"west"`
	South   float64 `json:"south"`
	East    float64 `json:"east"`
	North   float64 `json:"north"`
	AreaDeg float64 `json:"area_deg"`
}

// CoverageStats counts how many features carry each derived attribute.
type CoverageStats struct {
	TotalBuildings    int     `json:"total_buildings"`
	WithHeight        int     `json:"buildings_with_height"`
	WithGeometry      int     `json:"buildings_with_geometry"`
	WithFloors        int     `json:"buildings_with_floors"`
	WithType          int     `json:"buildings_with_type"`
	HeightCoveragePct float64 `json:"height_coverage_pct"`
	GeomCoveragePct   float64 `json:"geometry_coverage_pct"`
	FloorsCoveragePct float64 `json:"floors_coverage_pct"`
	TypeCoveragePct   float64 `json:"type_coverage_pct"`
}

// QualityCheck gates whether the batch plausibly covers the area. It is
// advisory metadata only and never rejects data.
type QualityCheck struct {
	MinBuildingsForCoverage int  `json:"min_buildings_for_coverage"`
	HasSufficientCoverage   bool `json:"has_sufficient_coverage"`
	HasHeightData           bool `json:"has_height_data"`
	HasValidGeometries      bool `json:"has_valid_geometries"`
	HasFloorData            bool `json:"has_floor_data"`
	HasBuildingTypes        bool `json:"has_building_types"`
}

// EnhancementFlags mirror which enhancement fields are populated. The
// placeholder flags are true by construction until their datasets land.
type EnhancementFlags struct {
	HeightNormalized      bool `json:"height_normalized"`
	FloorsCalculated      bool `json:"floors_calculated"`
	BuildingTypesAssigned bool `json:"building_types_assigned"`
	ZoningPlaceholder     bool `json:"zoning_placeholder"`
	AddressPlaceholder    bool `json:"address_placeholder"`
	AssessmentPlaceholder bool `json:"assessment_placeholder"`
}

// ValidationReport summarizes data quality and coverage for one batch of
// normalized features against its target bbox.
type ValidationReport struct {
	TargetArea   AreaExtent       `json:"target_area"`
	Coverage     CoverageStats    `json:"coverage"`
	QualityCheck QualityCheck     `json:"quality_check"`
	Enhancements EnhancementFlags `json:"enhancements"`
}

// ValidateCoverage computes a coverage report for a batch of features.
func ValidateCoverage(features []Feature, bbox BoundingBox) ValidationReport {
	total := len(features)

	var withHeight, withGeometry, withFloors, withType int
	for _, f := range features {
		if f.Properties.HeightM != nil {
			withHeight++
		}
		if f.Geometry != nil {
			withGeometry++
		}
		if f.Properties.Floors != nil {
			withFloors++
		}
		if f.Properties.BuildingType != "" {
			withType++
		}
	}

	return ValidationReport{
		TargetArea: AreaExtent{
			West:    bbox.West,
			South:   bbox.South,
			East:    bbox.East,
			North:   bbox.North,
			AreaDeg: roundTo(bbox.Area(), 6),
		},
		Coverage: CoverageStats{
			TotalBuildings:    total,
			WithHeight:        withHeight,
			WithGeometry:      withGeometry,
			WithFloors:        withFloors,
			WithType:          withType,
			HeightCoveragePct: coveragePct(withHeight, total),
			GeomCoveragePct:   coveragePct(withGeometry, total),
			FloorsCoveragePct: coveragePct(withFloors, total),
			TypeCoveragePct:   coveragePct(withType, total),
		},
		QualityCheck: QualityCheck{
			MinBuildingsForCoverage: minBuildingsForCoverage,
			HasSufficientCoverage:   total >= minBuildingsForCoverage,
			HasHeightData:           withHeight > 0,
			HasValidGeometries:      withGeometry > 0,
			HasFloorData:            withFloors > 0,
			HasBuildingTypes:        withType > 0,
		},
		Enhancements: EnhancementFlags{
			HeightNormalized:      withHeight > 0,
			FloorsCalculated:      withFloors > 0,
			BuildingTypesAssigned: withType > 0,
			ZoningPlaceholder:     true,
			AddressPlaceholder:    true,
			AssessmentPlaceholder: true,
		},
	}
}

func coveragePct(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return roundTo(float64(count)/float64(total)*100, 1)
}

func roundTo(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Round(v*scale) / scale
}
