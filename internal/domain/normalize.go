package domain

import "math"

const (
	// metersPerFloor is the assumed storey height for floor estimates.
	metersPerFloor = 3.0

	dataSource  = "calgary_3d_buildings"
	lastUpdated = "2025-09-02"

	// zoningPlaceholder stands in until the zoning dataset is integrated.
	zoningPlaceholder = "RC-G"
)

// NormalizeAttributes turns a raw API record into normalized building
// properties. It is a pure function of the record: missing or non-numeric
// elevation fields produce an absent height rather than an error, and a
// height is never zero or negative.
func NormalizeAttributes(b RawBuilding) Properties {
	var heightM *float64
	ground, okGround := b.GrdElevMaxZ.Value()
	rooftop, okRooftop := b.RooftopElevZ.Value()
	if okGround && okRooftop {
		if h := rooftop - ground; h > 0 {
			heightM = &h
		}
	}

	var floors *int
	if heightM != nil {
		f := int(math.Round(*heightM / metersPerFloor))
		if f < 1 {
			f = 1
		}
		floors = &f
	}

	buildingType := ClassifyBuildingType(heightM)

	landUse := LandUseMixedUse
	if buildingType == BuildingTypeSingleStory || buildingType == BuildingTypeLowRise {
		landUse = LandUseResidential
	}

	structID := b.StructID
	if structID == "" {
		structID = "Unknown"
	}

	return Properties{
		StructID: b.StructID,
		Stage:    b.Stage,

		HeightM: heightM,
		Floors:  floors,

		GrdElevMinZ:  b.GrdElevMinZ,
		GrdElevMaxZ:  b.GrdElevMaxZ,
		RooftopElevZ: b.RooftopElevZ,

		BuildingType:   buildingType,
		HeightCategory: buildingType,

		Zoning:        zoningPlaceholder,
		Address:       "Building " + structID,
		AssessedValue: nil,
		LandUse:       landUse,

		DataSource:  dataSource,
		LastUpdated: lastUpdated,
	}
}

// ClassifyBuildingType buckets a building by height in meters. A nil
// height classifies as unknown.
func ClassifyBuildingType(heightM *float64) BuildingType {
	if heightM == nil {
		return BuildingTypeUnknown
	}
	switch h := *heightM; {
	case h < 3:
		return BuildingTypeSingleStory
	case h < 9:
		return BuildingTypeLowRise
	case h < 30:
		return BuildingTypeMidRise
	default:
		return BuildingTypeHighRise
	}
}
