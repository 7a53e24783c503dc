package domain

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestNormalizeAttributesHeight(t *testing.T) {
	tests := []struct {
		name       string
		ground     Elevation
		rooftop    Elevation
		wantHeight *float64
	}{
		{"positive height", NewElevation(1045.0), NewElevation(1075.5), ptr(30.5)},
		{"rooftop below ground", NewElevation(1050.0), NewElevation(1045.0), nil},
		{"rooftop equals ground", NewElevation(1050.0), NewElevation(1050.0), nil},
		{"missing ground", Elevation{}, NewElevation(1075.0), nil},
		{"missing rooftop", NewElevation(1045.0), Elevation{}, nil},
		{"both missing", Elevation{}, Elevation{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			props := NormalizeAttributes(RawBuilding{
				StructID:     "B1",
				GrdElevMaxZ:  tt.ground,
				RooftopElevZ: tt.rooftop,
			})
			if (props.HeightM == nil) != (tt.wantHeight == nil) {
				t.Fatalf("HeightM = %v, want %v", props.HeightM, tt.wantHeight)
			}
			if props.HeightM != nil && *props.HeightM != *tt.wantHeight {
				t.Errorf("HeightM = %v, want %v", *props.HeightM, *tt.wantHeight)
			}
			if props.HeightM != nil && *props.HeightM <= 0 {
				t.Errorf("HeightM = %v, must never be <= 0", *props.HeightM)
			}
			if props.HeightM == nil && props.Floors != nil {
				t.Error("Floors set without height data")
			}
		})
	}
}

func TestNormalizeAttributesFloors(t *testing.T) {
	tests := []struct {
		height float64
		want   int
	}{
		{1.0, 1},  // rounds to 0, floored at 1
		{3.0, 1},
		{4.6, 2},
		{30.0, 10},
		{31.6, 11},
	}

	for _, tt := range tests {
		props := NormalizeAttributes(RawBuilding{
			GrdElevMaxZ:  NewElevation(0),
			RooftopElevZ: NewElevation(tt.height),
		})
		if props.Floors == nil {
			t.Fatalf("height %v: Floors absent", tt.height)
		}
		if *props.Floors != tt.want {
			t.Errorf("height %v: Floors = %d, want %d", tt.height, *props.Floors, tt.want)
		}
	}
}

func TestClassifyBuildingType(t *testing.T) {
	tests := []struct {
		height *float64
		want   BuildingType
	}{
		{nil, BuildingTypeUnknown},
		{ptr(2.999), BuildingTypeSingleStory},
		{ptr(3.0), BuildingTypeLowRise},
		{ptr(8.999), BuildingTypeLowRise},
		{ptr(9.0), BuildingTypeMidRise},
		{ptr(29.999), BuildingTypeMidRise},
		{ptr(30.0), BuildingTypeHighRise},
		{ptr(200.0), BuildingTypeHighRise},
	}

	for _, tt := range tests {
		if got := ClassifyBuildingType(tt.height); got != tt.want {
			t.Errorf("ClassifyBuildingType(%v) = %v, want %v", tt.height, got, tt.want)
		}
	}
}

func TestNormalizeAttributesLandUse(t *testing.T) {
	low := NormalizeAttributes(RawBuilding{GrdElevMaxZ: NewElevation(0), RooftopElevZ: NewElevation(5)})
	if low.LandUse != LandUseResidential {
		t.Errorf("low rise LandUse = %v, want residential", low.LandUse)
	}

	high := NormalizeAttributes(RawBuilding{GrdElevMaxZ: NewElevation(0), RooftopElevZ: NewElevation(50)})
	if high.LandUse != LandUseMixedUse {
		t.Errorf("high rise LandUse = %v, want mixed_use", high.LandUse)
	}

	unknown := NormalizeAttributes(RawBuilding{})
	if unknown.LandUse != LandUseMixedUse {
		t.Errorf("unknown type LandUse = %v, want mixed_use", unknown.LandUse)
	}
}

func TestNormalizeAttributesPlaceholders(t *testing.T) {
	props := NormalizeAttributes(RawBuilding{StructID: "12345"})

	if props.Zoning != "RC-G" {
		t.Errorf("Zoning = %q, want RC-G", props.Zoning)
	}
	if props.Address != "Building 12345" {
		t.Errorf("Address = %q", props.Address)
	}
	if props.AssessedValue != nil {
		t.Errorf("AssessedValue = %v, want nil", props.AssessedValue)
	}
	if props.DataSource != "calgary_3d_buildings" {
		t.Errorf("DataSource = %q", props.DataSource)
	}

	anon := NormalizeAttributes(RawBuilding{})
	if anon.Address != "Building Unknown" {
		t.Errorf("Address without struct_id = %q", anon.Address)
	}
}

func TestNormalizeAttributesIdempotent(t *testing.T) {
	record := RawBuilding{
		StructID:     "B7",
		Stage:        "ACTIVE",
		GrdElevMaxZ:  NewElevation(1045.2),
		RooftopElevZ: NewElevation(1080.7),
	}

	first := NormalizeAttributes(record)
	second := NormalizeAttributes(record)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("normalize not deterministic:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestElevationDecode(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantVal  float64
		wantSet  bool
	}{
		{"quoted number", `"1050.5"`, 1050.5, true},
		{"bare number", `1050.5`, 1050.5, true},
		{"null", `null`, 0, false},
		{"empty string", `""`, 0, false},
		{"non-numeric text", `"n/a"`, 0, false},
		{"padded", `" 12 "`, 12, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e Elevation
			if err := json.Unmarshal([]byte(tt.raw), &e); err != nil {
				t.Fatalf("Unmarshal(%s) error = %v", tt.raw, err)
			}
			val, ok := e.Value()
			if ok != tt.wantSet {
				t.Fatalf("Value() ok = %v, want %v", ok, tt.wantSet)
			}
			if ok && val != tt.wantVal {
				t.Errorf("Value() = %v, want %v", val, tt.wantVal)
			}
		})
	}
}

func TestRawBuildingDecodeMalformedElevations(t *testing.T) {
	raw := `{"struct_id":"X1","grd_elev_max_z":"not a number","rooftop_elev_z":"1070.0"}`

	var record RawBuilding
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	props := NormalizeAttributes(record)
	if props.HeightM != nil {
		t.Errorf("HeightM = %v, want absent for malformed ground elevation", *props.HeightM)
	}
	if props.BuildingType != BuildingTypeUnknown {
		t.Errorf("BuildingType = %v, want unknown", props.BuildingType)
	}
}

func ptr(v float64) *float64 { return &v }
