package domain

import "testing"

func makeFeature(withHeight bool) Feature {
	record := RawBuilding{
		StructID: "F1",
		Polygon:  &Geometry{Type: "Polygon", Coordinates: [][][]float64{{{-114.06, 51.05}}}},
	}
	if withHeight {
		record.GrdElevMaxZ = NewElevation(0)
		record.RooftopElevZ = NewElevation(12)
	}
	return Feature{
		Type:       "Feature",
		ID:         record.StructID,
		Properties: NormalizeAttributes(record),
		Geometry:   record.Polygon,
	}
}

func TestValidateCoverageEmpty(t *testing.T) {
	report := ValidateCoverage(nil, testBBox)

	cov := report.Coverage
	if cov.TotalBuildings != 0 {
		t.Errorf("TotalBuildings = %d, want 0", cov.TotalBuildings)
	}
	// Percentages must be 0 with no buildings, not NaN.
	if cov.HeightCoveragePct != 0 || cov.GeomCoveragePct != 0 || cov.FloorsCoveragePct != 0 || cov.TypeCoveragePct != 0 {
		t.Errorf("percentages not zeroed on empty batch: %+v", cov)
	}
	if report.QualityCheck.HasSufficientCoverage {
		t.Error("HasSufficientCoverage = true for empty batch")
	}
}

func TestValidateCoverageCounts(t *testing.T) {
	features := []Feature{makeFeature(true), makeFeature(true), makeFeature(false)}

	report := ValidateCoverage(features, testBBox)
	cov := report.Coverage

	if cov.TotalBuildings != 3 {
		t.Fatalf("TotalBuildings = %d, want 3", cov.TotalBuildings)
	}
	if cov.WithHeight != 2 {
		t.Errorf("WithHeight = %d, want 2", cov.WithHeight)
	}
	if cov.WithGeometry != 3 {
		t.Errorf("WithGeometry = %d, want 3", cov.WithGeometry)
	}
	if cov.WithFloors != 2 {
		t.Errorf("WithFloors = %d, want 2", cov.WithFloors)
	}
	if cov.WithType != 3 {
		t.Errorf("WithType = %d, want 3", cov.WithType)
	}
	if cov.HeightCoveragePct != 66.7 {
		t.Errorf("HeightCoveragePct = %v, want 66.7", cov.HeightCoveragePct)
	}
	if cov.GeomCoveragePct != 100 {
		t.Errorf("GeomCoveragePct = %v, want 100", cov.GeomCoveragePct)
	}
	if report.QualityCheck.HasSufficientCoverage {
		t.Error("HasSufficientCoverage = true for 3 buildings")
	}
	if !report.QualityCheck.HasHeightData {
		t.Error("HasHeightData = false with 2 height-bearing buildings")
	}
}

func TestValidateCoverageSufficient(t *testing.T) {
	features := make([]Feature, 50)
	for i := range features {
		features[i] = makeFeature(true)
	}

	report := ValidateCoverage(features, testBBox)
	if !report.QualityCheck.HasSufficientCoverage {
		t.Error("HasSufficientCoverage = false at exactly 50 buildings")
	}
}

func TestValidateCoverageExtent(t *testing.T) {
	report := ValidateCoverage(nil, testBBox)

	extent := report.TargetArea
	if extent.West != testBBox.West || extent.North != testBBox.North {
		t.Errorf("extent = %+v, want bbox %+v", extent, testBBox)
	}
	if extent.AreaDeg != 0.0002 {
		t.Errorf("AreaDeg = %v, want 0.0002", extent.AreaDeg)
	}
}

func TestValidateCoveragePlaceholderFlags(t *testing.T) {
	report := ValidateCoverage(nil, testBBox)

	flags := report.Enhancements
	if !flags.ZoningPlaceholder || !flags.AddressPlaceholder || !flags.AssessmentPlaceholder {
		t.Errorf("placeholder flags must be true by construction: %+v", flags)
	}
}
