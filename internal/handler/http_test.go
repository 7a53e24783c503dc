package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"calmap/internal/areas"
	"calmap/internal/buildings"
	"calmap/internal/cache"
	"calmap/internal/domain"
)

type stubFetcher struct {
	areaRecords []domain.RawBuilding
	areaErr     error
	zoneRecords []domain.RawBuilding
	zoneErr     error
}

func (s *stubFetcher) FetchArea(ctx context.Context) ([]domain.RawBuilding, error) {
	return s.areaRecords, s.areaErr
}

func (s *stubFetcher) FetchZone(ctx context.Context, bbox domain.BoundingBox) ([]domain.RawBuilding, error) {
	return s.zoneRecords, s.zoneErr
}

type nopStore struct{}

func (nopStore) Get(ctx context.Context, key string) ([]byte, bool) { return nil, false }
func (nopStore) Set(ctx context.Context, key string, payload []byte) {}

func downtownPolygon() *domain.Geometry {
	return &domain.Geometry{
		Type: "Polygon",
		Coordinates: [][][]float64{{
			{-114.065, 51.050},
			{-114.064, 51.050},
			{-114.064, 51.051},
			{-114.065, 51.050},
		}},
	}
}

func newTestHandler(t *testing.T, fetcher *stubFetcher) *BuildingsHandler {
	t.Helper()
	catalog, err := areas.NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	svc := buildings.NewService(fetcher, nopStore{}, cache.NewZoneCache(5*time.Minute), catalog, logger)
	return NewBuildingsHandler(svc, catalog, logger)
}

func getBuildings(t *testing.T, h *BuildingsHandler, query string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/buildings"+query, nil)
	rec := httptest.NewRecorder()
	h.GetBuildings(rec, req)
	return rec
}

func TestParseBBox(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    domain.BoundingBox
		wantErr bool
	}{
		{
			name:  "valid",
			input: "-114.075,51.045,-114.055,51.055",
			want:  domain.BoundingBox{West: -114.075, South: 51.045, East: -114.055, North: 51.055},
		},
		{
			name:  "whitespace tolerated",
			input: " -114.075, 51.045 ,-114.055,51.055",
			want:  domain.BoundingBox{West: -114.075, South: 51.045, East: -114.055, North: 51.055},
		},
		{name: "too few parts", input: "-114.075,51.045,-114.055", wantErr: true},
		{name: "too many parts", input: "-114.075,51.045,-114.055,51.055,1", wantErr: true},
		{name: "non-numeric", input: "-114.075,north,-114.055,51.055", wantErr: true},
		{name: "west east inverted", input: "-114.055,51.045,-114.075,51.055", wantErr: true},
		{name: "south north inverted", input: "-114.075,51.055,-114.055,51.045", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseBBox(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("parseBBox() error = nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseBBox() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("parseBBox() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestGetBuildingsRequiresSelector(t *testing.T) {
	h := newTestHandler(t, &stubFetcher{})

	rec := getBuildings(t, h, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if !strings.Contains(body.Error, "zone") || !strings.Contains(body.Error, "bbox") {
		t.Errorf("error message %q should name the accepted parameters", body.Error)
	}
}

func TestGetBuildingsBBox(t *testing.T) {
	fetcher := &stubFetcher{areaRecords: []domain.RawBuilding{
		{StructID: "inside", Polygon: downtownPolygon()},
	}}
	h := newTestHandler(t, fetcher)

	rec := getBuildings(t, h, "?bbox=-114.075,51.045,-114.055,51.055")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var collection domain.FeatureCollection
	if err := json.Unmarshal(rec.Body.Bytes(), &collection); err != nil {
		t.Fatalf("decoding collection: %v", err)
	}
	if collection.Type != "FeatureCollection" {
		t.Errorf("type = %q, want FeatureCollection", collection.Type)
	}
	if len(collection.Features) != 1 {
		t.Errorf("features = %d, want 1", len(collection.Features))
	}
	if collection.Metadata.Validation.Coverage.TotalBuildings != 1 {
		t.Errorf("validation total = %d, want 1", collection.Metadata.Validation.Coverage.TotalBuildings)
	}
}

func TestGetBuildingsBBoxMalformed(t *testing.T) {
	h := newTestHandler(t, &stubFetcher{})

	for _, q := range []string{
		"?bbox=-114.075,51.045",
		"?bbox=a,b,c,d",
		"?bbox=-114.055,51.045,-114.075,51.055",
	} {
		if rec := getBuildings(t, h, q); rec.Code != http.StatusBadRequest {
			t.Errorf("GET %s status = %d, want 400", q, rec.Code)
		}
	}
}

func TestGetBuildingsBBoxUpstreamFailure(t *testing.T) {
	h := newTestHandler(t, &stubFetcher{areaErr: errors.New("connection refused")})

	rec := getBuildings(t, h, "?bbox=-114.075,51.045,-114.055,51.055")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestGetBuildingsTargetArea(t *testing.T) {
	fetcher := &stubFetcher{areaRecords: []domain.RawBuilding{
		{StructID: "inside", Polygon: downtownPolygon()},
	}}
	h := newTestHandler(t, fetcher)

	rec := getBuildings(t, h, "?target_area=downtown")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", rec.Code, rec.Body)
	}

	var body struct {
		Buildings []domain.Feature `json:"buildings"`
		Area      areas.TargetArea `json:"area"`
		Total     int              `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Total != 1 || len(body.Buildings) != 1 {
		t.Errorf("total = %d, buildings = %d, want 1 and 1", body.Total, len(body.Buildings))
	}
	if body.Area.Name != "Downtown Core" {
		t.Errorf("area = %q, want Downtown Core", body.Area.Name)
	}

	if rec := getBuildings(t, h, "?target_area=atlantis"); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown area status = %d, want 400", rec.Code)
	}
}

func TestGetBuildingsTargetAreaUpstreamFailure(t *testing.T) {
	h := newTestHandler(t, &stubFetcher{areaErr: errors.New("timeout")})

	rec := getBuildings(t, h, "?target_area=downtown")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestGetBuildingsZone(t *testing.T) {
	fetcher := &stubFetcher{zoneRecords: []domain.RawBuilding{
		{StructID: "z1", Polygon: downtownPolygon()},
	}}
	h := newTestHandler(t, fetcher)

	rec := getBuildings(t, h, "?zone=downtown_zone_1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", rec.Code, rec.Body)
	}

	var body struct {
		Buildings []domain.Feature `json:"buildings"`
		Zone      areas.Zone       `json:"zone"`
		Total     int              `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Total != 1 {
		t.Errorf("total = %d, want 1", body.Total)
	}
	if !strings.HasPrefix(body.Zone.Name, "Downtown Zone 1") {
		t.Errorf("zone = %q", body.Zone.Name)
	}

	if rec := getBuildings(t, h, "?zone=downtown_zone_99"); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown zone status = %d, want 400", rec.Code)
	}
}

func TestGetBuildingsZoneDegradesToEmpty(t *testing.T) {
	h := newTestHandler(t, &stubFetcher{zoneErr: errors.New("upstream timeout")})

	rec := getBuildings(t, h, "?zone=downtown_zone_2")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with empty list; body = %s", rec.Code, rec.Body)
	}

	var body struct {
		Buildings []domain.Feature `json:"buildings"`
		Total     int              `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Total != 0 || body.Buildings == nil {
		t.Errorf("degraded response = %+v, want empty non-null list", body)
	}
}

func TestGetBuildingsPrecedence(t *testing.T) {
	// zone wins over target_area and bbox when several are supplied.
	fetcher := &stubFetcher{
		areaErr:     errors.New("area path must not run"),
		zoneRecords: []domain.RawBuilding{{StructID: "z1", Polygon: downtownPolygon()}},
	}
	h := newTestHandler(t, fetcher)

	rec := getBuildings(t, h, "?zone=downtown_zone_1&target_area=downtown&bbox=-114.075,51.045,-114.055,51.055")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), `"zone"`) {
		t.Error("response should be the zone shape")
	}
}

func TestListTargetAreas(t *testing.T) {
	h := newTestHandler(t, &stubFetcher{})

	req := httptest.NewRequest(http.MethodGet, "/api/target-areas", nil)
	rec := httptest.NewRecorder()
	h.ListTargetAreas(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body targetAreasResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if _, ok := body.Areas["downtown"]; !ok {
		t.Error("areas missing downtown")
	}
}

func TestListBuildingZones(t *testing.T) {
	h := newTestHandler(t, &stubFetcher{})

	req := httptest.NewRequest(http.MethodGet, "/api/building-zones", nil)
	rec := httptest.NewRecorder()
	h.ListBuildingZones(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body buildingZonesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(body.Zones["downtown"].Zones) != 3 {
		t.Errorf("downtown zones = %d, want 3", len(body.Zones["downtown"].Zones))
	}
}
