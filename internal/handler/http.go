package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"calmap/internal/areas"
	"calmap/internal/buildings"
	"calmap/internal/domain"
)

// BuildingsHandler serves the building retrieval endpoints.
type BuildingsHandler struct {
	service *buildings.Service
	catalog *areas.Catalog
	logger  *slog.Logger
}

func NewBuildingsHandler(service *buildings.Service, catalog *areas.Catalog, logger *slog.Logger) *BuildingsHandler {
	return &BuildingsHandler{service: service, catalog: catalog, logger: logger}
}

type zoneResponse struct {
	Buildings []domain.Feature `json:"buildings"`
	Zone      areas.Zone       `json:"zone"`
	Total     int              `json:"total"`
	Message   string           `json:"message"`
}

type areaResponse struct {
	Buildings []domain.Feature `json:"buildings"`
	Area      areas.TargetArea `json:"area"`
	Total     int              `json:"total"`
	Message   string           `json:"message"`
}

// GetBuildings dispatches on the zone, target_area, or bbox query
// parameter, in that order of precedence.
func (h *BuildingsHandler) GetBuildings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	switch {
	case q.Get("zone") != "":
		h.serveZone(w, r, q.Get("zone"))
	case q.Get("target_area") != "":
		h.serveTargetArea(w, r, q.Get("target_area"))
	case q.Get("bbox") != "":
		h.serveBBox(w, r, q.Get("bbox"))
	default:
		respondError(w, http.StatusBadRequest, "must provide either 'zone', 'target_area', or 'bbox' parameter")
	}
}

func (h *BuildingsHandler) serveZone(w http.ResponseWriter, r *http.Request, zoneID string) {
	zone, ok := h.catalog.Zone(zoneID)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid zone: "+zoneID)
		return
	}

	// Zone retrieval degrades to an empty list on upstream trouble;
	// interactive panning prefers empty data over errors.
	features, err := h.service.FetchByZone(r.Context(), zoneID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid zone: "+zoneID)
		return
	}

	respondJSON(w, http.StatusOK, zoneResponse{
		Buildings: features,
		Zone:      zone,
		Total:     len(features),
		Message:   "Buildings for " + zone.Name,
	})
}

func (h *BuildingsHandler) serveTargetArea(w http.ResponseWriter, r *http.Request, name string) {
	area, ok := h.catalog.TargetArea(name)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid target area: "+name)
		return
	}

	features, err := h.service.FetchByTargetArea(r.Context(), name)
	if err != nil {
		if errors.Is(err, buildings.ErrUnknownTargetArea) {
			respondError(w, http.StatusBadRequest, "invalid target area: "+name)
			return
		}
		h.logger.Error("target area fetch failed", "area", name, "error", err)
		respondError(w, http.StatusBadGateway, "failed to fetch buildings from upstream")
		return
	}

	respondJSON(w, http.StatusOK, areaResponse{
		Buildings: features,
		Area:      area,
		Total:     len(features),
		Message:   "Buildings for " + area.Name,
	})
}

func (h *BuildingsHandler) serveBBox(w http.ResponseWriter, r *http.Request, bboxStr string) {
	bbox, err := parseBBox(bboxStr)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid bbox: "+err.Error())
		return
	}

	collection, err := h.service.FetchByBBox(r.Context(), bbox)
	if err != nil {
		h.logger.Error("bbox fetch failed", "bbox", bbox.String(), "error", err)
		respondError(w, http.StatusBadGateway, "failed to fetch buildings from upstream")
		return
	}

	respondJSON(w, http.StatusOK, collection)
}

type targetAreasResponse struct {
	Areas   map[string]areas.TargetArea `json:"areas"`
	Message string                      `json:"message"`
}

func (h *BuildingsHandler) ListTargetAreas(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, targetAreasResponse{
		Areas:   h.service.TargetAreas(),
		Message: "Available target areas for building data",
	})
}

type buildingZonesResponse struct {
	Zones   map[string]areas.District `json:"zones"`
	Message string                    `json:"message"`
}

func (h *BuildingsHandler) ListBuildingZones(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, buildingZonesResponse{
		Zones:   h.catalog.Districts(),
		Message: "Available building zones for optimized rendering",
	})
}

// parseBBox parses "west,south,east,north" and rejects inverted boxes.
func parseBBox(s string) (domain.BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return domain.BoundingBox{}, errors.New("expected west,south,east,north")
	}

	coords := make([]float64, 4)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return domain.BoundingBox{}, errors.New("coordinates must be numeric")
		}
		coords[i] = v
	}

	bbox := domain.BoundingBox{West: coords[0], South: coords[1], East: coords[2], North: coords[3]}
	if err := bbox.Validate(); err != nil {
		return domain.BoundingBox{}, err
	}
	return bbox, nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}
