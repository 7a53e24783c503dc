package handler

import (
	"net/http"
	"time"

	"calmap/internal/areas"
	"calmap/internal/cache"
)

type HealthHandler struct {
	catalog   *areas.Catalog
	zoneCache *cache.ZoneCache
}

func NewHealthHandler(catalog *areas.Catalog, zoneCache *cache.ZoneCache) *HealthHandler {
	return &HealthHandler{catalog: catalog, zoneCache: zoneCache}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type ReadyResponse struct {
	Ready       bool      `json:"ready"`
	TargetAreas int       `json:"targetAreas"`
	CachedZones int       `json:"cachedZones"`
	ServerTime  time.Time `json:"serverTime"`
}

func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ReadyResponse{
		Ready:       true,
		TargetAreas: len(h.catalog.TargetAreas()),
		CachedZones: h.zoneCache.Len(),
		ServerTime:  time.Now(),
	})
}
