// Package buildings orchestrates building-data retrieval: resolve the
// request to a bbox, consult the right cache tier, and on a miss run the
// fetch → filter → normalize → validate pipeline.
package buildings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"calmap/internal/areas"
	"calmap/internal/cache"
	"calmap/internal/domain"
)

var (
	ErrUnknownTargetArea = errors.New("unknown target area")
	ErrUnknownZone       = errors.New("unknown zone")
)

// Fetcher obtains raw records from the upstream open-data API.
type Fetcher interface {
	FetchArea(ctx context.Context) ([]domain.RawBuilding, error)
	FetchZone(ctx context.Context, bbox domain.BoundingBox) ([]domain.RawBuilding, error)
}

// Service composes the fetcher, the two cache tiers, and the area catalog.
//
// Error policy differs by mode on purpose: explicit area/bbox requests are
// rare user actions whose failures must be visible, so they propagate;
// zone requests back frequent interactive panning, where an empty zone
// beats an error, so they degrade.
type Service struct {
	fetcher   Fetcher
	bboxCache cache.Store
	zoneCache *cache.ZoneCache
	catalog   *areas.Catalog
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(fetcher Fetcher, bboxCache cache.Store, zoneCache *cache.ZoneCache, catalog *areas.Catalog, logger *slog.Logger) *Service {
	return &Service{
		fetcher:   fetcher,
		bboxCache: bboxCache,
		zoneCache: zoneCache,
		catalog:   catalog,
		logger:    logger.With("component", "buildings"),
		now:       time.Now,
	}
}

// FetchByBBox runs the full pipeline for an arbitrary bbox and returns a
// FeatureCollection with validation metadata attached.
func (s *Service) FetchByBBox(ctx context.Context, bbox domain.BoundingBox) (*domain.FeatureCollection, error) {
	return s.fetchCollection(ctx, bbox, "custom")
}

// FetchByTargetArea resolves a named target area and runs the bbox
// pipeline for it.
func (s *Service) FetchByTargetArea(ctx context.Context, name string) ([]domain.Feature, error) {
	area, ok := s.catalog.TargetArea(name)
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownTargetArea)
	}
	collection, err := s.fetchCollection(ctx, area.BBox, area.Name)
	if err != nil {
		return nil, err
	}
	return collection.Features, nil
}

// FetchByZone resolves a zone id and serves it from the zone pipeline.
func (s *Service) FetchByZone(ctx context.Context, zoneID string) ([]domain.Feature, error) {
	zone, ok := s.catalog.Zone(zoneID)
	if !ok {
		return nil, fmt.Errorf("%q: %w", zoneID, ErrUnknownZone)
	}
	return s.FetchZoneBBox(ctx, zone.BBox), nil
}

// FetchZoneBBox serves an interactive viewport. Unlike the bbox pipeline
// it returns a bare feature list without a validation report, and any
// upstream trouble degrades to an empty result instead of an error.
// Degraded results are not cached.
func (s *Service) FetchZoneBBox(ctx context.Context, bbox domain.BoundingBox) []domain.Feature {
	key := cache.ZoneKey(bbox)
	if features, ok := s.zoneCache.Get(key); ok {
		s.logger.Debug("zone cache hit", "bbox", bbox.String(), "buildings", len(features))
		return features
	}

	records, err := s.fetcher.FetchZone(ctx, bbox)
	if err != nil {
		s.logger.Warn("zone fetch degraded to empty result", "bbox", bbox.String(), "error", err)
		return []domain.Feature{}
	}

	features := assembleFeatures(records, bbox)
	s.zoneCache.Set(key, features)

	s.logger.Debug("zone fetch completed",
		"bbox", bbox.String(),
		"fetched", len(records),
		"buildings", len(features),
	)
	return features
}

// TargetAreas lists the available target areas.
func (s *Service) TargetAreas() map[string]areas.TargetArea {
	return s.catalog.TargetAreas()
}

// Zones lists districts with their zone ids.
func (s *Service) Zones() map[string]areas.DistrictSummary {
	return s.catalog.DistrictSummaries()
}

func (s *Service) fetchCollection(ctx context.Context, bbox domain.BoundingBox, areaName string) (*domain.FeatureCollection, error) {
	key := cache.BBoxKey(bbox)

	if payload, ok := s.bboxCache.Get(ctx, key); ok {
		var collection domain.FeatureCollection
		if err := json.Unmarshal(payload, &collection); err == nil {
			s.logger.Debug("bbox cache hit", "bbox", bbox.String(), "buildings", len(collection.Features))
			return &collection, nil
		}
		// Undecodable payload is treated as a miss.
		s.logger.Warn("bbox cache payload unreadable, refetching", "key", key)
	}

	records, err := s.fetcher.FetchArea(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching buildings: %w", err)
	}

	features := assembleFeatures(records, bbox)
	report := domain.ValidateCoverage(features, bbox)

	collection := &domain.FeatureCollection{
		Type:     "FeatureCollection",
		Features: features,
		Metadata: domain.CollectionMetadata{
			TargetArea:  areaName,
			BBox:        bbox,
			Validation:  report,
			GeneratedAt: s.now().UTC().Format("2006-01-02 15:04:05 UTC"),
		},
	}

	if payload, err := json.Marshal(collection); err == nil {
		s.bboxCache.Set(ctx, key, payload)
	}

	s.logger.Info("bbox fetch completed",
		"bbox", bbox.String(),
		"area", areaName,
		"fetched", len(records),
		"buildings", len(features),
		"sufficient_coverage", report.QualityCheck.HasSufficientCoverage,
	)
	return collection, nil
}

// assembleFeatures filters raw records to the bbox and normalizes the
// survivors. Records without geometry are excluded outright.
func assembleFeatures(records []domain.RawBuilding, bbox domain.BoundingBox) []domain.Feature {
	features := make([]domain.Feature, 0, len(records))
	for _, record := range records {
		if record.Polygon == nil || len(record.Polygon.Coordinates) == 0 {
			continue
		}
		if !domain.PolygonIntersectsBBox(record.Polygon.Coordinates, bbox) {
			continue
		}
		features = append(features, domain.Feature{
			Type:       "Feature",
			ID:         record.StructID,
			Properties: domain.NormalizeAttributes(record),
			Geometry:   record.Polygon,
		})
	}
	return features
}
