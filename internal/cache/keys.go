package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"calmap/internal/domain"
)

// BBoxKey derives the persistent-cache key for a bounding box: the SHA-256
// hex digest of its decimal "west,south,east,north" form. Existing cache
// entries are addressed by this digest, so the input form must not change.
func BBoxKey(bbox domain.BoundingBox) string {
	sum := sha256.Sum256([]byte(bbox.String()))
	return hex.EncodeToString(sum[:])
}

// ZoneKey derives the in-memory zone-cache key for a bounding box.
func ZoneKey(bbox domain.BoundingBox) string {
	return fmt.Sprintf("zone_%s", bbox.String())
}
