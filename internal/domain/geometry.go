package domain

// PolygonIntersectsBBox reports whether any vertex of the polygon lies
// inside the bounding box. This is deliberately lenient rather than a true
// polygon/rectangle intersection: a polygon that only crosses the box with
// an edge, all vertices outside, is not matched. Consumers rely on this
// exact semantic, so do not tighten it here.
func PolygonIntersectsBBox(rings [][][]float64, bbox BoundingBox) bool {
	for _, ring := range rings {
		for _, point := range ring {
			if len(point) < 2 {
				continue
			}
			if bbox.Contains(point[0], point[1]) {
				return true
			}
		}
	}
	return false
}
