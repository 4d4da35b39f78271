package viewer

// Lazy page scheduling: a page starts rendering the first time its layout
// region comes within ProximityMargin of the visible viewport, and once
// revealed it never goes back to hidden. Placeholder heights keep the total
// scroll height approximately stable while pages progressively resolve their
// real dimensions.

// pageGap is the vertical spacing between page regions.
const pageGap = 12.0

// placeholderHeight picks the height to reserve for a page: its own resolved
// height when known, the document-wide first-resolved estimate otherwise,
// and a fixed fallback before any page has resolved.
func placeholderHeight(resolved, estimated, fallback float64) float64 {
	if resolved > 0 {
		return resolved
	}
	if estimated > 0 {
		return estimated
	}
	return fallback
}

// layoutOffsets returns the top offset of each page region given the heights
// the placeholders currently occupy.
func layoutOffsets(heights []float64) []float64 {
	offsets := make([]float64, len(heights))
	var y float64
	for i, h := range heights {
		offsets[i] = y
		y += h + pageGap
	}
	return offsets
}

// withinMargin reports whether the region [top, top+height) comes within
// margin of the viewport [viewTop, viewTop+viewHeight).
func withinMargin(top, height, viewTop, viewHeight, margin float64) bool {
	return top < viewTop+viewHeight+margin && top+height > viewTop-margin
}
