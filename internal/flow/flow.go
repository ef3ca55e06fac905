package flow

import (
	"math"
)

type greedyPacker struct{}

// New creates a Packer that fills rows greedily in input order.
func New() Packer {
	return greedyPacker{}
}

func (greedyPacker) Pack(maxWidth, spacing float64, sizes []Size) Result {
	return Pack(maxWidth, spacing, sizes)
}

// Unbounded reports whether maxWidth imposes no wrapping limit.
// Zero, negative, NaN and +Inf widths are all unbounded.
func Unbounded(maxWidth float64) bool {
	return maxWidth <= 0 || math.IsNaN(maxWidth) || math.IsInf(maxWidth, 1)
}

// Pack places sizes left to right, starting a new row whenever the next item
// would cross maxWidth. An item that is first in its row is always placed at
// x=0, even when it is wider than maxWidth.
//
// Negative, NaN and +Inf dimensions and spacing are treated as 0. The bounding
// width is maxWidth, except when maxWidth is unbounded: then it is the widest
// row extent rather than an infinite or zero width. Finite inputs large
// enough to overflow float64 yield a non-finite bounding size, which
// Result.Finite reports. Pack never fails and is safe for concurrent use.
func Pack(maxWidth, spacing float64, sizes []Size) Result {
	unbounded := Unbounded(maxWidth)
	spacing = clamp(spacing)

	result := Result{Placements: make([]Placement, 0, len(sizes))}
	if !unbounded {
		result.Width = maxWidth
	}
	if len(sizes) == 0 {
		return result
	}

	var rowX, rowY, rowHeight, extent float64
	rowItems := 0
	result.Rows = 1

	for _, size := range sizes {
		w, h := clamp(size.Width), clamp(size.Height)

		if !unbounded && rowItems > 0 && rowX+w > maxWidth {
			rowY += rowHeight + spacing
			rowX = 0
			rowHeight = 0
			rowItems = 0
			result.Rows++
		}

		result.Placements = append(result.Placements, Placement{X: rowX, Y: rowY, Width: w, Height: h})
		extent = math.Max(extent, rowX+w)

		rowX += w + spacing
		rowHeight = math.Max(rowHeight, h)
		rowItems++
	}

	result.Height = rowY + rowHeight
	if unbounded {
		result.Width = extent
	}
	return result
}

// clamp maps negative, NaN and +Inf values to 0.
func clamp(v float64) float64 {
	if v > 0 && !math.IsInf(v, 1) {
		return v
	}
	return 0
}
