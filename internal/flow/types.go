package flow

import "math"

// Size is the intrinsic extent of one item, as reported by a size provider.
type Size struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Placement is the computed frame of one item. X and Y are relative to the
// top-left corner of the container; Width and Height echo the packed size
// after clamping.
type Placement struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Result is the outcome of a packing call.
// Placements are index-aligned with the input sizes. Width and Height form
// the bounding size; Rows is the number of rows that hold at least one item.
type Result struct {
	Placements []Placement `json:"placements" yaml:"placements"`
	Width      float64     `json:"width" yaml:"width"`
	Height     float64     `json:"height" yaml:"height"`
	Rows       int         `json:"rows" yaml:"rows"`
}

// Finite reports whether the bounding size is representable. Every placement
// lies within the bounding size, so a finite result has finite placements.
func (r Result) Finite() bool {
	return !math.IsInf(r.Width, 0) && !math.IsNaN(r.Width) &&
		!math.IsInf(r.Height, 0) && !math.IsNaN(r.Height)
}

// Packer describes the behaviour required from a flow packer.
type Packer interface {
	Pack(maxWidth, spacing float64, sizes []Size) Result
}
