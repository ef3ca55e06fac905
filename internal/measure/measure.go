package measure

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/eugenenazirov/flowpack/internal/flow"
)

// ChipStyle holds the metrics used to size a tag chip.
// GlyphWidth is the advance of a single-cell glyph; wide runes count twice.
type ChipStyle struct {
	GlyphWidth  float64 `json:"glyphWidth" yaml:"glyph_width"`
	LineHeight  float64 `json:"lineHeight" yaml:"line_height"`
	PaddingX    float64 `json:"paddingX" yaml:"padding_x"`
	PaddingY    float64 `json:"paddingY" yaml:"padding_y"`
	DeleteGlyph float64 `json:"deleteGlyph" yaml:"delete_glyph"`
	Gap         float64 `json:"gap" yaml:"gap"`
}

// DefaultChipStyle returns metrics for caption-sized chips.
func DefaultChipStyle() ChipStyle {
	return ChipStyle{
		GlyphWidth:  7,
		LineHeight:  16,
		PaddingX:    8,
		PaddingY:    4,
		DeleteGlyph: 10,
		Gap:         4,
	}
}

// Measurer yields the intrinsic size of a label.
type Measurer interface {
	Measure(label string) flow.Size
}

type chipMeasurer struct {
	style     ChipStyle
	deletable bool
}

// NewChipMeasurer creates a Measurer for tag chips. Deletable chips reserve
// room for a trailing delete glyph.
func NewChipMeasurer(style ChipStyle, deletable bool) Measurer {
	return &chipMeasurer{style: style, deletable: deletable}
}

func (m *chipMeasurer) Measure(label string) flow.Size {
	width := float64(runewidth.StringWidth(label))*m.style.GlyphWidth + 2*m.style.PaddingX
	if m.deletable {
		width += m.style.Gap + m.style.DeleteGlyph
	}
	return flow.Size{
		Width:  width,
		Height: m.style.LineHeight + 2*m.style.PaddingY,
	}
}

// MeasureAll measures every label in order.
func MeasureAll(m Measurer, labels []string) []flow.Size {
	sizes := make([]flow.Size, len(labels))
	for i, label := range labels {
		sizes[i] = m.Measure(label)
	}
	return sizes
}

// NormalizeTags trims labels, drops blanks and removes duplicates, keeping
// the first occurrence of each.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
