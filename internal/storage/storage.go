package storage

import (
	"errors"
	"math"
	"sync"

	"github.com/eugenenazirov/flowpack/internal/measure"
)

const (
	defaultMaxWidth = 320
	defaultSpacing  = 8
)

var (
	// ErrInvalidSettings indicates the provided settings violate validation rules.
	ErrInvalidSettings = errors.New("settings must be finite non-negative numbers with positive glyph width and line height")
)

// Settings are the layout defaults applied when a request omits them.
// A MaxWidth of 0 means rows never wrap.
type Settings struct {
	MaxWidth float64           `json:"maxWidth" yaml:"max_width"`
	Spacing  float64           `json:"spacing" yaml:"spacing"`
	Chip     measure.ChipStyle `json:"chip" yaml:"chip"`
}

// Storage provides access to the layout defaults.
type Storage interface {
	GetSettings() (Settings, error)
	SetSettings(settings Settings) error
}

// MemoryStorage keeps settings in-memory and guards access with a RWMutex.
type MemoryStorage struct {
	mu       sync.RWMutex
	settings Settings
}

// NewMemoryStorage initialises storage with the default settings.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		settings: DefaultSettings(),
	}
}

// DefaultSettings returns the built-in layout defaults.
func DefaultSettings() Settings {
	return Settings{
		MaxWidth: defaultMaxWidth,
		Spacing:  defaultSpacing,
		Chip:     measure.DefaultChipStyle(),
	}
}

// GetSettings returns the current settings.
func (s *MemoryStorage) GetSettings() (Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.settings, nil
}

// SetSettings validates and stores the provided settings.
func (s *MemoryStorage) SetSettings(settings Settings) error {
	if err := Validate(settings); err != nil {
		return err
	}

	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()

	return nil
}

// Validate reports ErrInvalidSettings when any field is out of range.
func Validate(settings Settings) error {
	chip := settings.Chip
	for _, v := range []float64{
		settings.MaxWidth, settings.Spacing,
		chip.PaddingX, chip.PaddingY, chip.DeleteGlyph, chip.Gap,
	} {
		if !nonNegative(v) {
			return ErrInvalidSettings
		}
	}
	if !nonNegative(chip.GlyphWidth) || chip.GlyphWidth == 0 {
		return ErrInvalidSettings
	}
	if !nonNegative(chip.LineHeight) || chip.LineHeight == 0 {
		return ErrInvalidSettings
	}
	return nil
}

func nonNegative(v float64) bool {
	return v >= 0 && !math.IsInf(v, 1)
}
