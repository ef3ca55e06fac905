package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/flowpack/internal/flow"
	"github.com/eugenenazirov/flowpack/internal/measure"
	"github.com/eugenenazirov/flowpack/internal/storage"
)

// document is the layout file accepted by the CLI. YAML is a superset of
// JSON, so both formats decode through yaml.v3.
type document struct {
	MaxWidth  *float64          `yaml:"max_width"`
	Spacing   *float64          `yaml:"spacing"`
	Sizes     []flow.Size       `yaml:"sizes"`
	Tags      []string          `yaml:"tags"`
	Deletable bool              `yaml:"deletable"`
	Chip      measure.ChipStyle `yaml:"chip"`
}

type output struct {
	flow.Result `yaml:",inline"`

	// Labels is index-aligned with the placements when tags were measured.
	Labels []string `json:"labels,omitempty" yaml:"labels,omitempty"`
}

type options struct {
	file     string
	format   string
	maxWidth float64
	spacing  float64
}

func main() {
	app := kingpin.New("flowpack", "Pack item sizes into wrapped rows and print the placements")
	file := app.Arg("file", "Layout file in YAML or JSON, '-' for stdin").Required().String()
	format := app.Flag("format", "Output format").Default("yaml").Enum("yaml", "json")
	maxWidth := app.Flag("max-width", "Override the container width (0 disables wrapping)").Default("-1").Float64()
	spacing := app.Flag("spacing", "Override the gap between items and rows").Default("-1").Float64()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	opts := options{file: *file, format: *format, maxWidth: *maxWidth, spacing: *spacing}
	if err := run(opts, os.Stdin, os.Stdout); err != nil {
		app.Fatalf("%v", err)
	}
}

func run(opts options, stdin io.Reader, stdout io.Writer) error {
	settings := storage.DefaultSettings()
	doc, err := readDocument(opts.file, stdin, settings.Chip)
	if err != nil {
		return err
	}

	maxWidth, spacing := settings.MaxWidth, settings.Spacing
	if doc.MaxWidth != nil {
		maxWidth = *doc.MaxWidth
	}
	if doc.Spacing != nil {
		spacing = *doc.Spacing
	}
	if opts.maxWidth >= 0 {
		maxWidth = opts.maxWidth
	}
	if opts.spacing >= 0 {
		spacing = opts.spacing
	}

	// Explicit sizes come first, measured tag chips follow them.
	tags := measure.NormalizeTags(doc.Tags)
	sizes := append([]flow.Size{}, doc.Sizes...)
	sizes = append(sizes, measure.MeasureAll(measure.NewChipMeasurer(doc.Chip, doc.Deletable), tags)...)

	out := output{Result: flow.Pack(maxWidth, spacing, sizes)}
	if len(tags) > 0 {
		out.Labels = make([]string, len(doc.Sizes), len(sizes))
		out.Labels = append(out.Labels, tags...)
	}

	return write(stdout, opts.format, out)
}

// readDocument decodes the layout file. Chip metrics missing from the file
// keep the values from chip.
func readDocument(path string, stdin io.Reader, chip measure.ChipStyle) (document, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return document{}, fmt.Errorf("read layout: %w", err)
	}

	doc := document{Chip: chip}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return document{}, fmt.Errorf("parse layout: %w", err)
	}
	return doc, nil
}

func write(w io.Writer, format string, out output) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
	default:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
	}
	return nil
}
