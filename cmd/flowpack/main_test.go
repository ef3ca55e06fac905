package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/flowpack/internal/flow"
)

func TestRunPacksJSONFromStdin(t *testing.T) {
	input := `{"max_width": 100, "spacing": 10, "sizes": [{"width": 40, "height": 20}, {"width": 40, "height": 20}, {"width": 40, "height": 20}]}`

	var stdout bytes.Buffer
	opts := options{file: "-", format: "json", maxWidth: -1, spacing: -1}
	if err := run(opts, strings.NewReader(input), &stdout); err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	var got flow.Result
	if err := json.Unmarshal(stdout.Bytes(), &got); err != nil {
		t.Fatalf("decode output: %v", err)
	}

	want := flow.Result{
		Placements: []flow.Placement{
			{X: 0, Y: 0, Width: 40, Height: 20},
			{X: 50, Y: 0, Width: 40, Height: 20},
			{X: 0, Y: 30, Width: 40, Height: 20},
		},
		Width:  100,
		Height: 50,
		Rows:   2,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected result (-want +got):\n%s", diff)
	}
}

func TestRunMeasuresTagsFromYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tags.yaml")
	contents := `
max_width: 100
sizes:
  - {width: 20, height: 10}
tags: [swift, ios, swift]
chip:
  padding_x: 0
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write layout: %v", err)
	}

	var stdout bytes.Buffer
	opts := options{file: path, format: "yaml", maxWidth: -1, spacing: 0}
	if err := run(opts, nil, &stdout); err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	var got struct {
		Placements []flow.Placement `yaml:"placements"`
		Labels     []string         `yaml:"labels"`
		Rows       int              `yaml:"rows"`
	}
	if err := yaml.Unmarshal(stdout.Bytes(), &got); err != nil {
		t.Fatalf("decode output: %v", err)
	}

	if diff := cmp.Diff([]string{"", "swift", "ios"}, got.Labels); diff != "" {
		t.Fatalf("unexpected labels (-want +got):\n%s", diff)
	}
	// Padding is overridden to 0 while glyph width keeps its default of 7.
	wantWidths := []float64{20, 35, 21}
	for i, p := range got.Placements {
		if p.Width != wantWidths[i] {
			t.Fatalf("placement %d: expected width %v, got %v", i, wantWidths[i], p.Width)
		}
	}
	if got.Rows != 1 {
		t.Fatalf("expected a single row, got %d", got.Rows)
	}
}

func TestRunFlagOverridesDocument(t *testing.T) {
	input := "max_width: 10\nsizes: [{width: 8, height: 1}, {width: 8, height: 1}]\n"

	var stdout bytes.Buffer
	opts := options{file: "-", format: "json", maxWidth: 0, spacing: -1}
	if err := run(opts, strings.NewReader(input), &stdout); err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	var got flow.Result
	if err := json.Unmarshal(stdout.Bytes(), &got); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if got.Rows != 1 {
		t.Fatalf("expected unbounded width flag to keep one row, got %d", got.Rows)
	}
}

func TestRunReportsErrors(t *testing.T) {
	opts := options{file: filepath.Join(t.TempDir(), "missing.yaml"), format: "yaml", maxWidth: -1, spacing: -1}
	if err := run(opts, nil, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected error for missing file")
	}

	opts.file = "-"
	if err := run(opts, strings.NewReader("sizes: [oops"), &bytes.Buffer{}); err == nil {
		t.Fatalf("expected error for malformed input")
	}
}
