package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/multierr"

	"mrireslice/internal/models"
	"mrireslice/pkg/projection"
	"mrireslice/pkg/reslice"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config is invalid: %v", err)
	}
	if len(cfg.Jobs) != 4 {
		t.Errorf("expected 4 default jobs, got %d", len(cfg.Jobs))
	}

	r, err := cfg.Input.RawReader()
	if err != nil {
		t.Fatalf("RawReader failed: %v", err)
	}
	if r.SliceFileName(93) != "data/headsq/quarter.93" || r.DataMask != 0x7fff || r.ScalarType != models.Uint16 {
		t.Errorf("unexpected reader %+v", r)
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := CreateDefaultConfigFile(path); err != nil {
		t.Fatalf("CreateDefaultConfigFile failed: %v", err)
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), loaded); diff != "" {
		t.Errorf("config changed on round trip (-want +got):\n%s", diff)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("expected defaults (-want +got):\n%s", diff)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	yamlText := `
processing:
  numWorkers: 2
input:
  fileName: volume.raw
  extent: [0, 9, 0, 9, 0, 4]
  spacing: [1, 1, 2]
  byteOrder: big
  scalarType: float
  dataMask: 0
jobs:
  - name: mip
    type: projection
    orientation: x
    sliceRange: [2, 6]
    slab: {mode: max, multiSlice: true}
  - name: oblique
    type: reslice
    directionCosines: [0.8, 0.6, 0, -0.6, 0.8, 0, 0, 0, 1]
    interpolation: cubic
    boundary: background
    outputScalarType: int16
    slab: {mode: sum, slices: 5, trapezoid: true, spacingFraction: 0.5}
output:
  format: jpg
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yamlText), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if cfg.Output.Directory != "output" {
		t.Errorf("unset fields should keep defaults, got directory %q", cfg.Output.Directory)
	}

	opts, err := cfg.Jobs[0].ProjectionOptions(cfg.Processing.NumWorkers)
	if err != nil {
		t.Fatalf("ProjectionOptions failed: %v", err)
	}
	wantOpts := projection.Options{
		Orientation:      projection.OrientationX,
		SliceRange:       &[2]int{2, 6},
		Operation:        reslice.SlabMax,
		MultiSliceOutput: true,
		NumWorkers:       2,
	}
	if diff := cmp.Diff(wantOpts, opts); diff != "" {
		t.Errorf("projection options (-want +got):\n%s", diff)
	}

	p, err := cfg.Jobs[1].ResliceParams(cfg.Processing.NumWorkers)
	if err != nil {
		t.Fatalf("ResliceParams failed: %v", err)
	}
	if p.Interpolation != reslice.Cubic || p.Boundary != reslice.BoundaryBackground || p.OutputScalarType != models.Int16 {
		t.Errorf("unexpected params %+v", p)
	}
	wantSlab := reslice.SlabSpec{Mode: reslice.SlabSum, NumberOfSlices: 5, TrapezoidIntegration: true, SliceSpacingFraction: 0.5}
	if diff := cmp.Diff(wantSlab, p.Slab); diff != "" {
		t.Errorf("slab (-want +got):\n%s", diff)
	}
	if p.OutputDimensionality != 3 {
		t.Errorf("expected default dimensionality 3, got %d", p.OutputDimensionality)
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Input.ByteOrder = "middle"
	cfg.Jobs[0].Interpolation = "sinc"
	cfg.Jobs[1].Type = "render"
	cfg.Jobs[2].Name = cfg.Jobs[3].Name
	cfg.Jobs[3].DirectionCosines = &[9]float64{1, 0, 0, 1, 0, 0, 0, 0, 1}
	cfg.Jobs[1].Reference = "sagittal-max"
	cfg.Output.Format = "bmp"

	err := cfg.Validate()
	if n := len(multierr.Errors(err)); n != 7 {
		t.Errorf("expected 7 errors, got %d: %v", n, err)
	}
}
