package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"mrireslice/internal/models"
	"mrireslice/pkg/config"
	"mrireslice/pkg/projection"
)

// writeVolume writes a small little-endian uint16 head-like volume as one
// file per slice
func writeVolume(t *testing.T, prefix string, nx, ny, nz int) {
	t.Helper()
	for k := 1; k <= nz; k++ {
		buf := make([]byte, 0, nx*ny*2)
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				buf = binary.LittleEndian.AppendUint16(buf, uint16(i*j+10*k))
			}
		}
		if err := os.WriteFile(fmt.Sprintf("%s.%d", prefix, k), buf, 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestRunDefaultJobs(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "quarter")
	writeVolume(t, prefix, 16, 16, 12)

	cfg := config.DefaultConfig()
	cfg.Processing.NumWorkers = 2
	cfg.Input.FilePrefix = prefix
	cfg.Input.Extent = [6]int{0, 15, 0, 15, 1, 12}
	// centre the volume on the physical origin the default planes cut through
	cfg.Input.Origin = [3]float64{-24, -24, -9.75}
	for n := range cfg.Jobs {
		cfg.Jobs[n].OutputExtent = &[6]int{0, 15, 0, 15, 0, 0}
	}
	cfg.Jobs = append(cfg.Jobs, config.Job{
		Name:        "mip-x",
		Type:        config.JobProjection,
		Orientation: "x",
		SliceRange:  &[2]int{0, 3},
		Slab:        config.SlabConfig{Mode: "max", MultiSlice: true},
	}, config.Job{
		Name:        "mean-x",
		Type:        config.JobProjection,
		Orientation: "x",
		Slab:        config.SlabConfig{Mode: "mean"},
		Reference:   "mip-x",
	}, config.Job{
		Name:      "axial-projection",
		Type:      config.JobProjection,
		Slab:      config.SlabConfig{Mode: "mean", Trapezoid: true},
		Reference: "axial-mean",
	})
	cfg.Output.Directory = filepath.Join(dir, "out")

	core, logs := observer.New(zapcore.InfoLevel)
	files, err := run(context.Background(), cfg, true, zap.New(core))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	// four reslices, three projections, 13 planes of the first one and the montage
	if len(files) != 7+13+1 {
		t.Errorf("expected %d files, got %d: %v", 7+13+1, len(files), files)
	}
	if n := logs.FilterMessage("compared with reference").Len(); n != 2 {
		t.Errorf("expected 2 reference comparisons, got %d", n)
	}
	if skipped := logs.FilterMessage("comparison skipped").All(); len(skipped) != 0 {
		t.Errorf("unexpected skipped comparisons: %v", skipped[0].ContextMap())
	}
	for _, f := range files {
		if info, err := os.Stat(f); err != nil || info.Size() == 0 {
			t.Errorf("missing or empty output %s: %v", f, err)
		}
	}
	if _, err := os.Stat(filepath.Join(cfg.Output.Directory, "montage.png")); err != nil {
		t.Errorf("montage not written: %v", err)
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Jobs[0].Type = "render"
	cfg.Output.Directory = t.TempDir()
	if _, err := run(context.Background(), cfg, false, zaptest.NewLogger(t)); err == nil {
		t.Error("expected error for an unknown job type")
	}
}

func TestCompareResultsAlongAxis(t *testing.T) {
	newResult := func(extent [6]int, axis projection.Orientation) jobResult {
		n := (extent[1] - extent[0] + 1) * (extent[3] - extent[2] + 1) * (extent[5] - extent[4] + 1)
		s, _ := models.NewScalars(models.Float64, n)
		for i := 0; i < n; i++ {
			s.Set(i, float64(i%7))
		}
		return jobResult{image: &models.Image{Extent: extent, Scalars: s}, axis: axis}
	}

	// single planes across x at different positions
	ref := newResult([6]int{0, 0, 0, 6, 0, 4}, projection.OrientationX)
	if _, err := compareResults(ref, newResult([6]int{3, 3, 0, 6, 0, 4}, projection.OrientationX)); err != nil {
		t.Errorf("planes across x should compare: %v", err)
	}
	if _, err := compareResults(ref, newResult([6]int{0, 6, 0, 4, 0, 0}, projection.OrientationZ)); err == nil {
		t.Error("expected an error for results stacked along different axes")
	}
}
