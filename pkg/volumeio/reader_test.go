package volumeio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap/zaptest"

	"mrireslice/internal/models"
)

// writeSlices writes nz uint16 slices of nx*ny samples valued i + 10j + 100k,
// with bit 15 set on every sample so masking can be checked
func writeSlices(t *testing.T, prefix string, nx, ny, first, last int, order binary.ByteOrder, compress bool) {
	t.Helper()
	for k := first; k <= last; k++ {
		var buf bytes.Buffer
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				binary.Write(&buf, order, uint16(0x8000|(i+10*j+100*k)))
			}
		}
		data := buf.Bytes()
		name := fmt.Sprintf("%s.%02d", prefix, k)
		if compress {
			var gz bytes.Buffer
			zw := gzip.NewWriter(&gz)
			zw.Write(data)
			zw.Close()
			data = gz.Bytes()
			name += ".gz"
		}
		if err := os.WriteFile(name, data, 0644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
}

func TestReadSlices(t *testing.T) {
	testCases := []struct {
		name     string
		order    binary.ByteOrder
		compress bool
	}{
		{"little endian", binary.LittleEndian, false},
		{"big endian", binary.BigEndian, false},
		{"gzip", binary.LittleEndian, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			prefix := filepath.Join(dir, "quarter")
			writeSlices(t, prefix, 4, 3, 10, 12, tc.order, tc.compress)

			r := NewRawReader(prefix, [6]int{0, 3, 0, 2, 10, 12})
			r.FilePattern = "%s.%02d"
			r.ByteOrder = tc.order
			r.DataMask = 0x7fff
			r.Spacing = [3]float64{3.2, 3.2, 1.5}
			r.Logger = zaptest.NewLogger(t)
			vol, err := r.Read(context.Background())
			if err != nil {
				t.Fatalf("Read failed: %v", err)
			}
			if err := vol.Validate(); err != nil {
				t.Fatalf("volume invalid: %v", err)
			}
			for k := 10; k <= 12; k++ {
				for j := 0; j < 3; j++ {
					for i := 0; i < 4; i++ {
						if got, want := vol.At(i, j, k), float64(i+10*j+100*k); got != want {
							t.Fatalf("(%d,%d,%d) expected %g, got %g", i, j, k, want, got)
						}
					}
				}
			}
		})
	}
}

func TestReadSingleFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "volume.raw")
	var buf bytes.Buffer
	buf.Write([]byte{0xde, 0xad, 0xbe, 0xef})
	for n := 0; n < 8; n++ {
		binary.Write(&buf, binary.BigEndian, float32(n)-2.5)
	}
	if err := os.WriteFile(name, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	r := &RawReader{
		FileName:   name,
		DataExtent: [6]int{0, 1, 0, 1, 0, 1},
		Spacing:    [3]float64{1, 1, 1},
		ByteOrder:  binary.BigEndian,
		ScalarType: models.Float32,
		HeaderSize: 4,
	}
	vol, err := r.Read(context.Background())
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	for n, v := range vol.Data {
		if v != float64(n)-2.5 {
			t.Errorf("sample %d expected %g, got %g", n, float64(n)-2.5, v)
		}
	}
}

func TestDecodeSignedTypes(t *testing.T) {
	testCases := []struct {
		typ  models.ScalarType
		raw  []byte
		want float64
	}{
		{models.Int8, []byte{0xff}, -1},
		{models.Int16, []byte{0x00, 0x80}, math.MinInt16},
		{models.Int32, []byte{0xfe, 0xff, 0xff, 0xff}, -2},
		{models.Uint32, []byte{0xfe, 0xff, 0xff, 0xff}, math.MaxUint32 - 1},
		{models.Float64, binary.LittleEndian.AppendUint64(nil, math.Float64bits(1.25)), 1.25},
	}
	for _, tc := range testCases {
		r := &RawReader{ScalarType: tc.typ}
		if got := r.decode(tc.raw, binary.LittleEndian); got != tc.want {
			t.Errorf("%v: expected %g, got %g", tc.typ, tc.want, got)
		}
	}
}

func TestReadErrors(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "short")
	writeSlices(t, prefix, 2, 2, 1, 1, binary.LittleEndian, false)

	testCases := []struct {
		name   string
		modify func(r *RawReader)
	}{
		{"missing slice", func(r *RawReader) { r.DataExtent[5] = 2 }},
		{"short file", func(r *RawReader) { r.DataExtent[1] = 5 }},
		{"mask on floats", func(r *RawReader) { r.ScalarType = models.Float32; r.DataMask = 0xff }},
		{"bit samples", func(r *RawReader) { r.ScalarType = models.Bit }},
		{"no source", func(r *RawReader) { r.FilePrefix = "" }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRawReader(prefix, [6]int{0, 1, 0, 1, 1, 1})
			r.FilePattern = "%s.%02d"
			tc.modify(r)
			if vol, err := r.Read(context.Background()); err == nil || vol != nil {
				t.Errorf("expected error, got %v, %v", vol, err)
			}
		})
	}
}

func TestParseByteOrder(t *testing.T) {
	if o, err := ParseByteOrder("big"); err != nil || o != binary.BigEndian {
		t.Errorf("ParseByteOrder(big) = %v, %v", o, err)
	}
	if o, err := ParseByteOrder(""); err != nil || o != binary.LittleEndian {
		t.Errorf("ParseByteOrder(\"\") = %v, %v", o, err)
	}
	if _, err := ParseByteOrder("middle"); err == nil {
		t.Error("expected error")
	}
}
