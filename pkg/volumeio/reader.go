// Package volumeio reads raw volume data stored as one file per slice (or a
// single file) into a models.Volume.
package volumeio

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"runtime"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mrireslice/internal/models"
)

// DefaultFilePattern joins a file prefix and a slice number
const DefaultFilePattern = "%s.%d"

// RawReader describes how a volume is laid out on disk.
type RawReader struct {
	// FilePrefix and FilePattern name one file per z slice:
	// fmt.Sprintf(FilePattern, FilePrefix, k) for k in the z extent.
	FilePrefix  string
	FilePattern string

	// FileName switches to single-file mode: every slice is read from
	// this file, one after another.
	FileName string

	// DataExtent is the inclusive index range of the stored samples
	DataExtent [6]int
	Spacing    [3]float64
	Origin     [3]float64

	ByteOrder  binary.ByteOrder
	ScalarType models.ScalarType

	// DataMask is ANDed with every integer sample; 0 disables masking
	DataMask uint64

	// HeaderSize bytes are skipped at the start of every file
	HeaderSize int64

	NumWorkers int
	Logger     *zap.Logger
}

// NewRawReader returns a reader for little-endian uint16 slices named prefix.N
func NewRawReader(prefix string, extent [6]int) *RawReader {
	return &RawReader{
		FilePrefix:  prefix,
		FilePattern: DefaultFilePattern,
		DataExtent:  extent,
		Spacing:     [3]float64{1, 1, 1},
		ByteOrder:   binary.LittleEndian,
		ScalarType:  models.Uint16,
		NumWorkers:  runtime.NumCPU(),
	}
}

// SliceFileName returns the file holding slice k in per-slice mode
func (r *RawReader) SliceFileName(k int) string {
	pattern := r.FilePattern
	if pattern == "" {
		pattern = DefaultFilePattern
	}
	return fmt.Sprintf(pattern, r.FilePrefix, k)
}

func (r *RawReader) validate() error {
	if r.FileName == "" && r.FilePrefix == "" {
		return errors.New("either a file name or a file prefix is required")
	}
	for a := 0; a < 3; a++ {
		if r.DataExtent[2*a+1] < r.DataExtent[2*a] {
			return fmt.Errorf("data extent along axis %d is empty", a)
		}
		if !(r.Spacing[a] > 0) {
			return fmt.Errorf("spacing along axis %d must be positive, got %g", a, r.Spacing[a])
		}
	}
	if r.ScalarType.Size() == 0 {
		return fmt.Errorf("cannot read samples of type %v", r.ScalarType)
	}
	if r.DataMask != 0 && !r.ScalarType.IsInteger() {
		return fmt.Errorf("data mask needs an integer scalar type, got %v", r.ScalarType)
	}
	if r.HeaderSize < 0 {
		return fmt.Errorf("header size must not be negative, got %d", r.HeaderSize)
	}
	return nil
}

// Read loads the whole extent. Slices are read concurrently in per-slice
// mode; ctx is checked before each file is opened.
func (r *RawReader) Read(ctx context.Context) (*models.Volume, error) {
	if err := r.validate(); err != nil {
		return nil, fmt.Errorf("invalid reader configuration: %w", err)
	}
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	order := r.ByteOrder
	if order == nil {
		order = binary.LittleEndian
	}

	vol := &models.Volume{
		Extent:     r.DataExtent,
		Spacing:    r.Spacing,
		Origin:     r.Origin,
		ScalarType: r.ScalarType,
	}
	dims := vol.Dimensions()
	sliceSamples := dims[0] * dims[1]
	vol.Data = make([]float64, sliceSamples*dims[2])
	sliceBytes := sliceSamples * r.ScalarType.Size()

	logger.Debug("reading volume",
		zap.Ints("extent", r.DataExtent[:]),
		zap.Stringer("scalarType", r.ScalarType),
		zap.String("size", humanize.Bytes(uint64(sliceBytes*dims[2]))),
	)

	if r.FileName != "" {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.readFile(r.FileName, vol.Data, order); err != nil {
			return nil, err
		}
		return vol, nil
	}

	workers := r.NumWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for z := 0; z < dims[2]; z++ {
		name := r.SliceFileName(r.DataExtent[4] + z)
		dst := vol.Data[z*sliceSamples : (z+1)*sliceSamples]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return r.readFile(name, dst, order)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Info("volume loaded",
		zap.String("prefix", r.FilePrefix),
		zap.Int("slices", dims[2]),
		zap.Ints("dimensions", dims[:]),
	)
	return vol, nil
}

// readFile fills dst with samples decoded from name (or name.gz)
func (r *RawReader) readFile(name string, dst []float64, order binary.ByteOrder) error {
	rc, err := openMaybeGzip(name)
	if err != nil {
		return err
	}
	defer rc.Close()

	br := bufio.NewReader(rc)
	if r.HeaderSize > 0 {
		if _, err := io.CopyN(io.Discard, br, r.HeaderSize); err != nil {
			return fmt.Errorf("failed to skip header of %s: %w", name, err)
		}
	}
	size := r.ScalarType.Size()
	buf := make([]byte, len(dst)*size)
	if _, err := io.ReadFull(br, buf); err != nil {
		return fmt.Errorf("failed to read %d bytes from %s: %w", len(buf), name, err)
	}
	for n := range dst {
		dst[n] = r.decode(buf[n*size:], order)
	}
	return nil
}

func (r *RawReader) decode(b []byte, order binary.ByteOrder) float64 {
	var bits uint64
	switch r.ScalarType.Size() {
	case 1:
		bits = uint64(b[0])
	case 2:
		bits = uint64(order.Uint16(b))
	case 4:
		bits = uint64(order.Uint32(b))
	case 8:
		bits = order.Uint64(b)
	}
	if r.DataMask != 0 {
		bits &= r.DataMask
	}
	switch r.ScalarType {
	case models.Int8:
		return float64(int8(bits))
	case models.Uint8, models.Uint16, models.Uint32, models.Uint64:
		return float64(bits)
	case models.Int16:
		return float64(int16(bits))
	case models.Int32:
		return float64(int32(bits))
	case models.Int64:
		return float64(int64(bits))
	case models.Float32:
		return float64(math.Float32frombits(uint32(bits)))
	case models.Float64:
		return math.Float64frombits(bits)
	}
	return 0
}

type gzipFile struct {
	*gzip.Reader
	f *os.File
}

func (g *gzipFile) Close() error {
	return multierr.Combine(g.Reader.Close(), g.f.Close())
}

// openMaybeGzip opens name, falling back to name.gz, and decompresses
// files ending in .gz
func openMaybeGzip(name string) (io.ReadCloser, error) {
	f, err := os.Open(name)
	if errors.Is(err, os.ErrNotExist) && !strings.HasSuffix(name, ".gz") {
		if gz, gzErr := os.Open(name + ".gz"); gzErr == nil {
			f, err, name = gz, nil, name+".gz"
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open slice file: %w", err)
	}
	if !strings.HasSuffix(name, ".gz") {
		return f, nil
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to open gzip stream %s: %w", name, err)
	}
	return &gzipFile{Reader: zr, f: f}, nil
}

// ParseByteOrder parses "little" or "big"
func ParseByteOrder(s string) (binary.ByteOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "little", "littleendian", "little_endian", "le":
		return binary.LittleEndian, nil
	case "big", "bigendian", "big_endian", "be":
		return binary.BigEndian, nil
	}
	return nil, fmt.Errorf("unknown byte order %q", s)
}
