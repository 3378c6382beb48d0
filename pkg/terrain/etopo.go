package terrain

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/paulmach/orb"

	"horizonmask/pkg/geo"
)

const (
	// ETOPO1 Constants (grid-registered: 10801 rows × 21601 cols, 1 arc-minute)
	etopo1Rows      = 10801
	etopo1Cols      = 21601
	etopo1PerDegree = 60
	etopo1Size      = etopo1Rows * etopo1Cols * 2 // 16-bit signed integers
)

// ETOPO1Size is the byte size of a valid ETOPO1 grid file.
const ETOPO1Size int64 = etopo1Size

// ETOPOSource reads elevation windows from the ETOPO1 int16 little-endian binary grid.
type ETOPOSource struct {
	file     *os.File
	coverage geo.Band
}

// OpenETOPO opens the ETOPO1 binary file. coverage limits the latitude band the
// source is trusted for; the raster itself is global.
func OpenETOPO(path string, coverage geo.Band) (*ETOPOSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	if info.Size() != int64(etopo1Size) {
		f.Close()
		return nil, fmt.Errorf("invalid ETOPO1 file size: expected %d, got %d", etopo1Size, info.Size())
	}

	return &ETOPOSource{file: f, coverage: coverage}, nil
}

// Close closes the file handle.
func (e *ETOPOSource) Close() error {
	return e.file.Close()
}

// Band implements Source.
func (e *ETOPOSource) Band() geo.Band { return e.coverage }

// FetchGrid reads the node window enclosing b. Windows crossing the date line wrap.
func (e *ETOPOSource) FetchGrid(ctx context.Context, b orb.Bound) (*Grid, error) {
	if b.Min.Lat() < -90 || b.Max.Lat() > 90 {
		return nil, fmt.Errorf("bound outside latitude range: %v", b)
	}

	rowStart := int(math.Floor((90 - b.Max.Lat()) * etopo1PerDegree))
	rowEnd := int(math.Ceil((90 - b.Min.Lat()) * etopo1PerDegree))
	rowStart = max(rowStart, 0)
	rowEnd = min(rowEnd, etopo1Rows-1)

	colStart := int(math.Floor((b.Min.Lon() + 180) * etopo1PerDegree))
	colEnd := int(math.Ceil((b.Max.Lon() + 180) * etopo1PerDegree))
	width := colEnd - colStart + 1
	width = min(width, etopo1Cols)

	g, err := NewGrid(
		90-float64(rowStart)/etopo1PerDegree,
		-180+float64(colStart)/etopo1PerDegree,
		1.0/etopo1PerDegree, 1.0/etopo1PerDegree,
		rowEnd-rowStart+1, width,
	)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, width*2)
	for r := rowStart; r <= rowEnd; r++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := e.readRowSegment(r, colStart, buf); err != nil {
			return nil, fmt.Errorf("read row %d: %w", r, err)
		}
		out := g.Data[(r-rowStart)*width : (r-rowStart+1)*width]
		for i := range out {
			out[i] = float32(int16(binary.LittleEndian.Uint16(buf[i*2:])))
		}
	}
	return g, nil
}

// readRowSegment fills buf from a row starting at startCol, wrapping past the date line.
func (e *ETOPOSource) readRowSegment(row, startCol int, buf []byte) error {
	// the last column repeats the first (-180 == 180)
	const period = etopo1Cols - 1
	width := len(buf) / 2
	normStart := (startCol%period + period) % period

	if normStart+width <= etopo1Cols {
		return e.readChunk(row, normStart, buf)
	}

	firstLen := period - normStart
	if err := e.readChunk(row, normStart, buf[:firstLen*2]); err != nil {
		return err
	}
	return e.readChunk(row, 0, buf[firstLen*2:])
}

func (e *ETOPOSource) readChunk(row, colStart int, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	offset := int64(row*etopo1Cols+colStart) * 2
	_, err := e.file.ReadAt(buf, offset)
	return err
}
