package terrain

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"

	"horizonmask/pkg/geo"
)

// Source is the elevation collaborator: it returns a raster covering a lat/lon box.
// Fetch failures are fatal for a run; callers do not retry them.
type Source interface {
	FetchGrid(ctx context.Context, b orb.Bound) (*Grid, error)
	// Band is the latitude coverage of the source.
	Band() geo.Band
}

// GridSource serves an in-memory grid, e.g. a precomputed raster or a test fixture.
type GridSource struct {
	Grid     *Grid
	Coverage geo.Band
}

// NewGridSource wraps g; the coverage defaults to the grid's own latitude extent.
func NewGridSource(g *Grid) *GridSource {
	b := g.Bound()
	return &GridSource{Grid: g, Coverage: geo.Band{South: b.Min.Lat(), North: b.Max.Lat()}}
}

// FetchGrid returns the whole grid if it covers b.
func (s *GridSource) FetchGrid(ctx context.Context, b orb.Bound) (*Grid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	gb := s.Grid.Bound()
	if b.Min.Lat() < gb.Min.Lat() || b.Max.Lat() > gb.Max.Lat() ||
		b.Min.Lon() < gb.Min.Lon() || b.Max.Lon() > gb.Max.Lon() {
		return nil, fmt.Errorf("grid %v does not cover %v", gb, b)
	}
	return s.Grid, nil
}

// Band implements Source.
func (s *GridSource) Band() geo.Band { return s.Coverage }
