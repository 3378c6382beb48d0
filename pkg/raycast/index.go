package raycast

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"

	"horizonmask/pkg/terrain"
)

// Index is an R-tree over the patches of a terrain mesh.
type Index struct {
	mesh  *terrain.Mesh
	tree  *rtreego.Rtree
	chunk float64
}

type patchItem struct {
	p    *terrain.Patch
	rect rtreego.Rect
}

// Bounds implements rtreego.Spatial.
func (it *patchItem) Bounds() rtreego.Rect { return it.rect }

// NewIndex bulk-loads the mesh patches into an R-tree.
func NewIndex(m *terrain.Mesh) *Index {
	items := make([]rtreego.Spatial, len(m.Patches))
	for i := range m.Patches {
		p := &m.Patches[i]
		rect, _ := rtreego.NewRect(rtreego.Point{p.MinX, p.MinY}, []float64{p.MaxX - p.MinX, p.MaxY - p.MinY})
		items[i] = &patchItem{p: p, rect: rect}
	}
	return &Index{
		mesh:  m,
		tree:  rtreego.NewTree(2, 25, 50, items...),
		chunk: float64(m.PatchCells) * m.Cell,
	}
}

// Size returns the number of indexed patches.
func (ix *Index) Size() int { return ix.tree.Size() }

// Candidate is a patch crossed by a horizontal footprint, with the distance
// range [SIn, SOut] of the footprint inside it.
type Candidate struct {
	Patch *terrain.Patch
	SIn   float64
	SOut  float64
}

// Candidates returns the patches crossed by the footprint starting at (ox, oy)
// heading along (dx, dy), a unit vector, for length meters. The result is
// ordered by entry distance.
func (ix *Index) Candidates(ox, oy, dx, dy, length float64) []Candidate {
	const pad = 1e-6
	seen := make(map[int]struct{})
	var out []Candidate

	for s := 0.0; s < length; s += ix.chunk {
		e := math.Min(s+ix.chunk, length)
		x0, y0 := ox+s*dx, oy+s*dy
		x1, y1 := ox+e*dx, oy+e*dy

		minX, maxX := math.Min(x0, x1)-pad, math.Max(x0, x1)+pad
		minY, maxY := math.Min(y0, y1)-pad, math.Max(y0, y1)+pad
		rect, err := rtreego.NewRect(rtreego.Point{minX, minY}, []float64{maxX - minX, maxY - minY})
		if err != nil {
			continue
		}

		for _, sp := range ix.tree.SearchIntersect(rect) {
			p := sp.(*patchItem).p
			if _, ok := seen[p.ID]; ok {
				continue
			}
			seen[p.ID] = struct{}{}
			if in, outS, ok := clipFootprint(p, ox, oy, dx, dy, length); ok {
				out = append(out, Candidate{Patch: p, SIn: in, SOut: outS})
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].SIn != out[j].SIn {
			return out[i].SIn < out[j].SIn
		}
		return out[i].Patch.ID < out[j].Patch.ID
	})
	return out
}

// clipFootprint clips the footprint to the patch rectangle (slab method).
func clipFootprint(p *terrain.Patch, ox, oy, dx, dy, length float64) (float64, float64, bool) {
	t0, t1 := 0.0, length
	slab := func(o, d, lo, hi float64) bool {
		if d == 0 {
			return o >= lo && o <= hi
		}
		ta, tb := (lo-o)/d, (hi-o)/d
		if ta > tb {
			ta, tb = tb, ta
		}
		t0 = math.Max(t0, ta)
		t1 = math.Min(t1, tb)
		return t0 <= t1
	}
	if !slab(ox, dx, p.MinX, p.MaxX) || !slab(oy, dy, p.MinY, p.MaxY) {
		return 0, 0, false
	}
	return t0, t1, true
}
