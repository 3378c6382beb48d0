package geom

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// Object is a named geometry in an OBJ file.
type Object struct {
	Name     string
	Geometry Geometry
}

// OBJFile is a parsed OBJ document. Header holds the leading comment lines
// without the "# " prefix.
type OBJFile struct {
	Header  []string
	Objects []Object
}

// Find returns the first object with the given name.
func (f *OBJFile) Find(name string) (Object, bool) {
	for _, o := range f.Objects {
		if o.Name == name {
			return o, true
		}
	}
	return Object{}, false
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteOBJ writes header comments followed by the objects. Surfaces are
// written as their tessellation. Coordinates round-trip exactly.
func WriteOBJ(w io.Writer, header []string, objects ...Object) error {
	bw := bufio.NewWriter(w)
	for _, line := range header {
		fmt.Fprintf(bw, "# %s\n", line)
	}

	next := 1
	writeVerts := func(pts []r3.Vec) int {
		first := next
		for _, p := range pts {
			fmt.Fprintf(bw, "v %s %s %s\n", formatFloat(p.X), formatFloat(p.Y), formatFloat(p.Z))
		}
		next += len(pts)
		return first
	}

	for _, o := range objects {
		fmt.Fprintf(bw, "o %s\n", o.Name)
		switch g := o.Geometry.(type) {
		case Mesh:
			base := writeVerts(g.Vertices)
			for _, f := range g.Faces {
				fmt.Fprintf(bw, "f %d %d %d\n", base+f[0], base+f[1], base+f[2])
			}
		case Surface:
			m := g.Tessellate()
			base := writeVerts(m.Vertices)
			for _, f := range m.Faces {
				fmt.Fprintf(bw, "f %d %d %d\n", base+f[0], base+f[1], base+f[2])
			}
		case Polyline:
			base := writeVerts(g.Points)
			bw.WriteString("l")
			for i := range g.Points {
				fmt.Fprintf(bw, " %d", base+i)
			}
			if g.Closed && len(g.Points) > 0 {
				fmt.Fprintf(bw, " %d", base)
			}
			bw.WriteString("\n")
		case RefPoint:
			base := writeVerts([]r3.Vec{g.P})
			fmt.Fprintf(bw, "p %d\n", base)
		default:
			return fmt.Errorf("object %q: unsupported geometry %T", o.Name, o.Geometry)
		}
	}
	return bw.Flush()
}

type objBuilder struct {
	name  string
	first int // vertices [first, end) were declared inside the object
	end   int
	faces [][3]int
	lines [][]int
	point int
	has   bool
}

// ReadOBJ parses the subset of OBJ written by WriteOBJ: leading comments,
// o, v, f (triangles, optionally v/vt/vn), l and p records. Each object
// becomes a Mesh, Polyline or RefPoint holding only the vertices it uses.
func ReadOBJ(r io.Reader) (*OBJFile, error) {
	out := &OBJFile{}
	var verts []r3.Vec
	var builders []*objBuilder
	cur := func() *objBuilder {
		if len(builders) == 0 {
			builders = append(builders, &objBuilder{name: "default"})
		}
		return builders[len(builders)-1]
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	body := false
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			if !body {
				out.Header = append(out.Header, strings.TrimSpace(strings.TrimPrefix(line, "#")))
			}
			continue
		}
		body = true

		fields := strings.Fields(line)
		switch fields[0] {
		case "o", "g":
			name := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))
			builders = append(builders, &objBuilder{name: name, first: len(verts), end: len(verts)})
		case "v":
			if len(fields) < 4 {
				return nil, fmt.Errorf("line %d: vertex needs 3 coordinates", lineNo)
			}
			var c [3]float64
			for i := 0; i < 3; i++ {
				v, err := strconv.ParseFloat(fields[i+1], 64)
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", lineNo, err)
				}
				c[i] = v
			}
			verts = append(verts, r3.Vec{X: c[0], Y: c[1], Z: c[2]})
			if len(builders) > 0 {
				builders[len(builders)-1].end = len(verts)
			}
		case "f":
			idx, err := parseIndices(fields[1:], len(verts))
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			if len(idx) < 3 {
				return nil, fmt.Errorf("line %d: face needs 3 vertices", lineNo)
			}
			b := cur()
			for k := 1; k+1 < len(idx); k++ {
				b.faces = append(b.faces, [3]int{idx[0], idx[k], idx[k+1]})
			}
		case "l":
			idx, err := parseIndices(fields[1:], len(verts))
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			b := cur()
			b.lines = append(b.lines, idx)
		case "p":
			idx, err := parseIndices(fields[1:], len(verts))
			if err != nil || len(idx) == 0 {
				return nil, fmt.Errorf("line %d: bad point record", lineNo)
			}
			b := cur()
			b.point, b.has = idx[0], true
		case "vt", "vn", "s", "usemtl", "mtllib":
		default:
			return nil, fmt.Errorf("line %d: unknown record %q", lineNo, fields[0])
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	for _, b := range builders {
		if g, ok := b.geometry(verts); ok {
			out.Objects = append(out.Objects, Object{Name: b.name, Geometry: g})
		}
	}
	return out, nil
}

func (b *objBuilder) geometry(verts []r3.Vec) (Geometry, bool) {
	switch {
	case len(b.faces) > 0:
		if m, ok := b.ownMesh(verts); ok {
			return m, true
		}
		local := map[int]int{}
		m := Mesh{}
		for _, f := range b.faces {
			var nf [3]int
			for k, gi := range f {
				li, ok := local[gi]
				if !ok {
					li = len(m.Vertices)
					local[gi] = li
					m.Vertices = append(m.Vertices, verts[gi])
				}
				nf[k] = li
			}
			m.Faces = append(m.Faces, nf)
		}
		return m, true
	case len(b.lines) > 0:
		idx := b.lines[0]
		pl := Polyline{}
		if len(idx) > 1 && idx[0] == idx[len(idx)-1] {
			pl.Closed = true
			idx = idx[:len(idx)-1]
		}
		for _, gi := range idx {
			pl.Points = append(pl.Points, verts[gi])
		}
		return pl, true
	case b.has:
		return RefPoint{Name: b.name, P: verts[b.point]}, true
	}
	return nil, false
}

// ownMesh keeps the object's vertex block as is when every face stays inside it.
func (b *objBuilder) ownMesh(verts []r3.Vec) (Mesh, bool) {
	if b.end <= b.first {
		return Mesh{}, false
	}
	m := Mesh{Vertices: append([]r3.Vec(nil), verts[b.first:b.end]...)}
	for _, f := range b.faces {
		var nf [3]int
		for k, gi := range f {
			if gi < b.first || gi >= b.end {
				return Mesh{}, false
			}
			nf[k] = gi - b.first
		}
		m.Faces = append(m.Faces, nf)
	}
	return m, true
}

// parseIndices converts 1-based (or negative, relative) OBJ indices to
// 0-based ones. Texture and normal references are ignored.
func parseIndices(fields []string, nverts int) ([]int, error) {
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		if slash := strings.IndexByte(f, '/'); slash >= 0 {
			f = f[:slash]
		}
		i, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		if i < 0 {
			i = nverts + i + 1
		}
		if i < 1 || i > nverts {
			return nil, fmt.Errorf("vertex index %d out of range", i)
		}
		out = append(out, i-1)
	}
	return out, nil
}
