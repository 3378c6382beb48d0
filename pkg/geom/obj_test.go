package geom

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestOBJRoundTrip(t *testing.T) {
	mesh := Mesh{
		Vertices: []r3.Vec{{X: 0.1, Y: 0.2, Z: 0.3}, {X: 1.0 / 3, Y: 0, Z: -7}, {X: 2, Y: 1e-17, Z: 12345.678}},
		Faces:    [][3]int{{0, 1, 2}},
	}
	line := Polyline{Points: []r3.Vec{{X: 1}, {Y: 1}, {X: -1}}, Closed: true}
	origin := RefPoint{Name: "origin", P: r3.Vec{X: 4, Y: 5, Z: 6}}
	header := []string{"location: Test", "radius: 200"}

	var buf bytes.Buffer
	require.NoError(t, WriteOBJ(&buf, header,
		Object{Name: "mask", Geometry: mesh},
		Object{Name: "silhouette", Geometry: line},
		Object{Name: "origin", Geometry: origin},
	))

	f, err := ReadOBJ(&buf)
	require.NoError(t, err)
	assert.Equal(t, header, f.Header)
	require.Len(t, f.Objects, 3)

	got, ok := f.Find("mask")
	require.True(t, ok)
	assert.Equal(t, mesh, got.Geometry)

	got, ok = f.Find("silhouette")
	require.True(t, ok)
	assert.Equal(t, line, got.Geometry)

	got, ok = f.Find("origin")
	require.True(t, ok)
	assert.Equal(t, origin, got.Geometry)

	_, ok = f.Find("missing")
	assert.False(t, ok)
}

func TestOBJSurfaceWrittenAsMesh(t *testing.T) {
	s := Surface{Rows: 2, Cols: 2, Points: []r3.Vec{{X: 0}, {X: 1}, {Y: 1}, {X: 1, Y: 1}}}
	var buf bytes.Buffer
	require.NoError(t, WriteOBJ(&buf, nil, Object{Name: "patch", Geometry: s}))

	f, err := ReadOBJ(&buf)
	require.NoError(t, err)
	require.Len(t, f.Objects, 1)
	m, ok := f.Objects[0].Geometry.(Mesh)
	require.True(t, ok)
	assert.Len(t, m.Faces, 2)
	assert.InDelta(t, 1.0, m.Area(), 1e-12)
}

func TestReadOBJ(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		check   func(t *testing.T, f *OBJFile)
	}{
		{
			name:  "QuadWithTextureRefs",
			input: "v 0 0 0\nv 1 0 0\nv 1 1 0\nv 0 1 0\nvn 0 0 1\nf 1/1/1 2/2/1 3/3/1 4/4/1\n",
			check: func(t *testing.T, f *OBJFile) {
				require.Len(t, f.Objects, 1)
				assert.Equal(t, "default", f.Objects[0].Name)
				assert.Len(t, f.Objects[0].Geometry.(Mesh).Faces, 2)
			},
		},
		{
			name:  "NegativeIndices",
			input: "o tri\nv 0 0 0\nv 1 0 0\nv 0 1 0\nf -3 -2 -1\n",
			check: func(t *testing.T, f *OBJFile) {
				assert.Equal(t, [3]int{0, 1, 2}, f.Objects[0].Geometry.(Mesh).Faces[0])
			},
		},
		{
			name:  "CommentsAfterBodyAreNotHeader",
			input: "# head\nv 0 0 0\n# body\no p\np 1\n",
			check: func(t *testing.T, f *OBJFile) {
				assert.Equal(t, []string{"head"}, f.Header)
			},
		},
		{name: "IndexOutOfRange", input: "v 0 0 0\nf 1 2 3\n", wantErr: true},
		{name: "BadVertex", input: "v 0 x 0\n", wantErr: true},
		{name: "ShortVertex", input: "v 0 0\n", wantErr: true},
		{name: "UnknownRecord", input: "curv 0 1\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ReadOBJ(strings.NewReader(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, f)
		})
	}
}
