package mask

import (
	"fmt"

	"horizonmask/pkg/geom"
	"horizonmask/pkg/model"
)

// Object names used when a mask is written as OBJ.
const (
	ObjectSurface    = "surface"
	ObjectSilhouette = "silhouette"
	ObjectOrigin     = "origin"
)

// Objects returns the mask parts as named OBJ objects.
func (m *ShadingMask) Objects() []geom.Object {
	return []geom.Object{
		{Name: ObjectSurface, Geometry: m.Surface},
		{Name: ObjectSilhouette, Geometry: m.Silhouette},
		{Name: ObjectOrigin, Geometry: m.Origin},
	}
}

// FromOBJ rebuilds a mask from a parsed OBJ document written by Objects.
func FromOBJ(f *geom.OBJFile, style model.Style, radius float64) (*ShadingMask, error) {
	m := &ShadingMask{Style: style, Radius: radius}

	o, ok := f.Find(ObjectSurface)
	if !ok {
		return nil, fmt.Errorf("mask obj: missing %q object", ObjectSurface)
	}
	if m.Surface, ok = o.Geometry.(geom.Mesh); !ok {
		return nil, fmt.Errorf("mask obj: %q is a %s", ObjectSurface, o.Geometry.Kind())
	}

	o, ok = f.Find(ObjectSilhouette)
	if !ok {
		return nil, fmt.Errorf("mask obj: missing %q object", ObjectSilhouette)
	}
	if m.Silhouette, ok = o.Geometry.(geom.Polyline); !ok {
		return nil, fmt.Errorf("mask obj: %q is a %s", ObjectSilhouette, o.Geometry.Kind())
	}

	o, ok = f.Find(ObjectOrigin)
	if !ok {
		return nil, fmt.Errorf("mask obj: missing %q object", ObjectOrigin)
	}
	if m.Origin, ok = o.Geometry.(geom.RefPoint); !ok {
		return nil, fmt.Errorf("mask obj: %q is a %s", ObjectOrigin, o.Geometry.Kind())
	}

	if len(m.Surface.Faces) == 0 || len(m.Silhouette.Points) == 0 {
		return nil, fmt.Errorf("mask obj: empty geometry")
	}
	return m, nil
}
