package horizon

import (
	"fmt"

	"github.com/jonas-p/go-shp"
)

// WriteShapefile writes the silhouette as a single closed polyline in
// geographic coordinates, with the location name and maximum angle as
// attributes. path is the .shp file; .shx and .dbf are written next to it.
func WriteShapefile(path string, p Profile, proj Projector, name string) error {
	if len(p.Samples) == 0 {
		return fmt.Errorf("shapefile: empty profile")
	}

	pts := make([]shp.Point, 0, len(p.Samples)+1)
	for _, s := range p.Samples {
		lat, lon := proj.Inverse(s.Hit.X, s.Hit.Y)
		pts = append(pts, shp.Point{X: lon, Y: lat})
	}
	pts = append(pts, pts[0])

	w, err := shp.Create(path, shp.POLYLINE)
	if err != nil {
		return fmt.Errorf("shapefile: %w", err)
	}
	defer w.Close()

	if err := w.SetFields([]shp.Field{
		shp.StringField("NAME", 64),
		shp.FloatField("MAXANGLE", 8, 3),
		shp.FloatField("MAXAZ", 8, 3),
	}); err != nil {
		return fmt.Errorf("shapefile fields: %w", err)
	}

	row := int(w.Write(shp.NewPolyLine([][]shp.Point{pts})))
	if err := w.WriteAttribute(row, 0, name); err != nil {
		return err
	}
	if err := w.WriteAttribute(row, 1, p.MaxAngle); err != nil {
		return err
	}
	return w.WriteAttribute(row, 2, p.MaxAzimuth)
}
