package horizon

import (
	"fmt"
	"image/color"
	"io"

	kml "github.com/twpayne/go-kml"

	"horizonmask/pkg/model"
)

var silhouetteColor = color.RGBA{R: 0xff, G: 0x80, B: 0, A: 0xe0}

// Projector maps local mesh coordinates back to geographic ones.
type Projector interface {
	Inverse(x, y float64) (lat, lon float64)
}

// WriteKML writes the silhouette (the blocked hit points) as a closed line
// with absolute altitudes, and the view point as a placemark. baseElevation
// converts local z back to meters above sea level.
func WriteKML(w io.Writer, p Profile, proj Projector, h model.ArtifactHeader, baseElevation float64) error {
	coords := make([]kml.Coordinate, 0, len(p.Samples)+1)
	for _, s := range p.Samples {
		lat, lon := proj.Inverse(s.Hit.X, s.Hit.Y)
		coords = append(coords, kml.Coordinate{Lon: lon, Lat: lat, Alt: s.Hit.Z + baseElevation})
	}
	if len(coords) > 0 {
		coords = append(coords, coords[0])
	}

	desc := fmt.Sprintf("max %.2f deg at %.1f deg, visibility %.1f-%.0f km",
		p.MaxAngle, p.MaxAzimuth, h.MinRadiusKM, h.MaxRadiusKM)

	d := kml.Document(
		kml.Name(fmt.Sprintf("Horizon %s", h.Location.Name)),
		kml.SharedStyle("silhouette",
			kml.LineStyle(
				kml.Color(silhouetteColor),
				kml.Width(2),
			),
		),
		kml.Placemark(
			kml.Name("view"),
			kml.Point(
				kml.AltitudeMode(kml.AltitudeModeAbsolute),
				kml.Coordinates(kml.Coordinate{Lon: h.Location.Lon, Lat: h.Location.Lat, Alt: h.Location.Elevation}),
			),
		),
		kml.Placemark(
			kml.Name("silhouette"),
			kml.Description(desc),
			kml.StyleURL("#silhouette"),
			kml.LineString(
				kml.AltitudeMode(kml.AltitudeModeAbsolute),
				kml.Tessellate(false),
				kml.Coordinates(coords...),
			),
		),
	)
	return kml.KML(d).WriteIndent(w, "", "  ")
}
