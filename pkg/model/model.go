package model

import (
	"fmt"
	"strings"
	"time"
)

// Style selects the topology of a synthesized shading mask.
type Style string

const (
	// StyleSpherical cuts the mask out of a half-sphere around the view point.
	StyleSpherical Style = "spherical"
	// StyleExtruded builds a vertical cylindrical wall through the silhouette.
	StyleExtruded Style = "extruded"
)

// ParseStyle parses a user supplied style name.
func ParseStyle(s string) (Style, error) {
	switch Style(strings.ToLower(strings.TrimSpace(s))) {
	case StyleSpherical, "":
		return StyleSpherical, nil
	case StyleExtruded, "vertical", "cylindrical":
		return StyleExtruded, nil
	}
	return "", &ValidationError{Field: "style", Value: s, Reason: "must be 'spherical' or 'extruded'"}
}

// Location is the named site a horizon is computed for.
type Location struct {
	Name      string  `json:"name" yaml:"name"`
	Lat       float64 `json:"lat" yaml:"lat"`
	Lon       float64 `json:"lon" yaml:"lon"`
	Elevation float64 `json:"elevation" yaml:"elevation"` // meters; 0 means "take from terrain"
}

func (l Location) String() string {
	name := l.Name
	if name == "" {
		name = "unnamed"
	}
	return fmt.Sprintf("%s (%.5f, %.5f)", name, l.Lat, l.Lon)
}

// ArtifactHeader documents the inputs an exported artifact was generated from.
type ArtifactHeader struct {
	Location    Location  `json:"location"`
	MinRadiusKM float64   `json:"min_radius_km"`
	MaxRadiusKM float64   `json:"max_radius_km"`
	Style       Style     `json:"style"`
	MaskRadius  float64   `json:"mask_radius"`
	CreatedAt   time.Time `json:"created_at"`
}
