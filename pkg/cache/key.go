package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"unicode"

	"horizonmask/pkg/model"
)

// Key identifies a cached mask. Use NewKey so equal requests map to one entry.
type Key struct {
	LocationName string
	Lat          float64
	Lon          float64
	MinRadiusKM  float64 // 0.1 km steps
	MaxRadiusKM  float64 // whole km
	Style        model.Style
}

// NewKey normalises the request parameters: blanks in the name to single
// spaces, coordinates to 1e-5 degrees,
// the inner radius to 0.1 km and the outer radius to whole kilometers.
func NewKey(name string, lat, lon, minRadiusKM, maxRadiusKM float64, style model.Style) Key {
	return Key{
		LocationName: strings.Join(strings.Fields(name), " "),
		Lat:          roundTo(lat, 1e5),
		Lon:          roundTo(lon, 1e5),
		MinRadiusKM:  roundTo(minRadiusKM, 10),
		MaxRadiusKM:  math.Round(maxRadiusKM),
		Style:        style,
	}
}

// KeyFromHeader rebuilds the key an artifact was stored under.
func KeyFromHeader(h model.ArtifactHeader) Key {
	return NewKey(h.Location.Name, h.Location.Lat, h.Location.Lon, h.MinRadiusKM, h.MaxRadiusKM, h.Style)
}

func roundTo(v, scale float64) float64 {
	r := math.Round(v*scale) / scale
	if r == 0 {
		return 0 // no "-0"
	}
	return r
}

// Stem is the artifact file name stem, also matched against the remote index.
func (k Key) Stem() string {
	return fmt.Sprintf("%s_%.5f_%.5f_%.1f_%d_%s",
		slug(k.LocationName), k.Lat, k.Lon, k.MinRadiusKM, int(k.MaxRadiusKM), k.Style)
}

// Hash is the content address of the key. Unlike Stem it keeps the raw name.
func (k Key) Hash() string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%.5f\x00%.5f\x00%.1f\x00%d\x00%s",
		k.LocationName, k.Lat, k.Lon, k.MinRadiusKM, int(k.MaxRadiusKM), k.Style)))
	return hex.EncodeToString(sum[:])
}

func slug(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s := strings.Trim(b.String(), "_")
	if s == "" {
		return "site"
	}
	return s
}
