package cache

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"horizonmask/pkg/geom"
	"horizonmask/pkg/horizon"
	"horizonmask/pkg/mask"
	"horizonmask/pkg/model"
)

const objTitle = "horizonmask shading mask"

// objHeader documents the inputs of an artifact and embeds the one degree
// horizon, so a downloaded OBJ is self-contained.
func objHeader(h model.ArtifactHeader, p horizon.Profile) []string {
	lines := []string{
		objTitle,
		"name: " + strings.Join(strings.Fields(h.Location.Name), " "),
		"lat: " + strconv.FormatFloat(h.Location.Lat, 'f', -1, 64),
		"lon: " + strconv.FormatFloat(h.Location.Lon, 'f', -1, 64),
		"elevation: " + strconv.FormatFloat(h.Location.Elevation, 'f', -1, 64),
		"min_radius_km: " + strconv.FormatFloat(h.MinRadiusKM, 'f', -1, 64),
		"max_radius_km: " + strconv.FormatFloat(h.MaxRadiusKM, 'f', -1, 64),
		"style: " + string(h.Style),
		"mask_radius: " + strconv.FormatFloat(h.MaskRadius, 'f', -1, 64),
		"created: " + h.CreatedAt.UTC().Format(time.RFC3339),
	}
	for _, d := range p.Degrees() {
		lines = append(lines, fmt.Sprintf("horizon: %d %d", d.Azimuth, d.Angle))
	}
	return lines
}

// parseObjHeader reverses objHeader.
func parseObjHeader(lines []string) (model.ArtifactHeader, []horizon.DegreeSample, error) {
	var h model.ArtifactHeader
	var rows []horizon.DegreeSample
	if len(lines) == 0 || lines[0] != objTitle {
		return h, nil, fmt.Errorf("not a horizonmask artifact")
	}

	float := func(key, v string) (float64, error) {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("header %s: %w", key, err)
		}
		return f, nil
	}

	var err error
	for _, line := range lines[1:] {
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		val = strings.TrimSpace(val)
		switch key {
		case "name":
			h.Location.Name = val
		case "lat":
			h.Location.Lat, err = float(key, val)
		case "lon":
			h.Location.Lon, err = float(key, val)
		case "elevation":
			h.Location.Elevation, err = float(key, val)
		case "min_radius_km":
			h.MinRadiusKM, err = float(key, val)
		case "max_radius_km":
			h.MaxRadiusKM, err = float(key, val)
		case "style":
			h.Style, err = model.ParseStyle(val)
		case "mask_radius":
			h.MaskRadius, err = float(key, val)
		case "created":
			h.CreatedAt, err = time.Parse(time.RFC3339, val)
		case "horizon":
			var r horizon.DegreeSample
			if _, serr := fmt.Sscanf(val, "%d %d", &r.Azimuth, &r.Angle); serr != nil {
				return h, nil, fmt.Errorf("header horizon row %q: %w", val, serr)
			}
			rows = append(rows, r)
		}
		if err != nil {
			return h, nil, err
		}
	}
	if h.MaskRadius <= 0 {
		return h, nil, fmt.Errorf("header mask_radius missing")
	}
	return h, rows, nil
}

// encodeArtifact renders the OBJ document of a mask.
func encodeArtifact(h model.ArtifactHeader, m *mask.ShadingMask, p horizon.Profile) ([]byte, error) {
	var buf bytes.Buffer
	if err := geom.WriteOBJ(&buf, objHeader(h, p), m.Objects()...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeArtifact parses an OBJ written by encodeArtifact.
func decodeArtifact(data []byte) (model.ArtifactHeader, *mask.ShadingMask, []horizon.DegreeSample, error) {
	f, err := geom.ReadOBJ(bytes.NewReader(data))
	if err != nil {
		return model.ArtifactHeader{}, nil, nil, err
	}
	h, rows, err := parseObjHeader(f.Header)
	if err != nil {
		return h, nil, nil, err
	}
	m, err := mask.FromOBJ(f, h.Style, h.MaskRadius)
	if err != nil {
		return h, nil, nil, err
	}
	return h, m, rows, nil
}

// profileBlob is the full-precision profile kept in the index row.
type profileBlob struct {
	Azimuth    []float64 `msgpack:"az"`
	Angle      []float64 `msgpack:"angle"`
	Blocked    []bool    `msgpack:"blocked"`
	MaxAngle   float64   `msgpack:"max_angle"`
	MaxAzimuth float64   `msgpack:"max_az"`
}

func encodeProfile(p horizon.Profile) ([]byte, error) {
	b := profileBlob{
		Azimuth:    make([]float64, len(p.Samples)),
		Angle:      make([]float64, len(p.Samples)),
		Blocked:    make([]bool, len(p.Samples)),
		MaxAngle:   p.MaxAngle,
		MaxAzimuth: p.MaxAzimuth,
	}
	for i, s := range p.Samples {
		b.Azimuth[i], b.Angle[i], b.Blocked[i] = s.AzimuthDeg, s.AngleDeg, s.Blocked
	}
	return msgpack.Marshal(&b)
}

func decodeProfile(data []byte) (horizon.Profile, error) {
	var b profileBlob
	if err := msgpack.Unmarshal(data, &b); err != nil {
		return horizon.Profile{}, err
	}
	if len(b.Angle) != len(b.Azimuth) || len(b.Blocked) != len(b.Azimuth) || len(b.Azimuth) == 0 {
		return horizon.Profile{}, fmt.Errorf("profile blob: inconsistent columns")
	}
	p := horizon.Profile{MaxAngle: b.MaxAngle, MaxAzimuth: b.MaxAzimuth, Samples: make([]horizon.Sample, len(b.Azimuth))}
	for i := range b.Azimuth {
		p.Samples[i] = horizon.Sample{AzimuthDeg: b.Azimuth[i], AngleDeg: b.Angle[i], Blocked: b.Blocked[i]}
	}
	return p, nil
}
