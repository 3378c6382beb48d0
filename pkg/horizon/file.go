package horizon

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"horizonmask/pkg/model"
)

// Format selects the horizon file layout.
type Format string

const (
	// FormatPlain has no header and azimuths 0..359.
	FormatPlain Format = "plain"
	// FormatShort has a short comment header and azimuths -180..179.
	FormatShort Format = "short"
	// FormatSingleLine has a one line header and azimuths -180..179.
	FormatSingleLine Format = "single-line"
	// FormatRestricted has the short header and azimuths -120..119 only.
	FormatRestricted Format = "restricted"
)

// ParseFormat parses a configured format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatPlain, FormatShort, FormatSingleLine, FormatRestricted:
		return f, nil
	case "":
		return FormatPlain, nil
	}
	return "", &model.ValidationError{Field: "export.horizon_format", Value: s, Reason: "unknown format"}
}

// Rebased reports whether the format writes azimuths in [-180, 180).
func (f Format) Rebased() bool { return f != FormatPlain }

// Rows returns the rows a format writes for the profile, in file order.
func Rows(p Profile, f Format) []DegreeSample {
	rows := p.Degrees()
	if !f.Rebased() {
		return rows
	}
	for i := range rows {
		if rows[i].Azimuth >= 180 {
			rows[i].Azimuth -= 360
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Azimuth < rows[j].Azimuth })
	if f == FormatRestricted {
		out := rows[:0]
		for _, r := range rows {
			if r.Azimuth >= -120 && r.Azimuth < 120 {
				out = append(out, r)
			}
		}
		rows = out
	}
	return rows
}

func headerLines(f Format, h model.ArtifactHeader) []string {
	switch f {
	case FormatShort, FormatRestricted:
		return []string{
			fmt.Sprintf("horizon for %s, elevation %.1f m", h.Location, h.Location.Elevation),
			fmt.Sprintf("visibility %.1f-%.0f km, generated %s", h.MinRadiusKM, h.MaxRadiusKM, h.CreatedAt.UTC().Format(time.RFC3339)),
			"azimuth(deg) angle(deg)",
		}
	case FormatSingleLine:
		return []string{fmt.Sprintf("azimuth angle %s", h.Location)}
	}
	return nil
}

// WriteFile writes the profile as integer "azimuth angle" rows.
func WriteFile(w io.Writer, p Profile, f Format, h model.ArtifactHeader) error {
	bw := bufio.NewWriter(w)
	for _, line := range headerLines(f, h) {
		fmt.Fprintf(bw, "# %s\n", line)
	}
	for _, r := range Rows(p, f) {
		fmt.Fprintf(bw, "%d %d\n", r.Azimuth, r.Angle)
	}
	return bw.Flush()
}

// ParseFile reads the rows of any horizon file format. Comment lines are
// skipped; azimuths are returned as written.
func ParseFile(r io.Reader) ([]DegreeSample, error) {
	var out []DegreeSample
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: want 2 columns, got %d", lineNo, len(fields))
		}
		az, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: azimuth: %w", lineNo, err)
		}
		angle, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: angle: %w", lineNo, err)
		}
		out = append(out, DegreeSample{Azimuth: az, Angle: angle})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// FromDegrees rebuilds a one degree profile from horizon file rows, undoing
// any azimuth rebasing.
func FromDegrees(rows []DegreeSample) Profile {
	sorted := make([]DegreeSample, len(rows))
	copy(sorted, rows)
	for i := range sorted {
		sorted[i].Azimuth = ((sorted[i].Azimuth % 360) + 360) % 360
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Azimuth < sorted[j].Azimuth })

	p := Profile{MaxAngle: -90}
	for _, r := range sorted {
		s := Sample{AzimuthDeg: float64(r.Azimuth), AngleDeg: float64(r.Angle), Blocked: r.Angle > 0}
		p.Samples = append(p.Samples, s)
		if s.AngleDeg > p.MaxAngle {
			p.MaxAngle = s.AngleDeg
			p.MaxAzimuth = s.AzimuthDeg
		}
	}
	return p
}
