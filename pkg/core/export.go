package core

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"horizonmask/pkg/geo"
	"horizonmask/pkg/geom"
	"horizonmask/pkg/horizon"
	"horizonmask/pkg/request"
)

// Artifacts are the files written by a run; empty paths were not written.
type Artifacts struct {
	Horizon   string `json:"horizon,omitempty"`
	OBJ       string `json:"obj,omitempty"`
	KML       string `json:"kml,omitempty"`
	Chart     string `json:"chart,omitempty"`
	Shapefile string `json:"shapefile,omitempty"`
}

// export writes the configured artifacts to the export directory. Nothing is
// written when the directory is not set.
func (p *Pipeline) export(log *slog.Logger, res *Result, frame *geo.LocalFrame) (Artifacts, error) {
	var a Artifacts
	ex := p.cfg.Export
	if ex.Dir == "" {
		return a, nil
	}
	if err := os.MkdirAll(ex.Dir, 0o755); err != nil {
		return a, fmt.Errorf("failed to create export dir: %w", err)
	}
	base := filepath.Join(ex.Dir, res.Key.Stem())

	write := func(path string, render func(*bytes.Buffer) error) (string, error) {
		var buf bytes.Buffer
		if err := render(&buf); err != nil {
			return "", fmt.Errorf("export %s: %w", filepath.Base(path), err)
		}
		if err := request.WriteFileAtomic(path, buf.Bytes()); err != nil {
			return "", fmt.Errorf("export %s: %w", filepath.Base(path), err)
		}
		return path, nil
	}

	var err error
	a.Horizon, err = write(base+".horizon.txt", func(b *bytes.Buffer) error {
		return horizon.WriteFile(b, res.Profile, p.format, res.Header)
	})
	if err != nil {
		return a, err
	}

	if res.Placed != nil {
		a.OBJ, err = write(base+".placed.obj", func(b *bytes.Buffer) error {
			header := []string{
				fmt.Sprintf("placed shading mask for %s", res.Header.Location),
				fmt.Sprintf("radius: %g", res.Placed.Radius),
			}
			return geom.WriteOBJ(b, header, res.Placed.Objects()...)
		})
		if err != nil {
			return a, err
		}
	}

	if ex.KML {
		a.KML, err = write(base+".kml", func(b *bytes.Buffer) error {
			return horizon.WriteKML(b, res.Profile, frame, res.Header, 0)
		})
		if err != nil {
			return a, err
		}
	}

	if ex.Chart {
		a.Chart, err = write(base+".png", func(b *bytes.Buffer) error {
			return horizon.WriteChart(b, res.Profile, fmt.Sprintf("Horizon %s", res.Header.Location))
		})
		if err != nil {
			return a, err
		}
	}

	if ex.Shapefile {
		path := base + ".shp"
		if err := horizon.WriteShapefile(path, res.Profile, frame, res.Header.Location.Name); err != nil {
			return a, fmt.Errorf("export %s: %w", filepath.Base(path), err)
		}
		a.Shapefile = path
	}

	log.Debug("Artifacts exported", "dir", ex.Dir, "obj", a.OBJ != "", "kml", a.KML != "", "chart", a.Chart != "", "shapefile", a.Shapefile != "")
	return a, nil
}
