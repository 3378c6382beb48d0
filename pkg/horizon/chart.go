package horizon

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// WriteChart renders the profile as an azimuth/angle PNG chart.
func WriteChart(w io.Writer, p Profile, title string) error {
	plt := plot.New()
	plt.Title.Text = title
	plt.X.Label.Text = "Azimuth (deg)"
	plt.Y.Label.Text = "Horizon angle (deg)"
	plt.X.Min, plt.X.Max = 0, 360
	plt.Y.Min = 0
	plt.Y.Max = maxf(p.MaxAngle*1.2, 5)
	plt.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(p.Samples))
	for i, s := range p.Samples {
		pts[i].X = s.AzimuthDeg
		pts[i].Y = s.AngleDeg
	}
	if len(pts) > 0 {
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("chart line: %w", err)
		}
		line.Color = color.RGBA{R: 0x80, G: 0x50, B: 0x20, A: 0xff}
		line.FillColor = color.RGBA{R: 0x80, G: 0x50, B: 0x20, A: 0x60}
		plt.Add(line)
	}

	wt, err := plt.WriterTo(24*vg.Centimeter, 10*vg.Centimeter, "png")
	if err != nil {
		return fmt.Errorf("chart render: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
