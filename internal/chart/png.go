package chart

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/laserscope/internal/analyser"
	"github.com/banshee-data/laserscope/internal/profile"
)

// PNGOptions sizes the rendered image. Zero fields use 8x4 inches.
type PNGOptions struct {
	Width  vg.Length
	Height vg.Length
	Title  string
}

var (
	centerColor = color.RGBA{R: 220, G: 40, B: 40, A: 255}
	zeroColor   = color.RGBA{R: 40, G: 120, B: 220, A: 255}
)

// WriteProfilePNG renders snap with gonum/plot, drawing vertical lines at
// the center and zero when they are known.
func WriteProfilePNG(w io.Writer, snap analyser.Snapshot, o PNGOptions) error {
	pts, err := profilePoints(snap)
	if err != nil {
		return err
	}
	if o.Width <= 0 {
		o.Width = 8 * vg.Inch
	}
	if o.Height <= 0 {
		o.Height = 4 * vg.Inch
	}

	p := plot.New()
	p.Title.Text = o.Title
	if p.Title.Text == "" {
		p.Title.Text = "Normalized profile"
	}
	p.X.Label.Text = "Pixel"
	p.Y.Label.Text = "Level"
	p.X.Min, p.X.Max = 0, xMax(snap)
	p.Y.Min, p.Y.Max = 0, profile.MaxLevel
	p.Legend.Top = true

	xys := make(plotter.XYs, len(pts))
	for i, pt := range pts {
		xys[i] = plotter.XY{X: pt.x, Y: pt.y}
	}
	curve, err := plotter.NewLine(xys)
	if err != nil {
		return fmt.Errorf("profile line: %w", err)
	}
	curve.Width = vg.Points(1)
	p.Add(curve)
	p.Legend.Add("profile", curve)

	if snap.Center != nil {
		if err := addMarker(p, *snap.Center, "center", centerColor, nil); err != nil {
			return err
		}
	}
	if snap.Zero != nil {
		if err := addMarker(p, *snap.Zero, "zero", zeroColor, []vg.Length{vg.Points(4), vg.Points(2)}); err != nil {
			return err
		}
	}

	wt, err := p.WriterTo(o.Width, o.Height, "png")
	if err != nil {
		return fmt.Errorf("failed to render plot: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

func addMarker(p *plot.Plot, x float64, label string, c color.Color, dashes []vg.Length) error {
	l, err := plotter.NewLine(plotter.XYs{{X: x, Y: 0}, {X: x, Y: profile.MaxLevel}})
	if err != nil {
		return fmt.Errorf("%s marker: %w", label, err)
	}
	l.Color = c
	l.Width = vg.Points(1.5)
	l.Dashes = dashes
	p.Add(l)
	p.Legend.Add(fmt.Sprintf("%s %.2f", label, x), l)
	return nil
}
