package chart

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/laserscope/internal/analyser"
	"github.com/banshee-data/laserscope/internal/profile"
)

// WriteProfileHTML renders snap as a go-echarts line chart with mark lines
// at the center and zero when they are known.
func WriteProfileHTML(w io.Writer, snap analyser.Snapshot, subtitle string) error {
	pts, err := profilePoints(snap)
	if err != nil {
		return err
	}

	data := make([]opts.LineData, len(pts))
	for i, p := range pts {
		data[i] = opts.LineData{Value: []interface{}{p.x, p.y}}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Laser line profile", Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Normalized profile", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "Pixel", NameLocation: "middle", NameGap: 25, Min: 0, Max: xMax(snap)}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "Level", Min: 0, Max: profile.MaxLevel}),
	)

	var marks []opts.MarkLineNameXAxisItem
	if snap.Center != nil {
		marks = append(marks, opts.MarkLineNameXAxisItem{Name: fmt.Sprintf("center %.2f", *snap.Center), XAxis: *snap.Center})
	}
	if snap.Zero != nil {
		marks = append(marks, opts.MarkLineNameXAxisItem{Name: fmt.Sprintf("zero %.2f", *snap.Zero), XAxis: *snap.Zero})
	}

	seriesOpts := []charts.SeriesOpts{
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
	}
	if len(marks) > 0 {
		seriesOpts = append(seriesOpts,
			charts.WithMarkLineNameXAxisItemOpts(marks...),
			charts.WithMarkLineStyleOpts(opts.MarkLineStyle{Symbol: []string{"none"}, Label: &opts.Label{Show: opts.Bool(true), Formatter: "{b}"}}),
		)
	}
	line.AddSeries("profile", data, seriesOpts...)

	if err := line.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}
