package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/okian/watchlog/internal/domain/model"
)

// ErrNothingToPlot is returned for a cycle without measurements.
var ErrNothingToPlot = errors.New("no measurements to plot")

const (
	plotWidth  = 1024
	plotHeight = 512
)

func addPlot(topLevel *cobra.Command, o *Options) {
	var output string
	cmd := &cobra.Command{
		Use:     "plot",
		Aliases: []string{"p"},
		Short:   "Render the selected cycle's measurements as a PNG chart",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd, func(ctx context.Context, e *env) error {
				sel, err := selected(ctx, e.session)
				if err != nil {
					return err
				}
				snap := e.session.Measurements().Snapshot()
				if err := failure(snap); err != nil {
					return err
				}

				path := output
				if path == "" {
					path = fmt.Sprintf("%s-cycle%d.png", slug(sel.Watch.Name), sel.Cycle.Value)
				}
				f, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("create plot: %w", err)
				}
				title := fmt.Sprintf("%s, cycle %d", sel.Watch.Name, sel.Cycle.Value)
				if err := renderPlot(f, title, snap.Data); err != nil {
					_ = f.Close()
					_ = os.Remove(path)
					return err
				}
				if err := f.Close(); err != nil {
					return fmt.Errorf("write plot: %w", err)
				}
				return e.out.Done("Wrote %s", path)
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "PNG file to write (default: <watch>-cycle<N>.png)")
	topLevel.AddCommand(cmd)
}

func pointStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeColor: col,
		StrokeWidth: 2,
		DotWidth:    4,
		DotColor:    col,
	}
}

// renderPlot draws measure over time as a PNG.
func renderPlot(w io.Writer, title string, logs []model.Measurement) error {
	if len(logs) == 0 {
		return ErrNothingToPlot
	}
	xs := make([]time.Time, 0, len(logs)+1)
	ys := make([]float64, 0, len(logs)+1)
	for _, m := range logs {
		xs = append(xs, m.Datetime.Time)
		ys = append(ys, m.Measure)
	}
	// go-chart needs a non-empty X range.
	if len(xs) == 1 {
		xs = append(xs, xs[0].Add(time.Hour))
		ys = append(ys, ys[0])
	}

	ch := chart.Chart{
		Title:      title,
		Width:      plotWidth,
		Height:     plotHeight,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis: chart.XAxis{
			Name:           "time",
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{Name: "measure [s]"},
		Series: []chart.Series{
			chart.TimeSeries{Name: "measure", XValues: xs, YValues: ys, Style: pointStyle(chart.ColorBlue)},
		},
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render plot: %w", err)
	}
	return nil
}

func slug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
