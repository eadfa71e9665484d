// Package report renders the predicted score columns of a surrogate table as
// box plots: a static PNG and an interactive HTML page.
package report

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/surrogate/internal/frame"
)

// Summary is the five-number summary of one score column.
type Summary struct {
	Column string
	N      int
	Min    float64
	Q1     float64
	Median float64
	Q3     float64
	Max    float64
}

// Summaries returns a summary per named column, in order. Missing values
// are ignored; columns with no values are an error.
func Summaries(table *frame.Frame, columns []string) ([]Summary, error) {
	out := make([]Summary, 0, len(columns))
	for _, name := range columns {
		vals, err := finiteValues(table, name)
		if err != nil {
			return nil, err
		}
		sort.Float64s(vals)
		out = append(out, Summary{
			Column: name,
			N:      len(vals),
			Min:    vals[0],
			Q1:     stat.Quantile(0.25, stat.LinInterp, vals, nil),
			Median: stat.Quantile(0.5, stat.LinInterp, vals, nil),
			Q3:     stat.Quantile(0.75, stat.LinInterp, vals, nil),
			Max:    vals[len(vals)-1],
		})
	}
	return out, nil
}

func finiteValues(table *frame.Frame, name string) ([]float64, error) {
	c, ok := table.Column(name)
	if !ok {
		return nil, fmt.Errorf("no column %q", name)
	}
	if c.Nominal {
		return nil, fmt.Errorf("column %q is not numeric", name)
	}
	vals := make([]float64, 0, len(c.Num))
	for _, v := range c.Num {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("column %q has no values", name)
	}
	return vals, nil
}

// WritePNG draws one box per column.
func WritePNG(w io.Writer, title string, table *frame.Frame, columns []string) error {
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = "predicted score"

	for i, name := range columns {
		vals, err := finiteValues(table, name)
		if err != nil {
			return err
		}
		box, err := plotter.NewBoxPlot(vg.Points(20), float64(i), plotter.Values(vals))
		if err != nil {
			return fmt.Errorf("box plot for %s: %w", name, err)
		}
		p.Add(box)
	}
	p.NominalX(columns...)

	width := max(6*vg.Inch, vg.Length(len(columns))*vg.Inch/2)
	wt, err := p.WriterTo(width, 6*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("render png: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// WriteHTML renders an interactive box plot page.
func WriteHTML(w io.Writer, title string, table *frame.Frame, columns []string) error {
	summaries, err := Summaries(table, columns)
	if err != nil {
		return err
	}
	data := make([]opts.BoxPlotData, len(summaries))
	for i, s := range summaries {
		data[i] = opts.BoxPlotData{
			Name:  s.Column,
			Value: []float64{s.Min, s.Q1, s.Median, s.Q3, s.Max},
		}
	}

	box := charts.NewBoxPlot()
	box.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "720px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("tasks=%d", len(summaries))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "predicted score", Scale: opts.Bool(true)}),
	)
	box.SetXAxis(columns).AddSeries("score", data)

	page := components.NewPage()
	page.AddCharts(box)
	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	_, err = w.Write(buf.Bytes())
	return err
}
