package api

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/f451labs/telemetry/internal/colors"
	"github.com/f451labs/telemetry/internal/compute"
)

const (
	chartWidth  = 800
	chartHeight = 320
)

// limitColors pairs each limit A..D with the bucket it opens onto.
var limitColors = [4]string{compute.ColorMap[0], compute.ColorMap[1], compute.ColorMap[3], compute.ColorMap[4]}

// chart renders GET /api/v1/rows/{name}/chart.png: every valid sample in the
// window, plus a dashed line per present limit.
func (h *Handler) chart(w http.ResponseWriter, name string) {
	s := h.store.Series()[name]
	png, err := renderChart(name, s, h.opts)
	switch {
	case errors.Is(err, errNoChartData):
		jsonErr(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		slog.Error("api: render chart", "name", name, "err", err)
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png) //nolint:errcheck
}

var errNoChartData = errors.New("api: no valid samples to chart")

func renderChart(name string, s compute.Series, opts compute.Options) ([]byte, error) {
	classified, err := compute.ClassifyWindow(s.Window, s.Valid)
	if err != nil {
		return nil, err
	}
	var xs, ys []float64
	for i, c := range classified {
		if c.Status == compute.StatusValid {
			xs = append(xs, float64(i))
			ys = append(ys, c.Reading.Value)
		}
	}
	if len(ys) == 0 {
		return nil, errNoChartData
	}
	if len(xs) == 1 {
		xs = append(xs, xs[0]+1)
		ys = append(ys, ys[0])
	}

	row, err := compute.PrepareOne(name, s, opts)
	if err != nil {
		return nil, err
	}

	lo, hi := compute.MinMax(ys)
	yMin, yMax := lo.Value, hi.Value
	series := []chart.Series{chart.ContinuousSeries{
		Name:    s.Label,
		XValues: xs,
		YValues: ys,
		Style: chart.Style{
			StrokeColor: chartColor(row.CurrentColor()),
			StrokeWidth: 2,
			DotColor:    chartColor(row.CurrentColor()),
			DotWidth:    2,
		},
	}}
	for i, l := range s.Limits {
		if !l.Present {
			continue
		}
		yMin, yMax = min(yMin, l.Value), max(yMax, l.Value)
		series = append(series, chart.ContinuousSeries{
			XValues: []float64{xs[0], xs[len(xs)-1]},
			YValues: []float64{l.Value, l.Value},
			Style: chart.Style{
				StrokeColor:     chartColor(limitColors[i]),
				StrokeWidth:     1,
				StrokeDashArray: []float64{4, 4},
			},
		})
	}
	if yMin == yMax {
		yMin, yMax = yMin-1, yMax+1
	}

	title := s.Label
	if s.Unit != "" {
		title += " (" + s.Unit + ")"
	}
	ch := chart.Chart{
		Title:  title,
		Width:  chartWidth,
		Height: chartHeight,
		XAxis:  chart.XAxis{Name: "sample"},
		YAxis: chart.YAxis{
			Name:  s.Unit,
			Range: &chart.ContinuousRange{Min: yMin, Max: yMax},
		},
		Series: series,
	}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// chartColor maps a palette name to a drawing color, falling back to grey.
func chartColor(name string) drawing.Color {
	c, ok := colors.Lookup(name)
	if !ok {
		c, _ = colors.Lookup(compute.DefaultColor)
	}
	return drawing.Color{R: c.R, G: c.G, B: c.B, A: 255}
}
