package report

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/perceptron-sweep/internal/predictor"
	"github.com/banshee-data/perceptron-sweep/internal/security"
)

// RenderPNG draws s into dir and returns the written path. Hashing scheme is
// drawn as a bar chart, every other axis as a line with markers.
func RenderPNG(s AxisSeries, dir string) (string, error) {
	if len(s.Points) == 0 {
		return "", fmt.Errorf("%w: %s %s", ErrNoData, s.Benchmark, s.Axis)
	}

	p := plot.New()
	p.Title.Text = s.Title()
	p.X.Label.Text = s.Axis.Column()
	p.Y.Label.Text = "Accuracy (%)"

	if s.Axis == predictor.AxisHashingScheme {
		if err := addBars(p, s); err != nil {
			return "", err
		}
	} else {
		if err := addLine(p, s); err != nil {
			return "", err
		}
	}

	path := filepath.Join(dir, s.FileName())
	if err := security.ValidatePathWithinDirectory(path, dir); err != nil {
		return "", err
	}
	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return "", fmt.Errorf("save %s: %w", path, err)
	}
	return path, nil
}

func addLine(p *plot.Plot, s AxisSeries) error {
	pts := make(plotter.XYs, len(s.Points))
	for i, pt := range s.Points {
		pts[i] = plotter.XY{X: float64(pt.Value), Y: pt.Accuracy}
	}
	line, scatter, err := plotter.NewLinePoints(pts)
	if err != nil {
		return fmt.Errorf("line for %s: %w", s.Axis, err)
	}
	line.Width = vg.Points(1)
	p.Add(line, scatter, plotter.NewGrid())

	if logAxis(s.Axis) {
		p.X.Scale = plot.LogScale{}
		p.X.Tick.Marker = log2Ticks{}
	} else {
		p.X.Tick.Marker = valueTicks(s.Points)
	}
	return nil
}

func addBars(p *plot.Plot, s AxisSeries) error {
	values := make(plotter.Values, len(s.Points))
	labels := make([]string, len(s.Points))
	for i, pt := range s.Points {
		values[i] = pt.Accuracy
		labels[i] = strconv.Itoa(pt.Value)
	}
	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return fmt.Errorf("bars for %s: %w", s.Axis, err)
	}
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(labels...)
	return nil
}

// log2Ticks places a labelled tick at every power of two in range.
type log2Ticks struct{}

func (log2Ticks) Ticks(min, max float64) []plot.Tick {
	if min <= 0 || max < min {
		return nil
	}
	var ticks []plot.Tick
	for e := math.Floor(math.Log2(min)); math.Exp2(e) <= max; e++ {
		v := math.Exp2(e)
		if v < min {
			continue
		}
		ticks = append(ticks, plot.Tick{Value: v, Label: strconv.FormatFloat(v, 'f', -1, 64)})
	}
	return ticks
}

// valueTicks labels exactly the measured values.
type valueTicks []Point

func (t valueTicks) Ticks(min, max float64) []plot.Tick {
	ticks := make([]plot.Tick, 0, len(t))
	for _, pt := range t {
		v := float64(pt.Value)
		if v >= min && v <= max {
			ticks = append(ticks, plot.Tick{Value: v, Label: strconv.Itoa(pt.Value)})
		}
	}
	return ticks
}
