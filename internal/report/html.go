package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/perceptron-sweep/internal/predictor"
)

// RenderHTML writes a single page with one chart per non-empty series.
func RenderHTML(w io.Writer, series []AxisSeries) error {
	page := components.NewPage()
	added := 0
	for _, s := range series {
		if len(s.Points) == 0 {
			continue
		}
		if s.Axis == predictor.AxisHashingScheme {
			page.AddCharts(barChart(s))
		} else {
			page.AddCharts(lineChart(s))
		}
		added++
	}
	if added == 0 {
		return fmt.Errorf("%w: nothing to chart", ErrNoData)
	}
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render dashboard: %w", err)
	}
	return nil
}

func globalOpts(s AxisSeries) []charts.GlobalOpts {
	subtitle := ""
	if st, err := Summarise(s); err == nil {
		subtitle = fmt.Sprintf("n=%d mean=%.2f%% best=%d (%.2f%%) worst=%d (%.2f%%)",
			st.Count, st.Mean, st.Best.Value, st.Best.Accuracy, st.Worst.Value, st.Worst.Accuracy)
	}
	return []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{PageTitle: s.Benchmark + " perceptron sweep", Width: "900px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: s.Title(), Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: s.Axis.Column(), NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Accuracy (%)", NameLocation: "middle", NameGap: 40}),
	}
}

func categories(s AxisSeries) []string {
	x := make([]string, len(s.Points))
	for i, pt := range s.Points {
		x[i] = strconv.Itoa(pt.Value)
	}
	return x
}

func lineChart(s AxisSeries) *charts.Line {
	data := make([]opts.LineData, len(s.Points))
	for i, pt := range s.Points {
		data[i] = opts.LineData{Value: pt.Accuracy}
	}
	line := charts.NewLine()
	line.SetGlobalOptions(globalOpts(s)...)
	line.SetXAxis(categories(s)).
		AddSeries("accuracy", data,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return line
}

func barChart(s AxisSeries) *charts.Bar {
	data := make([]opts.BarData, len(s.Points))
	for i, pt := range s.Points {
		data[i] = opts.BarData{Value: pt.Accuracy}
	}
	bar := charts.NewBar()
	bar.SetGlobalOptions(globalOpts(s)...)
	bar.SetXAxis(categories(s)).
		AddSeries("accuracy", data,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}
