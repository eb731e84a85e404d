package monitor

import (
	"bytes"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/bathymetry.report/internal/sonar/l4terrain"
	"github.com/banshee-data/bathymetry.report/internal/sonar/pipeline"
)

// viridis, shallow to deep.
var heatmapColors = []string{"#fde725", "#b5de2b", "#6ece58", "#35b779", "#1f9e89", "#26828e", "#31688e", "#3e4989", "#482777", "#440154"}

// handleGridHeatmap renders the grid (or a derived product) as an HTML
// heatmap using go-echarts. Debugging only.
// Query params:
//   - product (optional): depth (default), slope, quality
func (ws *WebServer) handleGridHeatmap(w http.ResponseWriter, r *http.Request) {
	product := r.URL.Query().Get("product")
	if product == "" {
		product = "depth"
	}

	var (
		size   int
		values []float64
		valid  []bool
		unit   string
	)
	switch product {
	case "depth":
		snap := ws.engine.CurrentGrid()
		size, values, valid, unit = snap.Size, snap.Depths, snap.Valid, "m"
	case "slope", "quality":
		a, err := ws.engine.Analyze(pipeline.AnalysisKind(product))
		if err != nil {
			ws.writeEngineError(w, err)
			return
		}
		var m *l4terrain.Map
		if a.Slope != nil {
			m, unit = a.Slope.Degrees, "deg"
		} else {
			m, unit = a.Quality.LocalStd, "m std"
		}
		size, values, valid = m.Size, m.Values, m.Valid
	default:
		ws.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("unknown product %q", product))
		return
	}

	data := make([]opts.HeatMapData, 0, len(values))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, ok := range valid {
		if !ok {
			continue
		}
		v := values[i]
		lo, hi = math.Min(lo, v), math.Max(hi, v)
		data = append(data, opts.HeatMapData{Value: [3]interface{}{i % size, i / size, v}})
	}
	if len(data) == 0 {
		lo, hi = 0, 1
	}

	axis := make([]string, size)
	for i := range axis {
		axis[i] = strconv.Itoa(i)
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Survey Grid", Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Survey %s", product),
			Subtitle: fmt.Sprintf("survey=%s cells=%d/%d unit=%s", ws.engine.SurveyID(), len(data), size*size, unit),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Name: "col", Data: axis}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Name: "row", Data: axis}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(lo),
			Max:        float32(hi),
			InRange:    &opts.VisualMapInRange{Color: heatmapColors},
		}),
	)
	hm.AddSeries(product, data)

	var buf bytes.Buffer
	if err := hm.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render heatmap: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
