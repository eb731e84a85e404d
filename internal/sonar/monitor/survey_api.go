package monitor

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/bathymetry.report/internal/monitoring"
	"github.com/banshee-data/bathymetry.report/internal/sonar/l4filters"
	"github.com/banshee-data/bathymetry.report/internal/sonar/l4terrain"
	"github.com/banshee-data/bathymetry.report/internal/sonar/l5survey"
	"github.com/banshee-data/bathymetry.report/internal/sonar/pipeline"
	"github.com/banshee-data/bathymetry.report/internal/sonar/simulator"
)

// gridResponse is the JSON form of the depth grid. Rows are indexed by
// cell row; cells without data are null.
type gridResponse struct {
	Size           int          `json:"size"`
	CellSizeMeters float64      `json:"cell_size_meters"`
	ValidCells     int          `json:"valid_cells"`
	Depths         [][]*float64 `json:"depths"`
}

func (ws *WebServer) handleGrid(w http.ResponseWriter, r *http.Request) {
	if !ws.requireMethod(w, r, http.MethodGet) {
		return
	}
	snap := ws.engine.CurrentGrid()
	resp := gridResponse{
		Size:           snap.Size,
		CellSizeMeters: snap.CellSizeMeters,
		ValidCells:     snap.ValidCount(),
		Depths:         make([][]*float64, snap.Size),
	}
	for row := range resp.Depths {
		resp.Depths[row] = make([]*float64, snap.Size)
		for col := range resp.Depths[row] {
			if d, ok := snap.At(row, col); ok {
				resp.Depths[row][col] = &d
			}
		}
	}
	ws.writeJSON(w, http.StatusOK, resp)
}

func (ws *WebServer) handleTrack(w http.ResponseWriter, r *http.Request) {
	if !ws.requireMethod(w, r, http.MethodGet) {
		return
	}
	pts := ws.engine.CurrentTrack()
	if pts == nil {
		pts = []l5survey.TrackPoint{}
	}
	ws.writeJSON(w, http.StatusOK, map[string]interface{}{
		"points":   pts,
		"length_m": l5survey.PathLength(pts),
	})
}

type statsResponse struct {
	SurveyID   string                 `json:"survey_id"`
	Statistics l5survey.Statistics    `json:"statistics"`
	Ingest     monitoring.IngestStats `json:"ingest"`
	Pending    int                    `json:"pending_changes"`
}

func (ws *WebServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if !ws.requireMethod(w, r, http.MethodGet) {
		return
	}
	ws.writeJSON(w, http.StatusOK, statsResponse{
		SurveyID:   ws.engine.SurveyID(),
		Statistics: ws.engine.CurrentStatistics(),
		Ingest:     ws.engine.Counters(),
		Pending:    ws.engine.PendingChanges(),
	})
}

func (ws *WebServer) handleTrend(w http.ResponseWriter, r *http.Request) {
	if !ws.requireMethod(w, r, http.MethodGet) {
		return
	}
	window := l5survey.DefaultMovingAverageWindow
	if v := r.URL.Query().Get("window"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			ws.writeJSONError(w, http.StatusBadRequest, "window must be a positive integer")
			return
		}
		window = parsed
	}
	ws.writeJSON(w, http.StatusOK, ws.engine.Trend(window))
}

func (ws *WebServer) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	if !ws.requireMethod(w, r, http.MethodGet) {
		return
	}
	kind, err := pipeline.ParseAnalysisKind(r.URL.Query().Get("kind"))
	if err != nil {
		ws.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	a, err := ws.engine.Analyze(kind)
	if err != nil {
		ws.writeEngineError(w, err)
		return
	}
	ws.writeJSON(w, http.StatusOK, a)
}

// handleFilter applies a filter to the live grid.
// Query params:
//
//	kind (required): lowpass, enhance, median, outlier, composite
//	strength (optional, default 5): 1-10
func (ws *WebServer) handleFilter(w http.ResponseWriter, r *http.Request) {
	if !ws.requireMethod(w, r, http.MethodPost) {
		return
	}
	kind, err := l4filters.ParseKind(r.URL.Query().Get("kind"))
	if err != nil {
		ws.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	strength := 5.0
	if v := r.URL.Query().Get("strength"); v != "" {
		strength, err = strconv.ParseFloat(v, 64)
		if err != nil {
			ws.writeJSONError(w, http.StatusBadRequest, "strength must be a number")
			return
		}
	}
	res, err := ws.engine.Filter(kind, strength)
	if err != nil {
		ws.writeEngineError(w, err)
		return
	}
	ws.writeJSON(w, http.StatusOK, res)
}

func (ws *WebServer) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if !ws.requireMethod(w, r, http.MethodPost) {
		return
	}
	if ws.store == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "no database configured")
		return
	}
	if err := ws.engine.Persist(ws.store, "manual"); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("persist snapshot: %v", err))
		return
	}
	ws.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "persisted",
		"survey_id":       ws.engine.SurveyID(),
		"snapshots_saved": ws.engine.Counters().SnapshotsSaved,
	})
}

// handleSnapshots lists stored snapshots of the current survey.
// Query params:
//
//	limit (optional, default 10, max 100)
func (ws *WebServer) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	if !ws.requireMethod(w, r, http.MethodGet) {
		return
	}
	if ws.store == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "no database configured")
		return
	}
	limit := 10
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	snaps, err := ws.store.ListSnapshots(ws.engine.SurveyID(), limit)
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list snapshots: %v", err))
		return
	}
	if snaps == nil {
		ws.writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	ws.writeJSON(w, http.StatusOK, snaps)
}

// sensorParams is the JSON form of simulator.Params. Omitted fields keep
// their current value on POST.
type sensorParams struct {
	Interval   *string  `json:"interval,omitempty"`
	BeamCount  *int     `json:"beam_count,omitempty"`
	NoiseLevel *float64 `json:"noise_level,omitempty"`
	Quality    *string  `json:"quality,omitempty"`
}

func toSensorParams(p simulator.Params) sensorParams {
	interval := p.Interval.String()
	quality := string(p.Quality)
	return sensorParams{Interval: &interval, BeamCount: &p.BeamCount, NoiseLevel: &p.NoiseLevel, Quality: &quality}
}

func (ws *WebServer) handleSensor(w http.ResponseWriter, r *http.Request) {
	if ws.sensor == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "no sensor attached")
		return
	}
	switch r.Method {
	case http.MethodGet:
		ws.writeJSON(w, http.StatusOK, toSensorParams(ws.sensor.Params()))
	case http.MethodPost:
		var req sensorParams
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
			ws.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
			return
		}
		p := ws.sensor.Params()
		if req.Interval != nil {
			d, err := time.ParseDuration(*req.Interval)
			if err != nil {
				ws.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid interval: %v", err))
				return
			}
			p.Interval = d
		}
		if req.BeamCount != nil {
			p.BeamCount = *req.BeamCount
		}
		if req.NoiseLevel != nil {
			p.NoiseLevel = *req.NoiseLevel
		}
		if req.Quality != nil {
			p.Quality = simulator.QualityMode(*req.Quality)
		}
		if err := ws.sensor.SetParams(p); err != nil {
			ws.writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		ws.writeJSON(w, http.StatusOK, toSensorParams(ws.sensor.Params()))
	default:
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// writeEngineError maps engine errors to HTTP statuses.
func (ws *WebServer) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, l4terrain.ErrEmptyGrid):
		ws.writeJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, l4filters.ErrUnknownFilter), errors.Is(err, pipeline.ErrUnknownAnalysis):
		ws.writeJSONError(w, http.StatusBadRequest, err.Error())
	default:
		ws.writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}
