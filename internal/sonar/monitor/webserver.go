package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/banshee-data/bathymetry.report/internal/sonar/pipeline"
	"github.com/banshee-data/bathymetry.report/internal/sonar/simulator"
	"github.com/banshee-data/bathymetry.report/internal/sonar/storage/sqlite"
	"github.com/banshee-data/bathymetry.report/internal/version"
)

// WebServer handles the HTTP interface for monitoring a survey.
type WebServer struct {
	address string
	engine  *pipeline.Engine
	store   *sqlite.Store
	sensor  *simulator.Sensor
	server  *http.Server
}

// WebServerConfig contains configuration options for the web server.
type WebServerConfig struct {
	Address string
	Engine  *pipeline.Engine
	// Store is optional; without it the snapshot endpoints return 503 and
	// no SQL console is mounted.
	Store *sqlite.Store
	// Sensor is optional; it enables /api/sensor.
	Sensor *simulator.Sensor
}

// NewWebServer creates a new web server with the provided configuration.
func NewWebServer(config WebServerConfig) (*WebServer, error) {
	if config.Engine == nil {
		return nil, errors.New("web server requires an engine")
	}
	ws := &WebServer{
		address: config.Address,
		engine:  config.Engine,
		store:   config.Store,
		sensor:  config.Sensor,
	}
	mux, err := ws.setupRoutes()
	if err != nil {
		return nil, err
	}
	ws.server = &http.Server{
		Addr:              ws.address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return ws, nil
}

// Handler returns the root handler, for tests and embedding.
func (ws *WebServer) Handler() http.Handler { return ws.server.Handler }

// Start serves until ctx is cancelled, then shuts the server down. It
// returns early with an error if the listener cannot be started.
func (ws *WebServer) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting HTTP server on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
	log.Printf("HTTP server routine stopped")
	return nil
}

func (ws *WebServer) setupRoutes() (*http.ServeMux, error) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/api/grid", ws.handleGrid)
	mux.HandleFunc("/api/track", ws.handleTrack)
	mux.HandleFunc("/api/stats", ws.handleStats)
	mux.HandleFunc("/api/trend", ws.handleTrend)
	mux.HandleFunc("/api/analysis", ws.handleAnalysis)
	mux.HandleFunc("/api/filter", ws.handleFilter)
	mux.HandleFunc("/api/snapshot", ws.handleSnapshot)
	mux.HandleFunc("/api/snapshots", ws.handleSnapshots)
	mux.HandleFunc("/api/sensor", ws.handleSensor)
	mux.HandleFunc("/debug/grid", ws.handleGridHeatmap)

	if ws.store != nil {
		if err := ws.store.AttachAdminRoutes(mux); err != nil {
			return nil, err
		}
	}
	return mux, nil
}

func (ws *WebServer) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("JSON encoding error: %v", err)
	}
}

func (ws *WebServer) writeJSONError(w http.ResponseWriter, status int, msg string) {
	ws.writeJSON(w, status, map[string]string{"error": msg})
}

func (ws *WebServer) requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return false
	}
	return true
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ws.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"survey_id": ws.engine.SurveyID(),
		"running":   ws.engine.IsRunning(),
		"version":   version.Version,
	})
}
