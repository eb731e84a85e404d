// Command survey runs a simulated multibeam survey: a synthetic sensor
// feeds the depth-grid engine, snapshots are flushed to SQLite and a
// monitor serves the grid over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/bathymetry.report/internal/config"
	"github.com/banshee-data/bathymetry.report/internal/sonar/l3grid"
	"github.com/banshee-data/bathymetry.report/internal/sonar/monitor"
	"github.com/banshee-data/bathymetry.report/internal/sonar/pipeline"
	"github.com/banshee-data/bathymetry.report/internal/sonar/simulator"
	"github.com/banshee-data/bathymetry.report/internal/sonar/storage/sqlite"
	"github.com/banshee-data/bathymetry.report/internal/version"
)

var (
	configPath   = flag.String("config", "", "Survey config file (.json, .yaml); built-in defaults when empty")
	dbPath       = flag.String("db", "survey.db", "SQLite snapshot database; empty disables persistence")
	listen       = flag.String("listen", ":8080", "Monitor listen address; empty disables the monitor")
	duration     = flag.Duration("duration", 0, "Stop after this long (0 runs until interrupted)")
	surveyID     = flag.String("survey-id", "", "Resume an existing survey from its latest snapshot")
	surveyName   = flag.String("survey-name", "simulated survey", "Name recorded for a new survey")
	seed         = flag.Int64("seed", 0, "Simulator noise seed (0 seeds from the clock)")
	flushDisable = flag.Bool("flush-disable", false, "Disable periodic snapshot flushing")
	gridDiag     = flag.Bool("grid-diag", false, "Log grid resets, loads and replacements")
	gridTrace    = flag.Bool("grid-trace", false, "Log per-packet grid update telemetry (verbose)")
	showVersion  = flag.Bool("version", false, "Print version and exit")
)

type options struct {
	ConfigPath   string
	DBPath       string
	Listen       string
	Duration     time.Duration
	SurveyID     string
	SurveyName   string
	Seed         int64
	FlushDisable bool
	GridDiag     bool
	GridTrace    bool
}

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println("survey", version.String())
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := options{
		ConfigPath:   *configPath,
		DBPath:       *dbPath,
		Listen:       *listen,
		Duration:     *duration,
		SurveyID:     *surveyID,
		SurveyName:   *surveyName,
		Seed:         *seed,
		FlushDisable: *flushDisable,
		GridDiag:     *gridDiag,
		GridTrace:    *gridTrace,
	}
	if err := run(ctx, opts); err != nil {
		log.Fatalf("survey: %v", err)
	}
}

func loadConfig(path string) (*config.SurveyConfig, error) {
	if path == "" {
		return config.DefaultSurveyConfig(), nil
	}
	return config.LoadSurveyConfig(path)
}

// gridLogWriters picks the l3grid log streams: ops always goes to w, diag
// and trace only when enabled.
func gridLogWriters(opts options, w io.Writer) (ops, diag, trace io.Writer) {
	ops = w
	if opts.GridDiag {
		diag = w
	}
	if opts.GridTrace {
		trace = w
	}
	return ops, diag, trace
}

// run wires sensor → engine → flusher → monitor and blocks until ctx is
// done or opts.Duration elapses.
func run(ctx context.Context, opts options) error {
	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	if opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	l3grid.SetLogWriters(gridLogWriters(opts, log.Writer()))

	engineCfg := pipeline.ConfigFromSurvey(cfg)

	var store *sqlite.Store
	if opts.DBPath != "" {
		store, err = sqlite.Open(opts.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		if opts.SurveyID != "" {
			sv, err := store.GetSurvey(opts.SurveyID)
			if err != nil {
				return err
			}
			engineCfg.SurveyID = sv.SurveyID
		} else {
			sv, err := store.CreateSurvey(opts.SurveyName, engineCfg.Grid.Size, engineCfg.Grid.CellSizeMeters)
			if err != nil {
				return err
			}
			engineCfg.SurveyID = sv.SurveyID
			log.Printf("created survey %s (%q)", sv.SurveyID, sv.Name)
		}
	}

	engine, err := pipeline.NewEngine(engineCfg)
	if err != nil {
		return err
	}
	if store != nil && opts.SurveyID != "" {
		switch err := engine.RestoreLatest(store); {
		case err == nil:
			log.Printf("resumed survey %s: %d valid cells", engineCfg.SurveyID, engine.CurrentGrid().ValidCount())
		case errors.Is(err, sqlite.ErrNotFound):
			log.Printf("survey %s has no snapshots, starting empty", engineCfg.SurveyID)
		default:
			return err
		}
	}

	params, err := simulator.ParamsFromSurvey(cfg)
	if err != nil {
		return err
	}
	sensor, err := simulator.NewSensor(simulator.SensorConfig{
		Params:     params,
		BufferSize: cfg.GetSimBufferSize(),
		Seed:       opts.Seed,
		Drops:      engine.IngestCounters(),
	})
	if err != nil {
		return err
	}

	// A failing routine stops the others.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 4)
	goRun := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				errCh <- fmt.Errorf("%s: %w", name, err)
				cancel()
			}
			log.Printf("%s routine terminated", name)
		}()
	}

	goRun("sensor", func() error { return sensor.Run(ctx) })
	goRun("engine", func() error { return engine.Run(ctx, sensor.Out()) })

	if store != nil && cfg.GetFlushInterval() > 0 && !cfg.GetFlushDisable() && !opts.FlushDisable {
		flusher := pipeline.NewSnapshotFlusher(pipeline.SnapshotFlusherConfig{
			Persister:  engine,
			Store:      store,
			Interval:   cfg.GetFlushInterval(),
			MinChanges: 1,
			Keep:       cfg.GetSnapshotKeep(),
		})
		goRun("flusher", func() error { return flusher.Run(ctx) })
	} else {
		log.Printf("snapshot flushing disabled")
	}

	if opts.Listen != "" {
		ws, err := monitor.NewWebServer(monitor.WebServerConfig{
			Address: opts.Listen,
			Engine:  engine,
			Store:   store,
			Sensor:  sensor,
		})
		if err != nil {
			return err
		}
		goRun("monitor", func() error { return ws.Start(ctx) })
	}

	wg.Wait()
	close(errCh)

	stats := engine.Counters()
	produced, dropped := sensor.Stats()
	log.Printf("survey finished: accepted=%d rejected=%d dropped=%d produced=%d sensor_dropped=%d snapshots=%d",
		stats.PacketsAccepted, stats.PacketsRejected, stats.PacketsDropped, produced, dropped, stats.SnapshotsSaved)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
