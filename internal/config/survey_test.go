package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultSurveyConfig(t *testing.T) {
	cfg := DefaultSurveyConfig()

	if cfg.GridSize == nil || *cfg.GridSize != 100 {
		t.Errorf("Expected GridSize 100, got %v", cfg.GridSize)
	}
	if cfg.UpdateAlpha == nil || *cfg.UpdateAlpha != 0.3 {
		t.Errorf("Expected UpdateAlpha 0.3, got %v", cfg.UpdateAlpha)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.GetSimInterval() != 500*time.Millisecond {
		t.Errorf("GetSimInterval() = %v, want 500ms", cfg.GetSimInterval())
	}
}

func TestEmptyConfigGetters(t *testing.T) {
	cfg := EmptySurveyConfig()
	if got := cfg.GetGridSize(); got != 100 {
		t.Errorf("GetGridSize() = %d, want 100", got)
	}
	if got := cfg.GetCellSizeMeters(); got != 0.2 {
		t.Errorf("GetCellSizeMeters() = %f, want 0.2", got)
	}
	if got := cfg.GetBeamStride(); got != 4 {
		t.Errorf("GetBeamStride() = %d, want 4", got)
	}
	if got := cfg.GetDepthFloorMeters(); got != 5.0 {
		t.Errorf("GetDepthFloorMeters() = %f, want 5", got)
	}
	if got := cfg.GetTrackCapacity(); got != 1000 {
		t.Errorf("GetTrackCapacity() = %d, want 1000", got)
	}
	if got := cfg.GetFlushInterval(); got != 60*time.Second {
		t.Errorf("GetFlushInterval() = %v, want 60s", got)
	}
	if got := cfg.GetSnapshotKeep(); got != 100 {
		t.Errorf("GetSnapshotKeep() = %d, want 100", got)
	}
	if got := cfg.GetSimQualityMode(); got != "high" {
		t.Errorf("GetSimQualityMode() = %q, want high", got)
	}
}

// The shipped defaults file and DefaultSurveyConfig must agree.
func TestDefaultsFileMatchesBuiltins(t *testing.T) {
	got := MustLoadDefaultConfig()
	if diff := cmp.Diff(DefaultSurveyConfig(), got); diff != "" {
		t.Errorf("defaults file mismatch (-builtin +file):\n%s", diff)
	}
}

func TestLoadSurveyConfig_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "survey.json")
	body := `{"grid_size": 50, "update_alpha": 0.5, "flush_interval": "2m"}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadSurveyConfig(path)
	if err != nil {
		t.Fatalf("LoadSurveyConfig: %v", err)
	}
	if cfg.GetGridSize() != 50 {
		t.Errorf("GetGridSize() = %d, want 50", cfg.GetGridSize())
	}
	if cfg.GetUpdateAlpha() != 0.5 {
		t.Errorf("GetUpdateAlpha() = %f, want 0.5", cfg.GetUpdateAlpha())
	}
	if cfg.GetFlushInterval() != 2*time.Minute {
		t.Errorf("GetFlushInterval() = %v, want 2m", cfg.GetFlushInterval())
	}
	// Omitted fields fall back to defaults.
	if cfg.GetBeamStride() != 4 {
		t.Errorf("GetBeamStride() = %d, want 4", cfg.GetBeamStride())
	}
}

func TestLoadSurveyConfig_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "survey.yaml")
	body := "grid_size: 64\nsim_quality_mode: fast\nsim_interval: 250ms\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadSurveyConfig(path)
	if err != nil {
		t.Fatalf("LoadSurveyConfig: %v", err)
	}
	if cfg.GetGridSize() != 64 {
		t.Errorf("GetGridSize() = %d, want 64", cfg.GetGridSize())
	}
	if cfg.GetSimQualityMode() != "fast" {
		t.Errorf("GetSimQualityMode() = %q, want fast", cfg.GetSimQualityMode())
	}
	if cfg.GetSimInterval() != 250*time.Millisecond {
		t.Errorf("GetSimInterval() = %v, want 250ms", cfg.GetSimInterval())
	}
}

func TestLoadSurveyConfig_Errors(t *testing.T) {
	dir := t.TempDir()

	txt := filepath.Join(dir, "survey.txt")
	_ = os.WriteFile(txt, []byte("{}"), 0644)
	if _, err := LoadSurveyConfig(txt); err == nil {
		t.Error("expected error for .txt extension")
	}

	if _, err := LoadSurveyConfig(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.json")
	_ = os.WriteFile(bad, []byte(`{"grid_size": "wide"`), 0644)
	if _, err := LoadSurveyConfig(bad); err == nil {
		t.Error("expected error for malformed JSON")
	}

	invalid := filepath.Join(dir, "invalid.yaml")
	_ = os.WriteFile(invalid, []byte("update_alpha: 1.5\n"), 0644)
	if _, err := LoadSurveyConfig(invalid); err == nil {
		t.Error("expected validation error for alpha 1.5")
	}

	big := filepath.Join(dir, "big.json")
	_ = os.WriteFile(big, make([]byte, maxConfigFileSize+1), 0644)
	if _, err := LoadSurveyConfig(big); err == nil {
		t.Error("expected error for oversized file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *SurveyConfig
		wantErr bool
	}{
		{"valid config", DefaultSurveyConfig(), false},
		{"empty config is valid", &SurveyConfig{}, false},
		{"grid too small", &SurveyConfig{GridSize: ptrInt(2)}, true},
		{"zero cell size", &SurveyConfig{CellSizeMeters: ptrFloat64(0)}, true},
		{"alpha zero", &SurveyConfig{UpdateAlpha: ptrFloat64(0)}, true},
		{"alpha one", &SurveyConfig{UpdateAlpha: ptrFloat64(1)}, false},
		{"stride zero", &SurveyConfig{BeamStride: ptrInt(0)}, true},
		{"fill below floor", &SurveyConfig{DepthFloorMeters: ptrFloat64(5), DefaultFillDepthMeters: ptrFloat64(4)}, true},
		{"swath at 90", &SurveyConfig{SwathHalfAngleDegrees: ptrFloat64(90)}, true},
		{"invalid flush interval", &SurveyConfig{FlushInterval: ptrString("soon")}, true},
		{"negative sim interval", &SurveyConfig{SimInterval: ptrString("-1s")}, true},
		{"unknown quality mode", &SurveyConfig{SimQualityMode: ptrString("ultra")}, true},
		{"negative noise", &SurveyConfig{SimNoiseLevel: ptrFloat64(-0.1)}, true},
		{"keep every snapshot", &SurveyConfig{SnapshotKeep: ptrInt(0)}, false},
		{"negative snapshot keep", &SurveyConfig{SnapshotKeep: ptrInt(-1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseDurationFallback(t *testing.T) {
	cfg := &SurveyConfig{FlushInterval: ptrString("garbage"), SimInterval: ptrString("")}
	if got := cfg.GetFlushInterval(); got != 60*time.Second {
		t.Errorf("GetFlushInterval() = %v, want fallback 60s", got)
	}
	if got := cfg.GetSimInterval(); got != 500*time.Millisecond {
		t.Errorf("GetSimInterval() = %v, want fallback 500ms", got)
	}
}
