package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func saveGlobals(t *testing.T) {
	t.Helper()

	origCfgFile := cfgFile
	origLevel := logLevel
	origFormat := logFormat
	origLogFile := logFile
	origSource := sourceDir
	origReplica := replicaDir
	origInterval := intervalSec
	t.Cleanup(func() {
		cfgFile = origCfgFile
		logLevel = origLevel
		logFormat = origFormat
		logFile = origLogFile
		sourceDir = origSource
		replicaDir = origReplica
		intervalSec = origInterval
	})
}

func errorLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestParseLevel(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want slog.Level
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "info", want: slog.LevelInfo},
		{in: "warn", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "unknown", want: slog.LevelInfo},
		{in: "", want: slog.LevelInfo},
	} {
		if got := parseLevel(tc.in); got != tc.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestSetupLogger(t *testing.T) {
	saveGlobals(t)

	for _, tc := range []struct {
		name      string
		logLevel  string
		logFormat string
	}{
		{name: "debug/text", logLevel: "debug", logFormat: "text"},
		{name: "info/json", logLevel: "info", logFormat: "json"},
		{name: "warn/text", logLevel: "warn", logFormat: "text"},
		{name: "unknown/text", logLevel: "unknown", logFormat: "text"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			logLevel = tc.logLevel
			logFormat = tc.logFormat

			logger, closeLog, err := setupLogger("")
			if err != nil {
				t.Fatalf("setupLogger returned error: %v", err)
			}
			if logger == nil {
				t.Fatal("setupLogger returned nil")
			}
			if err := closeLog(); err != nil {
				t.Errorf("closeLog returned error: %v", err)
			}
		})
	}
}

func TestSetupLogger_WithFile(t *testing.T) {
	saveGlobals(t)
	logLevel = "info"
	logFormat = "text"

	path := filepath.Join(t.TempDir(), "sync.log")
	logger, closeLog, err := setupLogger(path)
	if err != nil {
		t.Fatalf("setupLogger returned error: %v", err)
	}

	logger.Info("hello from the log file test")
	if err := closeLog(); err != nil {
		t.Fatalf("closeLog returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "hello from the log file test") {
		t.Errorf("log file does not contain the record: %s", data)
	}
}

func TestSetupLogger_UnwritableFile(t *testing.T) {
	saveGlobals(t)

	_, _, err := setupLogger(filepath.Join(t.TempDir(), "no", "such", "dir", "sync.log"))
	if err == nil {
		t.Fatal("expected error for unwritable log file path, got nil")
	}
}

func TestLoadConfig_WithExplicitPath(t *testing.T) {
	saveGlobals(t)

	source := t.TempDir()
	replica := t.TempDir()

	configContent := []byte(`paths:
  source: "` + source + `"
  replica: "` + replica + `"
sync:
  interval_seconds: 15
  workers: 4
`)
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, configContent, 0o600); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfgFile = cfgPath
	sourceDir = ""
	replicaDir = ""
	intervalSec = 0

	cfg, err := loadConfig(errorLogger())
	if err != nil {
		t.Fatalf("loadConfig returned error: %v", err)
	}
	if cfg.Paths.Source != source {
		t.Errorf("expected source %s, got %s", source, cfg.Paths.Source)
	}
	if cfg.Sync.IntervalSeconds != 15 {
		t.Errorf("expected interval 15, got %d", cfg.Sync.IntervalSeconds)
	}
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	saveGlobals(t)

	source := t.TempDir()
	replica := t.TempDir()
	flagSource := t.TempDir()

	configContent := []byte(`paths:
  source: "` + source + `"
  replica: "` + replica + `"
sync:
  interval_seconds: 15
`)
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, configContent, 0o600); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfgFile = cfgPath
	sourceDir = flagSource
	replicaDir = ""
	intervalSec = 90

	cfg, err := loadConfig(errorLogger())
	if err != nil {
		t.Fatalf("loadConfig returned error: %v", err)
	}
	if cfg.Paths.Source != flagSource {
		t.Errorf("expected flag source %s, got %s", flagSource, cfg.Paths.Source)
	}
	if cfg.Paths.Replica != replica {
		t.Errorf("expected file replica %s, got %s", replica, cfg.Paths.Replica)
	}
	if cfg.Sync.IntervalSeconds != 90 {
		t.Errorf("expected flag interval 90, got %d", cfg.Sync.IntervalSeconds)
	}
}

func TestLoadConfig_FlagsOnly(t *testing.T) {
	saveGlobals(t)

	cfgFile = ""
	sourceDir = t.TempDir()
	replicaDir = t.TempDir()
	intervalSec = 0

	cfg, err := loadConfig(errorLogger())
	if err != nil {
		t.Fatalf("loadConfig returned error: %v", err)
	}
	if cfg.Sync.Workers < 1 {
		t.Errorf("expected defaulted workers, got %d", cfg.Sync.Workers)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	saveGlobals(t)

	cfgFile = filepath.Join(t.TempDir(), "nonexistent.yaml")

	_, err := loadConfig(errorLogger())
	if err == nil {
		t.Fatal("expected error for missing config file, got nil")
	}
}

func TestLoadConfig_InvalidConfig(t *testing.T) {
	saveGlobals(t)

	// No paths at all: validation must reject.
	cfgFile = ""
	sourceDir = ""
	replicaDir = ""

	_, err := loadConfig(errorLogger())
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	if !strings.Contains(err.Error(), "invalid configuration") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSetupSignalHandler(t *testing.T) {
	ctx, cancel := setupSignalHandler()
	if ctx == nil {
		t.Fatal("setupSignalHandler returned nil context")
	}

	cancel()

	<-ctx.Done()
	if err := ctx.Err(); err == nil {
		t.Fatal("expected context error after cancel, got nil")
	}
}

func TestVersionCmd(t *testing.T) {
	// versionCmd.Run simply prints version info; should not panic.
	versionCmd.Run(versionCmd, []string{})
}
