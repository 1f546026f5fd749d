package main

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func TestParseFlags_Defaults(t *testing.T) {
	cfg, err := parseFlags(newFlagSet(), nil)
	require.NoError(t, err)

	assert.Empty(t, cfg.ConfigPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.NoError(t, validateFlags(cfg))
}

func TestParseFlags_DebugForcesDebugLevel(t *testing.T) {
	cfg, err := parseFlags(newFlagSet(), []string{"--debug", "--log-level=warn", "--log-format=text"})
	require.NoError(t, err)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestParseFlags_EnvFallback(t *testing.T) {
	t.Setenv("EVENTSCOPE_LOG_LEVEL", "warn")
	t.Setenv("EVENTSCOPE_SHUTDOWN_TIMEOUT", "3s")

	cfg, err := parseFlags(newFlagSet(), nil)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
}

func TestValidateFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lab.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stream: {}\n"), 0o600))

	tests := []struct {
		name    string
		cfg     CLIConfig
		wantErr bool
	}{
		{"existing config", CLIConfig{ConfigPath: path, LogLevel: "info", LogFormat: "json", ShutdownTimeout: time.Second}, false},
		{"missing config", CLIConfig{ConfigPath: path + ".gone", LogLevel: "info", LogFormat: "json", ShutdownTimeout: time.Second}, true},
		{"bad level", CLIConfig{LogLevel: "trace", LogFormat: "json", ShutdownTimeout: time.Second}, true},
		{"bad format", CLIConfig{LogLevel: "info", LogFormat: "xml", ShutdownTimeout: time.Second}, true},
		{"zero timeout", CLIConfig{LogLevel: "info", LogFormat: "json"}, true},
		{"version skips checks", CLIConfig{ShowVersion: true, LogLevel: "trace"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFlags(&tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRun_VersionAndValidate(t *testing.T) {
	assert.NoError(t, run([]string{"--version"}))

	path := filepath.Join(t.TempDir(), "lab.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"stream": {"event_capacity": 1000}}`), 0o600))
	assert.NoError(t, run([]string{"--config", path, "--validate", "--log-level=error"}))

	require.NoError(t, os.WriteFile(path, []byte(`{"stream": {"event_capacity": 0}}`), 0o600))
	assert.Error(t, run([]string{"--config", path, "--validate", "--log-level=error"}))
}
