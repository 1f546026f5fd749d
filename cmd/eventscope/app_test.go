package main

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/c360/eventscope/config"
	"github.com/c360/eventscope/pkg/eventstream"
	"github.com/c360/eventscope/pkg/paramstore"
	"github.com/c360/eventscope/pkg/window"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Outputs.WebSocket.Port = 0
	cfg.Metrics.Enabled = false
	cfg.Session.TickInterval = 5 * time.Millisecond
	cfg.Inputs.Synthetic.Width = 64
	cfg.Inputs.Synthetic.Height = 48
	cfg.Inputs.Synthetic.EventRate = 20_000
	cfg.Inputs.Synthetic.BatchInterval = 5 * time.Millisecond
	return cfg
}

func TestApp_SyntheticLifecycle(t *testing.T) {
	a, err := newApp(testConfig(), false, quietLogger())
	require.NoError(t, err)
	require.NotNil(t, a.generator)
	require.NotNil(t, a.ws)
	assert.Nil(t, a.natsClient)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.start(ctx))

	runErr := make(chan error, 1)
	go func() { runErr <- a.run(ctx) }()

	require.Eventually(t, func() bool {
		return paramstore.GetOr(a.store, window.KeyWindowIndexMax, int64(0)) > 0
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-runErr:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after cancel")
	}
	assert.NoError(t, a.stop(2*time.Second))

	a.stream.Read(func(v *eventstream.View) {
		assert.Positive(t, v.EventCount())
	})
}

func TestApp_PlaybackDefaultsSeedStore(t *testing.T) {
	cfg := testConfig()
	cfg.Playback.Mode = "paused"
	cfg.Playback.Domain = "time"
	cfg.Playback.TimeWindow = 1234

	a, err := newApp(cfg, true, quietLogger())
	require.NoError(t, err)

	assert.Equal(t, "paused", paramstore.GetOr(a.store, window.KeyMode, ""))
	assert.Equal(t, "time", paramstore.GetOr(a.store, window.KeyDomain, ""))
	assert.Equal(t, 1234.0, paramstore.GetOr(a.store, window.KeyTimeWindow, 0.0))
}

func TestApp_NATSInputBuildsWithoutConnecting(t *testing.T) {
	cfg := testConfig()
	cfg.Inputs.Source = config.SourceNATS
	cfg.Inputs.NATS.URL = "nats://127.0.0.1:1"
	cfg.Inputs.NATS.Token = "secret"
	cfg.Outputs.WebSocket.Enabled = false

	a, err := newApp(cfg, false, quietLogger())
	require.NoError(t, err)
	assert.Nil(t, a.generator)
	assert.Nil(t, a.ws)
	require.NotNil(t, a.natsClient)
	require.NotNil(t, a.natsInput)
	assert.Equal(t, cfg.Inputs.NATS.Subject, a.session.Source())

	assert.NoError(t, a.stop(time.Second))
}

func TestPlaybackDefaults_Rejects(t *testing.T) {
	_, err := playbackDefaults(config.PlaybackConfig{Domain: "space", Mode: "latest"})
	assert.Error(t, err)
	_, err = playbackDefaults(config.PlaybackConfig{Domain: "time", Mode: "rewind"})
	assert.Error(t, err)
}
