package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360/eventscope/config"
	"github.com/c360/eventscope/errors"
	"github.com/c360/eventscope/input/natsinput"
	"github.com/c360/eventscope/input/synthetic"
	"github.com/c360/eventscope/metric"
	"github.com/c360/eventscope/natsclient"
	"github.com/c360/eventscope/output/websocket"
	"github.com/c360/eventscope/pkg/eventstream"
	"github.com/c360/eventscope/pkg/paramstore"
	"github.com/c360/eventscope/pkg/retry"
	"github.com/c360/eventscope/pkg/window"
	"github.com/c360/eventscope/session"
)

// app owns every long-lived component of one process.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *metric.MetricsRegistry

	stream  *eventstream.Stream
	store   *paramstore.Store
	session *session.Session

	generator  *synthetic.Generator
	natsClient *natsclient.Client
	natsInput  *natsinput.Input

	ws            *websocket.Output
	metricsServer *metric.Server
	metricsErr    chan error
}

// newApp builds the component graph without starting anything.
func newApp(cfg *config.Config, strict bool, logger *slog.Logger) (*app, error) {
	a := &app{
		cfg:        cfg,
		logger:     logger,
		registry:   metric.NewMetricsRegistry(),
		store:      paramstore.New(),
		metricsErr: make(chan error, 1),
	}

	policy, err := eventstream.ParseResetPolicy(cfg.Stream.ResetPolicy)
	if err != nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "app", "newApp", err.Error())
	}
	a.stream, err = eventstream.New(
		eventstream.WithEventCapacity(cfg.Stream.EventCapacity),
		eventstream.WithFrameCapacity(cfg.Stream.FrameCapacity),
		eventstream.WithWatermarks(cfg.Stream.HighWatermark, cfg.Stream.LowWatermark),
		eventstream.WithResetPolicy(policy),
		eventstream.WithReorderTolerance(cfg.Stream.ReorderTolerance),
		eventstream.WithLogger(logger),
		eventstream.WithMetrics(a.registry, "main"),
	)
	if err != nil {
		return nil, err
	}

	defaults, err := playbackDefaults(cfg.Playback)
	if err != nil {
		return nil, err
	}
	controller := window.NewController(a.store,
		window.WithStrict(strict),
		window.WithDefaults(defaults),
		window.WithLogger(logger),
	)

	source := cfg.Inputs.Synthetic.Source
	if cfg.Inputs.Source == config.SourceNATS {
		source = cfg.Inputs.NATS.Subject
	}
	a.session, err = session.New(a.stream, a.store, controller,
		session.WithMaxEvents(cfg.Session.MaxEvents),
		session.WithSource(source),
		session.WithLogger(logger),
		session.WithMetrics(a.registry),
	)
	if err != nil {
		return nil, err
	}

	if err := a.buildInput(); err != nil {
		return nil, err
	}

	if cfg.Outputs.WebSocket.Enabled {
		a.ws, err = websocket.New(cfg.Outputs.WebSocket.Config, a.store,
			websocket.WithLogger(logger),
			websocket.WithMetrics(a.registry),
			websocket.WithSourceSelector(a.session.SelectSource),
		)
		if err != nil {
			return nil, err
		}
	}

	if cfg.Metrics.Enabled {
		a.metricsServer = metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, a.registry)
	}
	return a, nil
}

func (a *app) buildInput() error {
	switch a.cfg.Inputs.Source {
	case config.SourceNATS:
		nc := a.cfg.Inputs.NATS
		opts := []natsclient.ClientOption{
			natsclient.WithMaxReconnects(nc.MaxReconnects),
			natsclient.WithReconnectWait(nc.ReconnectWait),
			natsclient.WithLogger(a.logger),
			natsclient.WithRetry(retry.Quick()),
			natsclient.WithHealthChangeCallback(func(healthy bool) {
				status := metric.StatusRunning
				if !healthy {
					status = metric.StatusFailed
				}
				a.registry.CoreMetrics().RecordComponentStatus("nats", status)
			}),
		}
		if nc.Name != "" {
			opts = append(opts, natsclient.WithName(nc.Name))
		}
		if nc.Token != "" {
			opts = append(opts, natsclient.WithToken(nc.Token))
		}
		if nc.Username != "" {
			opts = append(opts, natsclient.WithCredentials(nc.Username, nc.Password))
		}

		client, err := natsclient.NewClient(nc.URL, opts...)
		if err != nil {
			return err
		}
		a.natsClient = client
		a.natsInput, err = natsinput.New(natsinput.Config{Subject: nc.Subject, QueueSize: nc.QueueSize}, client, a.stream,
			natsinput.WithLogger(a.logger),
			natsinput.WithSourceChange(a.session.SelectSource),
			natsinput.WithMetrics(a.registry),
		)
		return err
	default:
		gen, err := synthetic.New(a.cfg.Inputs.Synthetic, a.stream, a.logger)
		if err != nil {
			return err
		}
		a.generator = gen
		return nil
	}
}

func playbackDefaults(p config.PlaybackConfig) (window.State, error) {
	st := window.DefaultState()
	var err error
	if st.Domain, err = window.ParseDomain(p.Domain); err != nil {
		return st, errors.WrapInvalid(errors.ErrInvalidConfig, "app", "playbackDefaults", err.Error())
	}
	if st.Mode, err = window.ParseMode(p.Mode); err != nil {
		return st, errors.WrapInvalid(errors.ErrInvalidConfig, "app", "playbackDefaults", err.Error())
	}
	st.IndexStep, st.IndexWindow = p.IndexStep, p.IndexWindow
	st.TimeStep, st.TimeWindow = p.TimeStep, p.TimeWindow
	return st, nil
}

// start brings components up in dependency order: outputs first so that no
// snapshot is lost, then the producer.
func (a *app) start(ctx context.Context) error {
	core := a.registry.CoreMetrics()

	if a.metricsServer != nil {
		go func() {
			if err := a.metricsServer.Start(); err != nil {
				a.metricsErr <- err
			}
		}()
		a.logger.Info("Metrics server starting", "address", a.metricsServer.Address())
	}

	if a.ws != nil {
		core.RecordComponentStatus("websocket", metric.StatusStarting)
		if err := a.ws.Start(ctx); err != nil {
			core.RecordComponentStatus("websocket", metric.StatusFailed)
			return err
		}
		core.RecordComponentStatus("websocket", metric.StatusRunning)
	}

	switch {
	case a.natsClient != nil:
		core.RecordComponentStatus("nats", metric.StatusStarting)
		if err := a.natsClient.Connect(ctx); err != nil {
			core.RecordComponentStatus("nats", metric.StatusFailed)
			return fmt.Errorf("connect to NATS: %w", err)
		}
		connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := a.natsClient.WaitForConnection(connCtx); err != nil {
			return fmt.Errorf("NATS connection timeout: %w", err)
		}
		if rtt, err := a.natsClient.RTT(); err == nil {
			a.logger.Info("Connected to NATS", "url", a.natsClient.URL(), "rtt", rtt)
		}
		if err := a.natsInput.Start(ctx); err != nil {
			return err
		}
		core.RecordComponentStatus("nats", metric.StatusRunning)
	case a.generator != nil:
		if err := a.generator.Start(ctx); err != nil {
			return err
		}
		core.RecordComponentStatus("synthetic", metric.StatusRunning)
	}
	return nil
}

// run drives the session until ctx ends or a component fails.
func (a *app) run(ctx context.Context) error {
	var sinks []session.Sink
	if a.ws != nil {
		sinks = append(sinks, a.ws)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.session.Run(gctx, a.cfg.Session.TickInterval, sinks...)
	})
	g.Go(func() error {
		select {
		case err := <-a.metricsErr:
			return errors.Wrap(err, "app", "run", "metrics server")
		case <-gctx.Done():
			return nil
		}
	})
	return g.Wait()
}

// stop tears components down in reverse order of start.
func (a *app) stop(timeout time.Duration) error {
	core := a.registry.CoreMetrics()
	var errs []error

	if a.generator != nil {
		errs = append(errs, a.generator.Stop(timeout))
		core.RecordComponentStatus("synthetic", metric.StatusStopped)
	}
	if a.natsClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		errs = append(errs, a.natsClient.Close(ctx))
		cancel()
		errs = append(errs, a.natsInput.Stop(timeout))
		core.RecordComponentStatus("nats", metric.StatusStopped)
	}
	if a.ws != nil {
		core.RecordComponentStatus("websocket", metric.StatusStopping)
		errs = append(errs, a.ws.Stop(timeout))
		core.RecordComponentStatus("websocket", metric.StatusStopped)
	}
	if a.metricsServer != nil {
		errs = append(errs, a.metricsServer.Stop(timeout))
	}

	stats := a.stream.Stats().Summary()
	a.logger.Info("Stream totals", "stats", stats)
	return errors.Join(errs...)
}
