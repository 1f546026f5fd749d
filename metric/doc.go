// Package metric owns the Prometheus registry shared by eventscope components
// and the HTTP server that exposes it.
//
// Components never register with the global Prometheus registry. They receive a
// *MetricsRegistry and register their collectors under a component name, which
// lets several streams or sessions coexist in one process as long as their
// collectors carry distinct const labels:
//
//	registry := metric.NewMetricsRegistry()
//	stream := eventstream.New(eventstream.WithMetrics(registry, "camera0"))
//
//	server := metric.NewServer(9090, "/metrics", registry)
//	go server.Start()
//
// A nil registry disables metrics everywhere it is accepted.
package metric
