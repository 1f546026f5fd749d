// Package eventscope buffers event-camera output and drives a playback window
// over it for live renderers.
//
// An event camera reports per-pixel brightness changes as a stream of events
// (x, y, timestamp, polarity), usually interleaved with conventional intensity
// frames at a much lower rate. eventscope keeps a bounded, time-ordered buffer
// of both and, on every render tick, decides which slice of that buffer a
// renderer should draw.
//
// # Architecture
//
//	┌───────────────────────────────┐
//	│ Producers                     │  input/synthetic: simulated sensor
//	│ (one goroutine each)          │  input/natsinput: msgpack batches over NATS
//	└──────────────┬────────────────┘
//	               ↓ InsertEvent / InsertFrame
//	┌───────────────────────────────┐
//	│ pkg/eventstream               │  ordered, bounded, reset-aware storage
//	│ (Acquire / Release views)     │  anchor, cull, statistics
//	└──────────────┬────────────────┘
//	               ↓ one view per tick
//	┌───────────────────────────────┐
//	│ session                       │  tick loop, source selection
//	│  + pkg/window controller      │  index/time domains, playback modes
//	│  + pkg/paramstore             │  typed key/value configuration bus
//	└──────────────┬────────────────┘
//	               ↓ Snapshot
//	┌───────────────────────────────┐
//	│ output/websocket              │  window snapshots out,
//	│                               │  scrubber control messages in
//	└───────────────────────────────┘
//
// # Packages
//
// Core:
//   - pkg/eventstream: event and frame sub-streams with reset policies and
//     watermark culling
//   - pkg/window: the playback window state machine
//   - pkg/paramstore: string-keyed store of int, float, bool and string values
//   - session: binds one stream, store and controller and runs the tick loop
//
// Producers and consumers:
//   - input/synthetic: deterministic simulated event camera
//   - input/natsinput: live device bridge decoding batches off a NATS subject
//   - output/websocket: renderer feed and remote scrubber
//
// Infrastructure:
//   - config: layered JSON/YAML configuration with schema validation
//   - errors: classified errors (transient, invalid, fatal)
//   - metric: Prometheus registry and HTTP endpoint
//   - natsclient: NATS connection management with retried connect
//   - pkg/retry: exponential backoff
//   - pkg/worker: bounded worker pool
//
// # Running
//
//	eventscope --config eventscope.yaml
//	eventscope --validate --config eventscope.yaml
//
// With no configuration file the synthetic producer runs at defaults and the
// WebSocket feed listens on :8081/ws.
package eventscope
