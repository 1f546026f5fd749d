// Package websocket serves window snapshots to renderer clients and accepts
// scrubber control messages from them.
//
// Every message in either direction is a JSON envelope:
//
//	{"type": "window", "id": "msg-1700000000000-1", "timestamp": 1700000000000, "payload": {...}}
//
// Outbound types:
//
//   - "window": one session.Snapshot per tick, sent by Publish
//   - "params": the playback keys of the parameter store, sent on connect and
//     whenever a playback key changes
//   - "error": the reply to a rejected inbound message; payload carries the
//     offending message id and a description
//
// Inbound types:
//
//   - "control": payload {"key": "playback.mode", "value": "paused"}. Only the
//     playback keys listed in window.WritableKeys are accepted, and the value
//     must decode to the kind already stored under the key.
//   - "select_source": payload {"source": "camera-1"}, forwarded to the
//     configured SourceSelector.
//
// Unknown inbound types are ignored.
//
// Output implements session.Sink, so it can be handed straight to
// session.Run:
//
//	out, err := websocket.New(websocket.DefaultConfig(), store,
//	    websocket.WithSourceSelector(sess.SelectSource))
//	if err != nil {
//	    return err
//	}
//	if err := out.Start(ctx); err != nil {
//	    return err
//	}
//	defer out.Stop(5 * time.Second)
//	return sess.Run(ctx, 33*time.Millisecond, out)
//
// Writes to a connection are serialised by a per-client mutex because
// gorilla/websocket does not allow concurrent writers.
package websocket
