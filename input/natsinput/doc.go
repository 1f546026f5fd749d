// Package natsinput feeds an event stream from msgpack-encoded batches
// published on a NATS subject.
//
// Each message is one Batch. Events and frames are inserted in message order,
// so a producer that publishes sorted batches yields a sorted stream. A batch
// naming a different source than the previous one triggers the source change
// callback before any of its samples are inserted.
//
// Frames carry 8-bit grayscale pixels in row-major order; a frame whose pixel
// count does not match its dimensions is counted as a decode error and skipped.
package natsinput
