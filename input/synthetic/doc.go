// Package synthetic generates a deterministic event camera stream for demos
// and tests. Events trace a blob orbiting the sensor centre; frames show the
// blob as a bright disc on a dark background.
//
// The generator keeps its own device clock in microseconds. It can perturb
// timestamps with backwards jitter and simulate a device restart by rewinding
// the clock, which exercises the stream's reset handling.
package synthetic
