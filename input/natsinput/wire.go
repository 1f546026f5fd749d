package natsinput

import (
	"fmt"
	"image"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/c360/eventscope/errors"
	"github.com/c360/eventscope/pkg/eventstream"
)

// Batch is the wire message.
type Batch struct {
	Source string      `msgpack:"source,omitempty"`
	Events []WireEvent `msgpack:"events,omitempty"`
	Frames []WireFrame `msgpack:"frames,omitempty"`
}

// WireEvent is one event on the wire.
type WireEvent struct {
	X int32 `msgpack:"x"`
	Y int32 `msgpack:"y"`
	T int64 `msgpack:"t"`
	P uint8 `msgpack:"p"`
}

// WireFrame is one grayscale frame on the wire.
type WireFrame struct {
	T      int64  `msgpack:"t"`
	Width  int    `msgpack:"w"`
	Height int    `msgpack:"h"`
	Pixels []byte `msgpack:"px"`
}

// Encode marshals a batch.
func Encode(b Batch) ([]byte, error) {
	data, err := msgpack.Marshal(&b)
	if err != nil {
		return nil, errors.WrapInvalid(err, "natsinput", "Encode", "marshal batch")
	}
	return data, nil
}

// Decode unmarshals a batch.
func Decode(data []byte) (Batch, error) {
	var b Batch
	if err := msgpack.Unmarshal(data, &b); err != nil {
		return Batch{}, errors.WrapInvalid(errors.ErrParsingFailed, "natsinput", "Decode",
			fmt.Sprintf("unmarshal batch: %v", err))
	}
	return b, nil
}

// EventFromWire converts a wire event.
func EventFromWire(w WireEvent) eventstream.Event {
	return eventstream.Event{X: w.X, Y: w.Y, Timestamp: w.T, Polarity: w.P}
}

// EventToWire converts an event for publishing.
func EventToWire(e eventstream.Event) WireEvent {
	return WireEvent{X: e.X, Y: e.Y, T: e.Timestamp, P: e.Polarity}
}

// MaxFrameDimension bounds frame width and height on the wire.
const MaxFrameDimension = 1 << 15

// FrameFromWire builds a grayscale frame.
func FrameFromWire(w WireFrame) (eventstream.Frame, error) {
	if w.Width <= 0 || w.Height <= 0 || w.Width > MaxFrameDimension || w.Height > MaxFrameDimension ||
		len(w.Pixels) != w.Width*w.Height {
		return eventstream.Frame{}, errors.WrapInvalid(errors.ErrInvalidData, "natsinput", "FrameFromWire",
			fmt.Sprintf("frame %dx%d with %d pixels", w.Width, w.Height, len(w.Pixels)))
	}
	img := &image.Gray{
		Pix:    w.Pixels,
		Stride: w.Width,
		Rect:   image.Rect(0, 0, w.Width, w.Height),
	}
	return eventstream.Frame{Image: img, Timestamp: w.T}, nil
}

// FrameToWire flattens a frame to grayscale.
func FrameToWire(f eventstream.Frame) WireFrame {
	if f.Image == nil {
		return WireFrame{T: f.Timestamp}
	}
	b := f.Image.Bounds()
	gray, ok := f.Image.(*image.Gray)
	if !ok || gray.Stride != b.Dx() || b.Min != (image.Point{}) {
		gray = image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				gray.Set(x, y, f.Image.At(b.Min.X+x, b.Min.Y+y))
			}
		}
	}
	return WireFrame{T: f.Timestamp, Width: b.Dx(), Height: b.Dy(), Pixels: gray.Pix}
}
