package camera

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"time"
)

var (
	ErrPermissionDenied = errors.New("camera permission denied")
	ErrUnsupported      = errors.New("camera api unavailable")
	ErrStreamStopped    = errors.New("stream stopped")
)

// Constraints describe the stream requested from the device.
type Constraints struct {
	FacingMode  string
	IdealWidth  int
	IdealHeight int
}

// DefaultConstraints asks for the rear camera at 640x480.
var DefaultConstraints = Constraints{
	FacingMode:  "environment",
	IdealWidth:  640,
	IdealHeight: 480,
}

// Device hands out live video streams.
type Device interface {
	Acquire(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is a live video stream. Stop ends every track; a stopped stream is
// no longer active and reports zero live tracks.
type Stream interface {
	Frame() (image.Image, error)
	Active() bool
	LiveTracks() int
	Stop()
}

// Mode selects how the simulated device answers.
type Mode string

const (
	ModeReady       Mode = "simulated"
	ModeDenied      Mode = "denied"
	ModeUnavailable Mode = "unavailable"
)

// SimulatedDevice renders a moving test pattern instead of talking to
// hardware.
type SimulatedDevice struct {
	Mode    Mode
	Latency time.Duration

	mu     sync.Mutex
	issued []*simulatedStream
}

func NewSimulatedDevice(mode Mode) *SimulatedDevice {
	if mode == "" {
		mode = ModeReady
	}
	return &SimulatedDevice{Mode: mode}
}

func (d *SimulatedDevice) Acquire(ctx context.Context, c Constraints) (Stream, error) {
	if d.Latency > 0 {
		timer := time.NewTimer(d.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	switch d.Mode {
	case ModeDenied:
		return nil, ErrPermissionDenied
	case ModeUnavailable:
		return nil, ErrUnsupported
	}
	w, h := c.IdealWidth, c.IdealHeight
	if w <= 0 || h <= 0 {
		w, h = DefaultConstraints.IdealWidth, DefaultConstraints.IdealHeight
	}
	s := &simulatedStream{width: w, height: h, tracks: 1}
	d.mu.Lock()
	d.issued = append(d.issued, s)
	d.mu.Unlock()
	return s, nil
}

// LiveStreams counts issued streams that were never stopped.
func (d *SimulatedDevice) LiveStreams() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, s := range d.issued {
		if s.Active() {
			n++
		}
	}
	return n
}

type simulatedStream struct {
	mu     sync.Mutex
	width  int
	height int
	tracks int
	frame  int
}

func (s *simulatedStream) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tracks == 0 {
		return nil, ErrStreamStopped
	}
	s.frame++
	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	for y := 0; y < s.height; y++ {
		for x := 0; x < s.width; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x + s.frame) * 255 / s.width),
				G: uint8(y * 255 / s.height),
				B: uint8(s.frame * 16),
				A: 0xff,
			})
		}
	}
	return img, nil
}

func (s *simulatedStream) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracks > 0
}

func (s *simulatedStream) LiveTracks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracks
}

func (s *simulatedStream) Stop() {
	s.mu.Lock()
	s.tracks = 0
	s.mu.Unlock()
}
