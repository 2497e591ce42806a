package camera

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"storefront/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// gatedDevice blocks Acquire until release is closed.
type gatedDevice struct {
	started chan struct{}
	release chan struct{}
	stream  *simulatedStream
	err     error
}

func newGatedDevice() *gatedDevice {
	return &gatedDevice{
		started: make(chan struct{}),
		release: make(chan struct{}),
		stream:  &simulatedStream{width: 4, height: 4, tracks: 1},
	}
}

func (d *gatedDevice) Acquire(_ context.Context, _ Constraints) (Stream, error) {
	close(d.started)
	<-d.release
	if d.err != nil {
		return nil, d.err
	}
	return d.stream, nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestCaptureTransitionTable(t *testing.T) {
	dev := NewSimulatedDevice(ModeReady)
	f := NewFlow(dev, nil)
	ctx := context.Background()

	assert.Equal(t, Idle, f.State())
	require.NoError(t, f.Open(ctx))
	assert.Equal(t, Previewing, f.State())
	assert.Equal(t, 1, dev.LiveStreams())

	require.NoError(t, f.Capture())
	assert.Equal(t, Captured, f.State())
	assert.Equal(t, 0, dev.LiveStreams(), "capture must release the stream")

	img, ok := f.Image()
	require.True(t, ok)
	assert.Equal(t, "image/jpeg", img.MIME)
	assert.Equal(t, 640, img.Width)
	assert.Equal(t, 480, img.Height)
	assert.True(t, strings.HasPrefix(img.DataURL(), "data:image/jpeg;base64,"))

	require.NoError(t, f.Retake(ctx))
	assert.Equal(t, Previewing, f.State())
	_, ok = f.Image()
	assert.False(t, ok, "retake discards the still")

	f.Teardown()
	assert.Equal(t, Idle, f.State())
	assert.Equal(t, 0, dev.LiveStreams())
}

func TestInvalidTransitions(t *testing.T) {
	f := NewFlow(NewSimulatedDevice(ModeReady), nil)
	ctx := context.Background()

	assert.ErrorIs(t, f.Capture(), ErrInvalidState)
	assert.ErrorIs(t, f.Retake(ctx), ErrInvalidState)

	require.NoError(t, f.Open(ctx))
	require.NoError(t, f.Open(ctx), "open while previewing is a no-op")
	assert.ErrorIs(t, f.Retake(ctx), ErrInvalidState)

	require.NoError(t, f.Capture())
	assert.ErrorIs(t, f.Open(ctx), ErrInvalidState)
	assert.ErrorIs(t, f.Capture(), ErrInvalidState)
}

func TestOpenFailuresStayIdle(t *testing.T) {
	cases := []struct {
		name string
		dev  Device
		msg  string
	}{
		{"denied", NewSimulatedDevice(ModeDenied), msgCameraDenied},
		{"unavailable", NewSimulatedDevice(ModeUnavailable), msgCameraUnsupported},
		{"no device", nil, msgCameraUnsupported},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := NewFlow(tc.dev, nil)
			err := f.Open(context.Background())
			ue, ok := domain.AsUserError(err)
			require.True(t, ok, "expected user error, got %v", err)
			assert.Equal(t, domain.KindPermission, ue.Kind)
			assert.Equal(t, tc.msg, ue.Message)
			assert.Equal(t, Idle, f.State())
			assert.False(t, f.View().Pending)
		})
	}
}

func TestTeardownDuringAcquireDiscardsLateStream(t *testing.T) {
	defer goleak.VerifyNone(t)

	dev := newGatedDevice()
	f := NewFlow(dev, nil)

	done := make(chan error, 1)
	go func() { done <- f.Open(context.Background()) }()

	<-dev.started
	assert.True(t, f.View().Pending)
	f.Teardown()
	close(dev.release)

	err := <-done
	assert.True(t, errors.Is(err, ErrDiscarded), "got %v", err)
	assert.Equal(t, Idle, f.State())
	assert.False(t, dev.stream.Active(), "late stream must be stopped")
	assert.Equal(t, 0, dev.stream.LiveTracks())
}

func TestTeardownBeforeArmedOpenDiscards(t *testing.T) {
	dev := NewSimulatedDevice(ModeReady)
	f := NewFlow(dev, nil)

	armed := f.Arm()
	f.Teardown()

	err := f.OpenArmed(context.Background(), armed)
	assert.True(t, errors.Is(err, ErrDiscarded), "got %v", err)
	assert.Equal(t, Idle, f.State())
	assert.Zero(t, dev.LiveStreams(), "no stream may be acquired after teardown")

	require.NoError(t, f.OpenArmed(context.Background(), f.Arm()))
	assert.Equal(t, Previewing, f.State())
	f.Teardown()
}

func TestTeardownStopsActiveStream(t *testing.T) {
	dev := newGatedDevice()
	close(dev.release)
	f := NewFlow(dev, nil)
	require.NoError(t, f.Open(context.Background()))

	v := f.View()
	assert.True(t, v.StreamActive)
	assert.Equal(t, 1, v.LiveTracks)

	f.Teardown()
	assert.False(t, dev.stream.Active())
	v = f.View()
	assert.False(t, v.StreamActive)
	assert.Equal(t, 0, v.LiveTracks)
}

func TestUploadSkipsCamera(t *testing.T) {
	dev := NewSimulatedDevice(ModeReady)
	f := NewFlow(dev, nil)

	require.NoError(t, f.Upload(context.Background(), bytes.NewReader(pngBytes(t))))
	assert.Equal(t, Captured, f.State())
	assert.Equal(t, 0, dev.LiveStreams())

	img, ok := f.Image()
	require.True(t, ok)
	assert.Equal(t, "image/png", img.MIME)

	v := f.View()
	assert.True(t, v.ImageVisible)
	assert.False(t, v.PreviewVisible)
	assert.False(t, v.CaptureButton)
	assert.True(t, v.RetakeButton)
	assert.True(t, v.SearchButton)
	assert.True(t, strings.HasPrefix(v.ImageDataURL, "data:image/png;base64,"))
}

func TestUploadReleasesLiveStream(t *testing.T) {
	dev := NewSimulatedDevice(ModeReady)
	f := NewFlow(dev, nil)
	require.NoError(t, f.Open(context.Background()))
	require.NoError(t, f.Upload(context.Background(), bytes.NewReader(pngBytes(t))))
	assert.Equal(t, 0, dev.LiveStreams())
}

func TestUploadValidation(t *testing.T) {
	f := NewFlow(nil, nil)
	err := f.Upload(context.Background(), strings.NewReader("plain text, not a picture"))
	ue, ok := domain.AsUserError(err)
	require.True(t, ok)
	assert.Equal(t, msgNotAnImage, ue.Message)
	assert.Equal(t, Idle, f.State())

	f.maxUpload = 8
	err = f.Upload(context.Background(), bytes.NewReader(pngBytes(t)))
	ue, ok = domain.AsUserError(err)
	require.True(t, ok)
	assert.Equal(t, msgImageTooLarge, ue.Message)
}

// blockingReader blocks its first Read until release is closed.
type blockingReader struct {
	started chan struct{}
	release chan struct{}
	data    *bytes.Reader
	once    bool
}

func (r *blockingReader) Read(p []byte) (int, error) {
	if !r.once {
		r.once = true
		close(r.started)
		<-r.release
	}
	return r.data.Read(p)
}

func TestTeardownDuringUploadDiscardsResult(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := NewFlow(NewSimulatedDevice(ModeReady), nil)
	r := &blockingReader{started: make(chan struct{}), release: make(chan struct{}), data: bytes.NewReader(pngBytes(t))}

	done := make(chan error, 1)
	go func() { done <- f.Upload(context.Background(), r) }()

	<-r.started
	f.Teardown()
	close(r.release)

	assert.ErrorIs(t, <-done, ErrDiscarded)
	assert.Equal(t, Idle, f.State())
	_, ok := f.Image()
	assert.False(t, ok)
}

func TestSimulatedDeviceHonoursContext(t *testing.T) {
	dev := NewSimulatedDevice(ModeReady)
	dev.Latency = 1 << 40
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := dev.Acquire(ctx, DefaultConstraints)
	assert.ErrorIs(t, err, context.Canceled)
}
