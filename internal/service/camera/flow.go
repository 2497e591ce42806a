package camera

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image/jpeg"
	"io"
	"net/http"
	"strings"
	"sync"

	"storefront/internal/domain"

	"go.uber.org/zap"
)

const (
	msgCameraDenied      = "无法访问相机，请确保已授权相机权限"
	msgCameraUnsupported = "您的浏览器不支持相机功能"
	msgNotAnImage        = "请选择图片文件"
	msgImageTooLarge     = "图片文件过大"

	jpegQuality          = 92
	defaultMaxUploadSize = 10 << 20
)

var (
	// ErrDiscarded is returned when the modal closed, or a newer task
	// started, while acquisition or a file read was in flight.
	ErrDiscarded = errors.New("camera task discarded")
	// ErrInvalidState rejects an action that the current state does not allow.
	ErrInvalidState = errors.New("invalid camera state")
)

// State of the capture flow.
type State string

const (
	Idle       State = "idle"
	Previewing State = "previewing"
	Captured   State = "captured"
)

// Image is a frozen still, either captured from the stream or uploaded.
type Image struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// DataURL renders the image for an <img src>.
func (i Image) DataURL() string {
	return "data:" + i.MIME + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// View is the camera panel as rendered.
type View struct {
	State          State  `json:"state"`
	Pending        bool   `json:"pending"`
	PreviewVisible bool   `json:"previewVisible"`
	ImageVisible   bool   `json:"imageVisible"`
	CaptureButton  bool   `json:"captureButton"`
	RetakeButton   bool   `json:"retakeButton"`
	SearchButton   bool   `json:"searchButton"`
	StreamActive   bool   `json:"streamActive"`
	LiveTracks     int    `json:"liveTracks"`
	ImageDataURL   string `json:"imageDataUrl,omitempty"`
}

// Flow owns the single camera stream of a page and walks it through
// Idle -> Previewing -> Captured. Acquisition and file reads run without the
// lock held; each is tagged with a generation so that Teardown can invalidate
// a late result.
type Flow struct {
	mu        sync.Mutex
	device    Device
	logger    *zap.Logger
	state     State
	stream    Stream
	image     *Image
	gen       uint64
	cancel    context.CancelFunc
	maxUpload int64
}

func NewFlow(device Device, logger *zap.Logger) *Flow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Flow{
		device:    device,
		logger:    logger,
		state:     Idle,
		maxUpload: defaultMaxUploadSize,
	}
}

// Arm returns the current generation. A later OpenArmed with it is
// discarded if Teardown ran in between.
func (f *Flow) Arm() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gen
}

// Open starts the preview. Calling it while already previewing is a no-op.
func (f *Flow) Open(ctx context.Context) error {
	return f.OpenArmed(ctx, f.Arm())
}

// OpenArmed is Open for a generation taken with Arm. It returns ErrDiscarded
// when the flow was torn down, or another task started, since then.
func (f *Flow) OpenArmed(ctx context.Context, armed uint64) error {
	f.mu.Lock()
	if f.gen != armed {
		f.mu.Unlock()
		return ErrDiscarded
	}
	switch f.state {
	case Previewing:
		f.mu.Unlock()
		return nil
	case Captured:
		f.mu.Unlock()
		return ErrInvalidState
	}
	f.mu.Unlock()
	return f.acquire(ctx, armed)
}

// Retake drops the still and asks for a fresh stream.
func (f *Flow) Retake(ctx context.Context) error {
	f.mu.Lock()
	if f.state != Captured {
		f.mu.Unlock()
		return ErrInvalidState
	}
	f.image = nil
	f.state = Idle
	armed := f.gen
	f.mu.Unlock()
	return f.acquire(ctx, armed)
}

func (f *Flow) acquire(ctx context.Context, armed uint64) error {
	f.mu.Lock()
	if f.gen != armed {
		f.mu.Unlock()
		return ErrDiscarded
	}
	if f.device == nil {
		f.mu.Unlock()
		f.logger.Warn("camera unavailable", zap.Error(ErrUnsupported))
		return domain.Permission(msgCameraUnsupported, ErrUnsupported)
	}
	gen, taskCtx := f.beginLocked(ctx)
	device := f.device
	f.mu.Unlock()

	stream, err := device.Acquire(taskCtx, DefaultConstraints)

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.finishLocked(gen) {
		if stream != nil {
			stream.Stop()
		}
		return ErrDiscarded
	}
	if err != nil {
		f.logger.Warn("camera access failed", zap.Error(err))
		if errors.Is(err, ErrUnsupported) {
			return domain.Permission(msgCameraUnsupported, err)
		}
		return domain.Permission(msgCameraDenied, err)
	}
	f.stream = stream
	f.state = Previewing
	return nil
}

// Capture freezes the current frame as a JPEG and releases the stream.
func (f *Flow) Capture() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != Previewing || f.stream == nil {
		return ErrInvalidState
	}
	frame, err := f.stream.Frame()
	if err != nil {
		return fmt.Errorf("read frame: %w", err)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	b := frame.Bounds()
	f.image = &Image{Data: buf.Bytes(), MIME: "image/jpeg", Width: b.Dx(), Height: b.Dy()}
	f.stopStreamLocked()
	f.state = Captured
	return nil
}

// Upload takes the file-picker path: the whole file becomes the still,
// without a stream ever being opened. A live stream is released.
func (f *Flow) Upload(ctx context.Context, r io.Reader) error {
	f.mu.Lock()
	gen, taskCtx := f.beginLocked(ctx)
	limit := f.maxUpload
	f.mu.Unlock()

	data, readErr := readAll(taskCtx, io.LimitReader(r, limit+1))

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.finishLocked(gen) {
		return ErrDiscarded
	}
	if readErr != nil {
		return fmt.Errorf("read upload: %w", readErr)
	}
	if int64(len(data)) > limit {
		return domain.Validation(msgImageTooLarge)
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return domain.Validation(msgNotAnImage)
	}
	f.stopStreamLocked()
	f.image = &Image{Data: data, MIME: mime}
	f.state = Captured
	return nil
}

// Teardown returns to Idle: any in-flight task is cancelled and its result
// will be discarded, the stream is stopped and the still dropped.
func (f *Flow) Teardown() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gen++
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	f.stopStreamLocked()
	f.image = nil
	f.state = Idle
}

// Image returns the still when captured.
func (f *Flow) Image() (Image, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != Captured || f.image == nil {
		return Image{}, false
	}
	return *f.image, true
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Flow) View() View {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := View{
		State:          f.state,
		Pending:        f.cancel != nil,
		PreviewVisible: f.state == Previewing,
		ImageVisible:   f.state == Captured,
		CaptureButton:  f.state != Captured,
		RetakeButton:   f.state == Captured,
		SearchButton:   f.state == Captured,
	}
	if f.stream != nil {
		v.StreamActive = f.stream.Active()
		v.LiveTracks = f.stream.LiveTracks()
	}
	if f.state == Captured && f.image != nil {
		v.ImageDataURL = f.image.DataURL()
	}
	return v
}

// beginLocked supersedes any in-flight task and starts a new generation.
func (f *Flow) beginLocked(ctx context.Context) (uint64, context.Context) {
	if f.cancel != nil {
		f.cancel()
	}
	f.gen++
	taskCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	return f.gen, taskCtx
}

// finishLocked reports whether the task of generation gen is still current
// and clears its cancel func if so.
func (f *Flow) finishLocked(gen uint64) bool {
	if gen != f.gen {
		return false
	}
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	return true
}

func (f *Flow) stopStreamLocked() {
	if f.stream != nil {
		f.stream.Stop()
		f.stream = nil
	}
}

func readAll(ctx context.Context, r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	chunk := make([]byte, 32<<10)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := r.Read(chunk)
		buf.Write(chunk[:n])
		if errors.Is(err, io.EOF) {
			return buf.Bytes(), nil
		}
		if err != nil {
			return nil, err
		}
	}
}
