package location

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"storefront/internal/domain"
)

var (
	ErrPermissionDenied    = errors.New("geolocation permission denied")
	ErrPositionUnavailable = errors.New("position unavailable")
	ErrTimeout             = errors.New("geolocation timeout")
	ErrUnsupported         = errors.New("geolocation unsupported")
)

const (
	msgDenied      = "用户拒绝定位请求"
	msgUnavailable = "位置信息不可用"
	msgTimeout     = "定位请求超时"
	msgUnsupported = "浏览器不支持定位"
	msgFailed      = "定位失败"
	msgLocating    = "正在定位..."
)

// DefaultCities is the pool the mock reverse geocoder draws from.
var DefaultCities = []string{"北京", "上海", "广州", "深圳", "杭州", "成都"}

// Position is a device fix.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Options mirror a one-shot geolocation request.
type Options struct {
	HighAccuracy bool
	Timeout      time.Duration
	MaximumAge   time.Duration
}

// DefaultOptions asks for a fresh high accuracy fix within ten seconds.
var DefaultOptions = Options{HighAccuracy: true, Timeout: 10 * time.Second}

// Locator resolves the device position.
type Locator interface {
	Locate(ctx context.Context, opts Options) (Position, error)
}

// Fix is a resolved location as shown on the page.
type Fix struct {
	City     string   `json:"city"`
	Position Position `json:"position"`
	Current  string   `json:"current"`
}

type Service struct {
	mu     sync.Mutex
	rng    *rand.Rand
	cities []string
	opts   Options
}

// New builds the service. rng is injected so tests can pin the city.
func New(rng *rand.Rand, cities []string) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if len(cities) == 0 {
		cities = DefaultCities
	}
	return &Service{rng: rng, cities: append([]string(nil), cities...), opts: DefaultOptions}
}

func (s *Service) Cities() []string {
	return append([]string(nil), s.cities...)
}

// Pending is the text shown while a request is outstanding.
func (s *Service) Pending() string {
	return msgLocating
}

// Locate runs one request against locator, bounded by the ten second
// timeout, and resolves the fix to a random city. There is no retry and no
// cached fallback.
func (s *Service) Locate(ctx context.Context, locator Locator) (Fix, error) {
	if locator == nil {
		return Fix{}, domain.Permission(msgUnsupported, ErrUnsupported)
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	pos, err := locator.Locate(ctx, s.opts)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		return Fix{}, domain.Permission(Message(err), err)
	}
	city := s.ReverseGeocode(pos)
	return Fix{
		City:     city,
		Position: pos,
		Current:  fmt.Sprintf("当前位置: %s (%.4f, %.4f)", city, pos.Latitude, pos.Longitude),
	}, nil
}

// ReverseGeocode picks a random city; the coordinates are not consulted.
func (s *Service) ReverseGeocode(_ Position) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cities[s.rng.Intn(len(s.cities))]
}

// Message maps a locate error to the text shown in the location panel.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return msgDenied
	case errors.Is(err, ErrPositionUnavailable):
		return msgUnavailable
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return msgTimeout
	case errors.Is(err, ErrUnsupported):
		return msgUnsupported
	default:
		return msgFailed
	}
}

// Reported is a Locator that replays what the browser already resolved.
type Reported struct {
	Position Position
	Err      error
}

func (r Reported) Locate(ctx context.Context, _ Options) (Position, error) {
	if err := ctx.Err(); err != nil {
		return Position{}, err
	}
	if r.Err != nil {
		return Position{}, r.Err
	}
	return r.Position, nil
}

// ParseErrorCode maps a browser error code to a locate error. Unknown
// non-empty codes map to a generic failure.
func ParseErrorCode(code string) error {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "":
		return nil
	case "permission_denied", "1":
		return ErrPermissionDenied
	case "position_unavailable", "2":
		return ErrPositionUnavailable
	case "timeout", "3":
		return ErrTimeout
	case "unsupported":
		return ErrUnsupported
	default:
		return fmt.Errorf("geolocation error %q", code)
	}
}
