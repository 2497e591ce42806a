package session

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"sync"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository/catalog"
	"storefront/internal/service/camera"
	"storefront/internal/service/cart"
	"storefront/internal/service/detail"
	"storefront/internal/service/location"
	"storefront/internal/service/modal"
	"storefront/internal/service/search"

	"go.uber.org/zap"
)

const (
	msgAddedToCart = "已加入购物车"
	msgBuyNow      = "前往结算页面"
)

// Deps are the collaborators shared by every session.
type Deps struct {
	Device camera.Device
	Logger *zap.Logger
	// NewRand seeds the reverse geocoder of each session. Nil means time
	// seeded.
	NewRand func() *rand.Rand
}

// Session is the state of one open storefront page. Cart, search, detail,
// location and the alert are guarded by mu; the modal controller and the
// camera flow carry their own locks so that camera acquisition never runs
// under mu.
type Session struct {
	ID string

	mu       sync.Mutex
	logger   *zap.Logger
	cart     *cart.View
	modals   *modal.Controller
	camera   *camera.Flow
	search   *search.Service
	results  *search.Results
	detail   *detail.View
	location *location.Service
	cards    []domain.ProductCard

	locationLabel   string
	locationCurrent string
	locating        bool
	locateGen       uint64

	history []HistoryEntry
	now     func() time.Time

	alert string
}

// LocationView is the header label and the location panel.
type LocationView struct {
	Label   string   `json:"label"`
	Current string   `json:"current"`
	Pending bool     `json:"pending"`
	Cities  []string `json:"cities"`
}

// Page is everything the storefront renders for a session.
type Page struct {
	SessionID string               `json:"sessionId"`
	Cart      cart.State           `json:"cart"`
	Modal     modal.State          `json:"modal"`
	Camera    camera.View          `json:"camera"`
	Search    *search.Results      `json:"search,omitempty"`
	Detail    *detail.View         `json:"detail,omitempty"`
	Location  LocationView         `json:"location"`
	Cards     []domain.ProductCard `json:"cards"`
	History   []HistoryEntry       `json:"history"`
	Alert     string               `json:"alert,omitempty"`
}

// New builds a session from a catalog snapshot.
func New(id string, snap *catalog.Snapshot, deps Deps) (*Session, error) {
	if snap == nil {
		return nil, errors.New("catalog snapshot required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("session", id))

	view, err := cart.New(snap.Shops, snap.Lines)
	if err != nil {
		return nil, err
	}
	var rng *rand.Rand
	if deps.NewRand != nil {
		rng = deps.NewRand()
	}
	loc := location.New(rng, snap.Cities)

	s := &Session{
		ID:       id,
		logger:   logger,
		cart:     view,
		modals:   modal.New(logger.Named("modal")),
		camera:   camera.NewFlow(deps.Device, logger.Named("camera")),
		search:   search.New(),
		location: loc,
		cards:    append([]domain.ProductCard(nil), snap.Cards...),
		now:      time.Now,
	}
	s.locationLabel = loc.Cities()[0]
	s.modals.OnClose(modal.Camera, s.camera)
	return s, nil
}

// ToggleItem flips one cart line.
func (s *Session) ToggleItem(itemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alert = ""
	s.cart.ToggleItem(itemID)
}

// ToggleShop sets every line of a shop.
func (s *Session) ToggleShop(shopID string, checked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alert = ""
	s.cart.ToggleShop(shopID, checked)
}

// ToggleAll sets every line.
func (s *Session) ToggleAll(checked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alert = ""
	s.cart.ToggleAll(checked)
}

func (s *Session) Increment(itemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alert = ""
	s.cart.Increment(itemID)
}

func (s *Session) Decrement(itemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alert = ""
	s.cart.Decrement(itemID)
}

// UpdateCart applies a batch of cart actions.
func (s *Session) UpdateCart(in cart.UpdateInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alert = ""
	return s.cart.Apply(in)
}

// Checkout alerts either the rejection or the acknowledgement.
func (s *Session) Checkout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, err := s.cart.Checkout()
	if err != nil {
		return s.reportLocked(err)
	}
	s.alert = msg
	return nil
}

// OpenModal shows an overlay. The location panel starts no request from
// here; use Locate. The camera modal only opens through OpenCamera, which
// starts the preview with it.
func (s *Session) OpenModal(id string) {
	s.clearAlert()
	if id == modal.Camera {
		s.logger.Debug("camera modal opens through OpenCamera only")
		return
	}
	s.modals.Open(id)
}

func (s *Session) CloseModal(id string) {
	s.clearAlert()
	s.modals.Close(id)
}

// ClickBackdrop closes the modal when the click hit its backdrop.
func (s *Session) ClickBackdrop(id, targetID string) {
	s.clearAlert()
	s.modals.ClickBackdrop(id, targetID)
}

// OpenCamera shows the camera modal and starts the preview. The flow is
// armed before the modal opens, so a close at any point after that discards
// the acquisition and stops a late stream.
func (s *Session) OpenCamera(ctx context.Context) error {
	s.clearAlert()
	armed := s.camera.Arm()
	s.modals.Open(modal.Camera)
	return s.report(s.camera.OpenArmed(ctx, armed))
}

// Capture freezes the preview into a still.
func (s *Session) Capture() error {
	s.clearAlert()
	return s.report(s.camera.Capture())
}

// Retake drops the still and restarts the preview.
func (s *Session) Retake(ctx context.Context) error {
	s.clearAlert()
	return s.report(s.camera.Retake(ctx))
}

// Upload uses a picked file as the still.
func (s *Session) Upload(ctx context.Context, r io.Reader) error {
	s.clearAlert()
	s.modals.Open(modal.Camera)
	return s.report(s.camera.Upload(ctx, r))
}

// SearchByImage closes the camera modal and shows the image search results.
func (s *Session) SearchByImage() error {
	s.clearAlert()
	img, ok := s.camera.Image()
	if !ok {
		return camera.ErrInvalidState
	}
	s.modals.Close(modal.Camera)

	res := s.search.ByImage(img.Data)
	s.mu.Lock()
	s.results = &res
	s.mu.Unlock()
	s.modals.Open(modal.Search)
	return nil
}

// SearchKeyword renders results for a keyword. A blank keyword is alerted
// and leaves the previous results in place.
func (s *Session) SearchKeyword(text string) error {
	s.mu.Lock()
	s.alert = ""
	res, err := s.search.ByKeyword(text)
	if err != nil {
		err = s.reportLocked(err)
		s.mu.Unlock()
		return err
	}
	s.results = &res
	s.mu.Unlock()
	s.modals.Open(modal.Search)
	return nil
}

// SelectResult closes the search modal and opens the detail for one hit and
// records it in the history under its title. An index that was never
// rendered is ignored.
func (s *Session) SelectResult(index int) error {
	s.mu.Lock()
	s.alert = ""
	if s.results == nil {
		s.mu.Unlock()
		return nil
	}
	summary, err := s.search.Select(*s.results, index)
	if errors.Is(err, domain.ErrNotFound) {
		s.mu.Unlock()
		s.logger.Debug("search result not rendered", zap.Int("index", index))
		return nil
	}
	if err != nil {
		s.mu.Unlock()
		return err
	}
	v := detail.Show(summary)
	s.detail = &v
	s.recordViewLocked(summary.Title, v)
	s.mu.Unlock()

	s.modals.Close(modal.Search)
	s.modals.Open(modal.ProductDetail)
	return nil
}

// ShowCard opens the detail for a home page card and records it in the
// history. Unknown cards are ignored.
func (s *Session) ShowCard(cardID string) {
	s.mu.Lock()
	s.alert = ""
	var found *domain.ProductCard
	for i := range s.cards {
		if s.cards[i].ID == cardID {
			found = &s.cards[i]
			break
		}
	}
	if found == nil {
		s.mu.Unlock()
		s.logger.Debug("product card not found", zap.String("card", cardID))
		return
	}
	v := detail.Show(detail.WithDefaults(found.Summary))
	s.detail = &v
	s.recordViewLocked(found.ID, v)
	s.mu.Unlock()

	s.modals.Open(modal.ProductDetail)
}

// AddToCart acknowledges the shown product and closes the detail.
func (s *Session) AddToCart() {
	s.detailAction(msgAddedToCart)
}

// BuyNow acknowledges the shown product and closes the detail.
func (s *Session) BuyNow() {
	s.detailAction(msgBuyNow)
}

func (s *Session) detailAction(msg string) {
	s.mu.Lock()
	s.alert = msg
	s.mu.Unlock()
	s.modals.Close(modal.ProductDetail)
}

// Locate opens the location panel and resolves the position once. Failures
// are shown in the panel, not alerted. Only the newest request updates the
// panel.
func (s *Session) Locate(ctx context.Context, locator location.Locator) {
	s.modals.Open(modal.Location)

	s.mu.Lock()
	s.alert = ""
	s.locateGen++
	gen := s.locateGen
	s.locating = true
	s.locationCurrent = s.location.Pending()
	s.mu.Unlock()

	fix, err := s.location.Locate(ctx, locator)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.locateGen {
		return
	}
	s.locating = false
	if err != nil {
		if ue, ok := domain.AsUserError(err); ok {
			s.locationCurrent = ue.Message
		} else {
			s.locationCurrent = location.Message(err)
		}
		s.logger.Info("locate failed", zap.Error(err))
		return
	}
	s.locationCurrent = fix.Current
	s.locationLabel = fix.City
}

// PickCity sets the header label from the city list and closes the panel.
// Cities outside the list are ignored.
func (s *Session) PickCity(city string) {
	s.mu.Lock()
	s.alert = ""
	known := false
	for _, c := range s.location.Cities() {
		if c == city {
			known = true
			break
		}
	}
	if known {
		s.locationLabel = city
	}
	s.mu.Unlock()
	if known {
		s.modals.Close(modal.Location)
	}
}

// DismissAlert clears the pending alert.
func (s *Session) DismissAlert() {
	s.clearAlert()
}

// Page snapshots the session for rendering.
func (s *Session) Page() Page {
	s.mu.Lock()
	p := Page{
		SessionID: s.ID,
		Cart:      s.cart.State(),
		Location: LocationView{
			Label:   s.locationLabel,
			Current: s.locationCurrent,
			Pending: s.locating,
			Cities:  s.location.Cities(),
		},
		Cards:   make([]domain.ProductCard, 0, len(s.cards)),
		History: append([]HistoryEntry{}, s.history...),
		Alert:   s.alert,
	}
	if s.results != nil {
		res := search.Results{Query: s.results.Query, Items: append([]search.Result(nil), s.results.Items...)}
		p.Search = &res
	}
	if s.detail != nil {
		d := *s.detail
		p.Detail = &d
	}
	for _, c := range s.cards {
		p.Cards = append(p.Cards, domain.ProductCard{ID: c.ID, Summary: detail.WithDefaults(c.Summary)})
	}
	s.mu.Unlock()

	p.Modal = s.modals.State()
	p.Camera = s.camera.View()
	return p
}

// Close releases the camera stream and any in-flight task.
func (s *Session) Close() {
	s.camera.Teardown()
}

func (s *Session) clearAlert() {
	s.mu.Lock()
	s.alert = ""
	s.mu.Unlock()
}

// report turns user errors into the pending alert. Discarded camera tasks
// are dropped silently.
func (s *Session) report(err error) error {
	if err == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reportLocked(err)
}

func (s *Session) reportLocked(err error) error {
	if errors.Is(err, camera.ErrDiscarded) {
		return nil
	}
	if ue, ok := domain.AsUserError(err); ok {
		s.alert = ue.Message
	}
	return err
}
