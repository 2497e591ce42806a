package modal

import (
	"sync"

	"go.uber.org/zap"
)

// Known overlay panels on the storefront page.
const (
	Camera        = "camera-modal"
	Search        = "search-modal"
	ProductDetail = "product-detail-modal"
	Location      = "location-modal"
)

// Teardown is run when its modal closes.
type Teardown interface {
	Teardown()
}

// TeardownFunc adapts a function to Teardown.
type TeardownFunc func()

func (f TeardownFunc) Teardown() { f() }

// Controller tracks which overlay is visible and whether page scroll is
// locked. Only one modal is open at a time: opening another one force-closes
// the current modal first, running its teardown.
type Controller struct {
	mu         sync.Mutex
	known      map[string]bool
	current    string
	scrollLock bool
	teardowns  map[string]Teardown
	logger     *zap.Logger
}

// State is what the page renders.
type State struct {
	Open       string `json:"open,omitempty"`
	ScrollLock bool   `json:"scrollLock"`
}

func New(logger *zap.Logger, ids ...string) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(ids) == 0 {
		ids = []string{Camera, Search, ProductDetail, Location}
	}
	known := make(map[string]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}
	return &Controller{
		known:     known,
		teardowns: make(map[string]Teardown),
		logger:    logger,
	}
}

// OnClose registers the teardown for a modal. The camera modal is the only
// consumer on the page.
func (c *Controller) OnClose(id string, t Teardown) {
	c.mu.Lock()
	c.teardowns[id] = t
	c.mu.Unlock()
}

// Open shows a modal and locks background scroll. Unknown ids are skipped.
func (c *Controller) Open(id string) bool {
	c.mu.Lock()
	if !c.known[id] {
		c.mu.Unlock()
		c.logger.Debug("open unknown modal skipped", zap.String("modal", id))
		return false
	}
	if c.current == id {
		c.mu.Unlock()
		return true
	}
	prev := c.current
	var prevTeardown Teardown
	if prev != "" {
		prevTeardown = c.teardowns[prev]
		c.logger.Debug("force-closing modal", zap.String("modal", prev), zap.String("opening", id))
	}
	c.current = id
	c.scrollLock = true
	c.mu.Unlock()

	if prevTeardown != nil {
		prevTeardown.Teardown()
	}
	return true
}

// Close hides a modal and restores scroll. Closing a modal that is not open
// is a no-op.
func (c *Controller) Close(id string) bool {
	c.mu.Lock()
	if c.current == "" || c.current != id {
		c.mu.Unlock()
		return false
	}
	c.current = ""
	c.scrollLock = false
	t := c.teardowns[id]
	c.mu.Unlock()

	if t != nil {
		t.Teardown()
	}
	return true
}

// ClickBackdrop closes the modal only when the click landed on the backdrop
// element itself, identified by targetID == id.
func (c *Controller) ClickBackdrop(id, targetID string) bool {
	if targetID != id {
		return false
	}
	return c.Close(id)
}

func (c *Controller) IsOpen(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current == id && id != ""
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{Open: c.current, ScrollLock: c.scrollLock}
}
