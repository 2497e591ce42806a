package httpserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/service/camera"
	"storefront/internal/service/cart"
	"storefront/internal/service/location"
	"storefront/internal/service/modal"
	"storefront/internal/service/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ctxKey string

const sessionCtxKey ctxKey = "session"

type checkedRequest struct {
	Checked bool `json:"checked"`
}

type backdropRequest struct {
	Target string `json:"target" binding:"required"`
}

type searchRequest struct {
	Keyword string `json:"keyword"`
}

type locateRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	// Error is the browser's geolocation error code, if the request failed.
	Error string `json:"error"`
}

type pickCityRequest struct {
	City string `json:"city" binding:"required"`
}

type handlers struct {
	sessions *session.Store
	logger   *zap.Logger
}

// sessionMiddleware resolves :sessionID into the request context.
func sessionMiddleware(store *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := store.Get(c.Param("sessionID"))
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "session not found"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
			return
		}
		ctx := context.WithValue(c.Request.Context(), sessionCtxKey, s)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func sessionFrom(c *gin.Context) *session.Session {
	s, _ := c.Request.Context().Value(sessionCtxKey).(*session.Session)
	return s
}

func (h *handlers) createSession(c *gin.Context) {
	s, err := h.sessions.Create(c.Request.Context())
	if err != nil {
		h.logger.Error("create session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}
	c.JSON(http.StatusCreated, s.Page())
}

func (h *handlers) getPage(c *gin.Context) {
	c.JSON(http.StatusOK, sessionFrom(c).Page())
}

func (h *handlers) deleteSession(c *gin.Context) {
	h.sessions.Delete(c.Param("sessionID"))
	c.Status(http.StatusNoContent)
}

func (h *handlers) clearHistory(c *gin.Context) {
	s := sessionFrom(c)
	s.ClearHistory()
	c.JSON(http.StatusOK, s.Page())
}

func (h *handlers) dismissAlert(c *gin.Context) {
	s := sessionFrom(c)
	s.DismissAlert()
	c.JSON(http.StatusOK, s.Page())
}

func (h *handlers) updateCart(c *gin.Context) {
	var req cart.UpdateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	s := sessionFrom(c)
	if err := s.UpdateCart(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.Page())
}

func (h *handlers) toggleItem(c *gin.Context) {
	s := sessionFrom(c)
	s.ToggleItem(c.Param("itemID"))
	c.JSON(http.StatusOK, s.Page())
}

func (h *handlers) increment(c *gin.Context) {
	s := sessionFrom(c)
	s.Increment(c.Param("itemID"))
	c.JSON(http.StatusOK, s.Page())
}

func (h *handlers) decrement(c *gin.Context) {
	s := sessionFrom(c)
	s.Decrement(c.Param("itemID"))
	c.JSON(http.StatusOK, s.Page())
}

func (h *handlers) toggleShop(c *gin.Context) {
	var req checkedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	s := sessionFrom(c)
	s.ToggleShop(c.Param("shopID"), req.Checked)
	c.JSON(http.StatusOK, s.Page())
}

func (h *handlers) toggleAll(c *gin.Context) {
	var req checkedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	s := sessionFrom(c)
	s.ToggleAll(req.Checked)
	c.JSON(http.StatusOK, s.Page())
}

func (h *handlers) checkout(c *gin.Context) {
	s := sessionFrom(c)
	h.respond(c, s, s.Checkout())
}

// openModal sends the camera modal through openCamera so the preview starts
// with it.
func (h *handlers) openModal(c *gin.Context) {
	if c.Param("modalID") == modal.Camera {
		h.openCamera(c)
		return
	}
	s := sessionFrom(c)
	s.OpenModal(c.Param("modalID"))
	c.JSON(http.StatusOK, s.Page())
}

func (h *handlers) closeModal(c *gin.Context) {
	s := sessionFrom(c)
	s.CloseModal(c.Param("modalID"))
	c.JSON(http.StatusOK, s.Page())
}

func (h *handlers) clickBackdrop(c *gin.Context) {
	var req backdropRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "target required"})
		return
	}
	s := sessionFrom(c)
	s.ClickBackdrop(c.Param("modalID"), req.Target)
	c.JSON(http.StatusOK, s.Page())
}

func (h *handlers) openCamera(c *gin.Context) {
	s := sessionFrom(c)
	h.respond(c, s, s.OpenCamera(c.Request.Context()))
}

func (h *handlers) capture(c *gin.Context) {
	s := sessionFrom(c)
	h.respond(c, s, s.Capture())
}

func (h *handlers) retake(c *gin.Context) {
	s := sessionFrom(c)
	h.respond(c, s, s.Retake(c.Request.Context()))
}

// upload accepts either a multipart "file" field or the raw image body.
func (h *handlers) upload(c *gin.Context) {
	s := sessionFrom(c)
	var body io.Reader = c.Request.Body
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
			return
		}
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
			return
		}
		defer f.Close()
		body = f
	}
	h.respond(c, s, s.Upload(c.Request.Context(), body))
}

func (h *handlers) searchByImage(c *gin.Context) {
	s := sessionFrom(c)
	h.respond(c, s, s.SearchByImage())
}

func (h *handlers) searchKeyword(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	s := sessionFrom(c)
	h.respond(c, s, s.SearchKeyword(req.Keyword))
}

func (h *handlers) selectResult(c *gin.Context) {
	idx, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid index"})
		return
	}
	s := sessionFrom(c)
	h.respond(c, s, s.SelectResult(idx))
}

func (h *handlers) showCard(c *gin.Context) {
	s := sessionFrom(c)
	s.ShowCard(c.Param("cardID"))
	c.JSON(http.StatusOK, s.Page())
}

func (h *handlers) addToCart(c *gin.Context) {
	s := sessionFrom(c)
	s.AddToCart()
	c.JSON(http.StatusOK, s.Page())
}

func (h *handlers) buyNow(c *gin.Context) {
	s := sessionFrom(c)
	s.BuyNow()
	c.JSON(http.StatusOK, s.Page())
}

// locate replays the position, or the failure, the browser reported.
func (h *handlers) locate(c *gin.Context) {
	var req locateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	s := sessionFrom(c)
	var locator location.Locator
	if locErr := location.ParseErrorCode(req.Error); !errors.Is(locErr, location.ErrUnsupported) {
		locator = location.Reported{
			Position: location.Position{Latitude: req.Latitude, Longitude: req.Longitude},
			Err:      locErr,
		}
	}
	s.Locate(c.Request.Context(), locator)
	c.JSON(http.StatusOK, s.Page())
}

func (h *handlers) pickCity(c *gin.Context) {
	var req pickCityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "city required"})
		return
	}
	s := sessionFrom(c)
	s.PickCity(req.City)
	c.JSON(http.StatusOK, s.Page())
}

// respond renders the page after an action. Validation failures answer 422
// and permission failures 200, both with the alert set on the page.
func (h *handlers) respond(c *gin.Context, s *session.Session, err error) {
	if err == nil {
		c.JSON(http.StatusOK, s.Page())
		return
	}
	if ue, ok := domain.AsUserError(err); ok {
		status := http.StatusOK
		if ue.Kind == domain.KindValidation {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, s.Page())
		return
	}
	if errors.Is(err, camera.ErrInvalidState) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	_ = c.Error(err)
	h.logger.Error("session action failed", zap.String("session", s.ID), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
