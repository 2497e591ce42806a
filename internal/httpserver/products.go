package httpserver

import (
	"errors"
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/service/product"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const msgProductNotFound = "商品不存在"

type productHandlers struct {
	products *product.Service
	logger   *zap.Logger
}

func (h *productHandlers) list(c *gin.Context) {
	products, err := h.products.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *productHandlers) search(c *gin.Context) {
	products, err := h.products.Search(c.Request.Context(), c.Query("keyword"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *productHandlers) get(c *gin.Context) {
	p, err := h.products.Get(c.Request.Context(), c.Param("productID"))
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": msgProductNotFound})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *productHandlers) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	h.logger.Error("load products", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
