package httpserver

import (
	"errors"
	"time"

	"storefront/internal/service/product"
	"storefront/internal/service/session"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Deps are the services the routes need. Products is optional; without it
// the /products routes are not mounted.
type Deps struct {
	Sessions     *session.Store
	Products     *product.Service
	AllowOrigins []string
}

// buildRouter wires routes for the API.
func buildRouter(logger *zap.Logger, db *pgxpool.Pool, deps Deps) (*gin.Engine, error) {
	if deps.Sessions == nil {
		return nil, errors.New("session store required")
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(requestLogger(logger), gin.Recovery(), cors.New(corsConfig(deps.AllowOrigins)))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))

	if deps.Products != nil {
		p := &productHandlers{products: deps.Products, logger: logger}
		router.GET("/products", p.list)
		router.GET("/products/search", p.search)
		router.GET("/products/:productID", p.get)
	}

	h := &handlers{sessions: deps.Sessions, logger: logger}
	router.POST("/sessions", h.createSession)

	s := router.Group("/sessions/:sessionID", sessionMiddleware(deps.Sessions))
	s.GET("", h.getPage)
	s.DELETE("", h.deleteSession)
	s.DELETE("/history", h.clearHistory)
	s.POST("/alert/dismiss", h.dismissAlert)

	s.POST("/cart", h.updateCart)
	s.POST("/cart/items/:itemID/toggle", h.toggleItem)
	s.POST("/cart/items/:itemID/increment", h.increment)
	s.POST("/cart/items/:itemID/decrement", h.decrement)
	s.POST("/cart/shops/:shopID/toggle", h.toggleShop)
	s.POST("/cart/toggle-all", h.toggleAll)
	s.POST("/checkout", h.checkout)

	s.POST("/modals/:modalID/open", h.openModal)
	s.POST("/modals/:modalID/close", h.closeModal)
	s.POST("/modals/:modalID/backdrop", h.clickBackdrop)

	s.POST("/camera/open", h.openCamera)
	s.POST("/camera/capture", h.capture)
	s.POST("/camera/retake", h.retake)
	s.POST("/camera/upload", h.upload)
	s.POST("/camera/search", h.searchByImage)

	s.POST("/search", h.searchKeyword)
	s.POST("/search/results/:index/select", h.selectResult)
	s.POST("/cards/:cardID/show", h.showCard)
	s.POST("/detail/add-to-cart", h.addToCart)
	s.POST("/detail/buy-now", h.buyNow)

	s.POST("/location/locate", h.locate)
	s.POST("/location/pick", h.pickCity)

	return router, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

// requestLogger logs one line per request once the handler chain is done.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("remote_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch status := c.Writer.Status(); {
		case status >= 500:
			logger.Error("request completed", fields...)
		case status >= 400:
			logger.Warn("request completed", fields...)
		default:
			logger.Info("request completed", fields...)
		}
	}
}
