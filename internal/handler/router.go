package handler

import (
	"net/http"

	"github.com/SergeiKhy/shortlink/internal/middleware"
	"github.com/SergeiKhy/shortlink/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func NewRouter(
	linkService service.LinkService,
	rateLimiter *middleware.RateLimiter,
	baseURL string,
	logger *zap.Logger,
) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())

	// Middleware для логгирования
	router.Use(func(c *gin.Context) {
		logger.Info("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("ip", c.ClientIP()),
		)
		c.Next()
	})

	// Rate limiting для всех запросов
	if rateLimiter != nil {
		router.Use(rateLimiter.Middleware())
	}

	linkHandler := NewLinkHandler(linkService, baseURL, logger)

	// API v.1
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", HealthCheck)

		v1.POST("/links", linkHandler.CreateLink)
		v1.DELETE("/links/:code", linkHandler.DeleteLink)
		v1.GET("/links/:code/stats", linkHandler.GetStats)
	}

	// Редирект (корневой путь)
	router.GET("/:code", linkHandler.Redirect)

	return router
}

// HealthCheck godoc
// @Summary Health check
// @Tags system
// @Produce json
// @Success 200 {object} map[string]string
// @Router /api/v1/health [get]
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "shortlink",
	})
}
