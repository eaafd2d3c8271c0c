package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/SergeiKhy/shortlink/internal/models"
	"github.com/SergeiKhy/shortlink/internal/repository"
	"github.com/SergeiKhy/shortlink/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type LinkHandler struct {
	service service.LinkService
	baseURL string
	logger  *zap.Logger
}

func NewLinkHandler(service service.LinkService, baseURL string, logger *zap.Logger) *LinkHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LinkHandler{
		service: service,
		baseURL: baseURL,
		logger:  logger,
	}
}

type CreateLinkRequest struct {
	URL        string `json:"url" binding:"required"`
	TTLSeconds *int64 `json:"ttl_seconds,omitempty"`
	CustomCode string `json:"custom_code,omitempty"`
	Owner      string `json:"owner,omitempty"`
}

type CreateLinkResponse struct {
	ShortCode   string    `json:"short_code"`
	ShortURL    string    `json:"short_url"`
	OriginalURL string    `json:"original_url"`
	Owner       string    `json:"owner,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
	Clicks      int64     `json:"clicks"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// CreateLink godoc
// @Summary Create a short link
// @Description Create a new shortened URL
// @Tags links
// @Accept json
// @Produce json
// @Param request body CreateLinkRequest true "Link creation request"
// @Success 201 {object} CreateLinkResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/links [post]
func (h *LinkHandler) CreateLink(c *gin.Context) {
	var req CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	input := &models.CreateLinkInput{
		OriginalURL: req.URL,
		TTLSeconds:  req.TTLSeconds,
		Owner:       req.Owner,
	}
	if req.CustomCode != "" {
		input.CustomCode = &req.CustomCode
	}

	link, err := h.service.CreateLink(c.Request.Context(), input)
	if err != nil {
		// Ошибки, исправимые клиентом, не повод для Error-уровня
		switch {
		case errors.Is(err, service.ErrInvalidURL):
			h.logger.Warn("Rejected link creation", zap.Error(err))
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_url",
				Message: "Invalid URL format",
			})
		case errors.Is(err, service.ErrInvalidTTL):
			h.logger.Warn("Rejected link creation", zap.Error(err))
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_ttl",
				Message: "TTL exceeds the configured maximum",
			})
		case errors.Is(err, service.ErrInvalidAlias):
			h.logger.Warn("Rejected link creation", zap.Error(err))
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_alias",
				Message: "Custom code violates length, charset or reserved-word policy",
			})
		case errors.Is(err, service.ErrAliasTaken):
			h.logger.Warn("Rejected link creation", zap.Error(err))
			c.JSON(http.StatusConflict, ErrorResponse{
				Error:   "alias_taken",
				Message: "Custom code is already in use",
			})
		case errors.Is(err, service.ErrAllocationExhausted):
			h.logger.Error("Failed to create link", zap.Error(err))
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "allocation_exhausted",
				Message: "Could not allocate a unique code",
			})
		default:
			h.logger.Error("Failed to create link", zap.Error(err))
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "internal_error",
				Message: "Failed to create link",
			})
		}
		return
	}

	c.JSON(http.StatusCreated, CreateLinkResponse{
		ShortCode:   link.ShortCode,
		ShortURL:    h.baseURL + "/" + link.ShortCode,
		OriginalURL: link.OriginalURL,
		Owner:       link.Owner,
		ExpiresAt:   link.ExpiresAt,
		CreatedAt:   link.CreatedAt,
		Clicks:      link.Clicks,
	})
}

// Redirect godoc
// @Summary Redirect to original URL
// @Description Redirect to the original URL by short code
// @Tags links
// @Produce json
// @Param code path string true "Short code"
// @Success 307 {object} nil
// @Failure 404 {object} ErrorResponse
// @Router /{code} [get]
func (h *LinkHandler) Redirect(c *gin.Context) {
	code := c.Param("code")

	link, err := h.service.ResolveLink(c.Request.Context(), code)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) || errors.Is(err, service.ErrLinkExpired) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Link not found or expired",
			})
			return
		}
		h.logger.Error("Failed to resolve link", zap.String("code", code), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to resolve link",
		})
		return
	}

	c.Redirect(http.StatusTemporaryRedirect, link.OriginalURL)
}

// GetStats godoc
// @Summary Get link statistics
// @Description Get click count and lifetime info for a shortened URL
// @Tags links
// @Produce json
// @Param code path string true "Short code"
// @Success 200 {object} models.LinkStats
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/links/{code}/stats [get]
func (h *LinkHandler) GetStats(c *gin.Context) {
	code := c.Param("code")

	stats, err := h.service.GetStats(c.Request.Context(), code)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) || errors.Is(err, service.ErrLinkExpired) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Link not found or expired",
			})
			return
		}
		h.logger.Error("Failed to get stats", zap.String("code", code), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to get stats",
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// DeleteLink godoc
// @Summary Delete a short link
// @Description Delete a shortened URL by short code
// @Tags links
// @Produce json
// @Param code path string true "Short code"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/links/{code} [delete]
func (h *LinkHandler) DeleteLink(c *gin.Context) {
	code := c.Param("code")

	if err := h.service.DeleteLink(c.Request.Context(), code); err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Link not found",
			})
			return
		}
		h.logger.Error("Failed to delete link", zap.String("code", code), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to delete link",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Link deleted successfully"})
}
