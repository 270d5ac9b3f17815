package api

import (
	"errors"
	"net/http"

	"seafood-order-service/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var cartReasons = map[error]string{
	service.ErrEmptyCart:       "empty_cart",
	service.ErrInvalidQuantity: "invalid_quantity",
	service.ErrProductNotFound: "product_not_found",
	service.ErrMissingAddress:  "missing_address",
}

// writeError maps a service error onto a response. Raw causes stay in the log.
func (h *Handler) writeError(c *gin.Context, err error) {
	var (
		validation *service.ValidationError
		short      *service.InsufficientStockError
	)

	switch {
	case errors.As(err, &validation):
		body := gin.H{"error": "cart_issue", "reason": cartReasons[validation.Err]}
		if validation.ProductID != 0 {
			body["product_id"] = validation.ProductID
		}
		c.JSON(http.StatusBadRequest, body)

	case errors.As(err, &short):
		c.JSON(http.StatusConflict, gin.H{"error": "out_of_stock", "product_id": short.ProductID})

	case errors.Is(err, service.ErrInfrastructure):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "please_retry"})

	case errors.Is(err, service.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})

	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})

	case errors.Is(err, service.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "invalid_transition"})

	case errors.Is(err, service.ErrDuplicateRequest):
		c.JSON(http.StatusConflict, gin.H{"error": "duplicate_request"})

	case errors.Is(err, service.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_status"})

	case errors.Is(err, service.ErrInvalidRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_range"})

	default:
		h.logger.Error("Unhandled error", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
