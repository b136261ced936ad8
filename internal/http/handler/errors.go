package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/smallbiznis/cardlink/internal/exchange"
	"github.com/smallbiznis/cardlink/internal/http/middleware"
	"github.com/smallbiznis/cardlink/internal/repository"
	"github.com/smallbiznis/cardlink/internal/session"
)

// APIError is rendered as {"error", "error_description"}.
type APIError struct {
	Code        string
	Description string
	Status      int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func newAPIError(code, desc string, status int) *APIError {
	return &APIError{Code: code, Description: desc, Status: status}
}

var (
	errInvalidRequest = newAPIError("invalid_request", "Invalid payload.", http.StatusBadRequest)
	errNotFound       = newAPIError("not_found", "Contact card not found.", http.StatusNotFound)
	errInvalidToken   = newAPIError("invalid_token", "Invalid refresh token.", http.StatusUnauthorized)
	errUnpublished    = newAPIError("card_unpublished", "Contact card has no public user name.", http.StatusConflict)
	errInvalidContact = newAPIError("invalid_contact", "Contact details do not fit a capability.", http.StatusUnprocessableEntity)
	errServer         = newAPIError("server_error", "Internal server error.", http.StatusInternalServerError)
)

func writeAPIError(c *gin.Context, apiErr *APIError) {
	c.AbortWithStatusJSON(apiErr.Status, gin.H{"error": apiErr.Code, "error_description": apiErr.Description})
}

// respondError maps service errors to responses. Rejected capabilities get a bare 400 so a
// client learns nothing about why.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	var apiErr *APIError
	var rejected *exchange.RejectedError
	switch {
	case errors.As(err, &rejected):
		c.AbortWithStatus(http.StatusBadRequest)
	case errors.As(err, &apiErr):
		writeAPIError(c, apiErr)
	case errors.Is(err, repository.ErrNotFound):
		writeAPIError(c, errNotFound)
	case errors.Is(err, exchange.ErrUnpublishedCard):
		writeAPIError(c, errUnpublished)
	case errors.Is(err, exchange.ErrInvalidCapability):
		writeAPIError(c, errInvalidContact)
	case errors.Is(err, session.ErrInvalidToken):
		writeAPIError(c, errInvalidToken)
	default:
		logger.Error("request failed",
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.Error(err),
		)
		writeAPIError(c, errServer)
	}
}
