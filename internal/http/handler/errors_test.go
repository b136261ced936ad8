package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/smallbiznis/cardlink/internal/capability"
	"github.com/smallbiznis/cardlink/internal/diagnostic"
	"github.com/smallbiznis/cardlink/internal/exchange"
	"github.com/smallbiznis/cardlink/internal/http/middleware"
	"github.com/smallbiznis/cardlink/internal/repository"
	"github.com/smallbiznis/cardlink/internal/session"
)

func serveError(t *testing.T, logger *zap.Logger, err error) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(middleware.RequestLogger(zap.NewNop()))
	r.GET("/", func(c *gin.Context) {
		respondError(c, logger, err)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRespondErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{
			name:   "rejected",
			err:    &exchange.RejectedError{Kind: capability.KindQRProfile, Reason: diagnostic.ReasonExpired},
			status: http.StatusBadRequest,
		},
		{
			name:   "not found",
			err:    fmt.Errorf("load: %w", repository.ErrNotFound),
			status: http.StatusNotFound,
			code:   "not_found",
		},
		{
			name:   "unpublished card",
			err:    fmt.Errorf("profile p1: %w", exchange.ErrUnpublishedCard),
			status: http.StatusConflict,
			code:   "card_unpublished",
		},
		{
			name:   "invalid capability data",
			err:    fmt.Errorf("%w: %w", exchange.ErrInvalidCapability, capability.ErrInvalidPayload),
			status: http.StatusUnprocessableEntity,
			code:   "invalid_contact",
		},
		{
			name:   "invalid session",
			err:    session.ErrInvalidToken,
			status: http.StatusUnauthorized,
			code:   "invalid_token",
		},
		{
			name:   "unexpected",
			err:    errors.New("connection refused"),
			status: http.StatusInternalServerError,
			code:   "server_error",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := serveError(t, zap.NewNop(), tc.err)
			require.Equal(t, tc.status, w.Code)
			if tc.code == "" {
				require.Empty(t, w.Body.String())
				return
			}
			require.Contains(t, w.Body.String(), `"error":"`+tc.code+`"`)
		})
	}
}

func TestRespondErrorLogsRequestID(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)

	w := serveError(t, zap.New(core), errors.New("connection refused"))
	require.Equal(t, http.StatusInternalServerError, w.Code)

	entries := logs.FilterMessage("request failed").All()
	require.Len(t, entries, 1)
	require.Equal(t, "req-42", entries[0].ContextMap()["request_id"])
}
