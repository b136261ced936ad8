package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/smallbiznis/cardlink/internal/diagnostic"
)

func TestRedactQuery(t *testing.T) {
	require.Equal(t, "", redactQuery(""))
	require.Equal(t, "c=%5Bredacted%5D&utm=x", redactQuery("c=secret-capability&utm=x"))
	require.Equal(t, "k=%5Bredacted%5D", redactQuery("k=abc"))
	require.Equal(t, "page=2", redactQuery("page=2"))
}

func TestRequestLoggerNeverLogsCapability(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)

	var remote string
	r := gin.New()
	r.Use(RequestLogger(zap.New(core)))
	r.GET("/api/contact-card", func(c *gin.Context) {
		remote = diagnostic.RemoteAddrFrom(c.Request.Context())
		c.Status(http.StatusBadRequest)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/contact-card?c=very-secret-capability", nil)
	req.RemoteAddr = "203.0.113.9:4242"
	req.Header.Set("X-Request-ID", "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, "req-1", w.Header().Get("X-Request-ID"))
	require.Equal(t, "203.0.113.9", remote)

	entries := logs.FilterMessage("http_request").All()
	require.Len(t, entries, 1)
	require.Equal(t, zap.WarnLevel, entries[0].Level)
	require.NotContains(t, entries[0].ContextMap()["path"], "very-secret-capability")
}

func TestBearerToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		header  string
		token   string
		present bool
	}{
		{header: "", token: "", present: false},
		{header: "Bearer abc", token: "abc", present: true},
		{header: "bearer  abc ", token: "abc", present: true},
		{header: "Basic abc", token: "", present: true},
	}
	for _, tc := range tests {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			c.Request.Header.Set("Authorization", tc.header)
		}
		token, present := bearerToken(c)
		require.Equal(t, tc.token, token, tc.header)
		require.Equal(t, tc.present, present, tc.header)
	}
}
