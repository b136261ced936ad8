package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/smallbiznis/cardlink/internal/config"
	"github.com/smallbiznis/cardlink/internal/http/handler"
	httpmiddleware "github.com/smallbiznis/cardlink/internal/http/middleware"
	"github.com/smallbiznis/cardlink/internal/middleware"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(
	cfg config.Config,
	exchangeHandler *handler.ExchangeHandler,
	sessionHandler *handler.SessionHandler,
	auth *httpmiddleware.Auth,
	rateLimiter *middleware.RateLimiter,
	logger *zap.Logger,
) *gin.Engine {
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(logger))
	r.Use(middleware.CORS(middleware.CORSOptions{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   cfg.CORSAllowedMethods,
		AllowedHeaders:   cfg.CORSAllowedHeaders,
		AllowCredentials: cfg.CORSAllowCredentials,
	}))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		public := api.Group("", rateLimiter.Handler())
		{
			public.GET("/contact-card", exchangeHandler.ContactCard)
			public.GET("/email-signature", exchangeHandler.EmailSignature)
			public.POST("/verify-sign", exchangeHandler.VerifySign)
			public.GET("/vcard", exchangeHandler.VCard)
		}

		api.GET("/contact-card/session", auth.RequireUpgrade, exchangeHandler.UpgradeSession)

		capabilities := api.Group("/capabilities", auth.RequireSession)
		{
			capabilities.POST("/qr", exchangeHandler.IssueQRProfileAccess)
			capabilities.POST("/email-signature", exchangeHandler.IssueEmailSignature)
			capabilities.POST("/share-back", exchangeHandler.IssueShareBack)
		}
	}

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/session/refresh", rateLimiter.Handler(), sessionHandler.Refresh)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "error_description": "Route not found."})
	})

	return r
}
