// Package router wires the HTTP surface of the bridge service.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"tokenbridge/internal/handlers"
	"tokenbridge/internal/middleware"
)

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-TOTP-Code")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// SetupRouter builds the bridge service router.
func SetupRouter(
	logger *logrus.Logger,
	authHandler *handlers.AuthHandler,
	flowHandler *handlers.FlowHandler,
	bridgeHandler *handlers.BridgeHandler,
	healthHandler *handlers.HealthHandler,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	auth := middleware.NewAuthMiddleware(logger)
	adminAuth := middleware.NewAdminAuthMiddleware(logger)

	// ============ Health & Metrics ============
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/health", healthHandler.Health)
	r.GET("/ready", healthHandler.Ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ============ API Routes ============
	api := r.Group("/api/v1")
	{
		api.POST("/auth/token", authHandler.IssueToken)

		flows := api.Group("/flows", auth.RequireAuth())
		{
			flows.POST("/public", flowHandler.StartPublicFlow)
			flows.POST("/private", flowHandler.StartPrivateFlow)
			flows.GET("/:id", flowHandler.GetFlow)
		}
		// The push stream authenticates per-connection clients upstream of
		// the bridge; the devnet leaves it open.
		api.GET("/ws/flows", flowHandler.SubscribeFlows)

		api.GET("/balances/l1/:address", bridgeHandler.GetL1Balance)
		api.GET("/balances/l2/:account", bridgeHandler.GetL2Balance)
		api.GET("/chain/status", bridgeHandler.GetChainStatus)

		admin := api.Group("/admin", adminAuth.RequireAdminAuth())
		{
			admin.POST("/chain/produce-block", bridgeHandler.ProduceBlock)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"message": "endpoint not found",
			"path":    c.Request.URL.Path,
		})
	})

	return r
}

// SetupOracleRouter builds the standalone attestation oracle router.
func SetupOracleRouter(logger *logrus.Logger, attestationHandler *handlers.AttestationHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	adminAuth := middleware.NewAdminAuthMiddleware(logger)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		api.POST("/attest", attestationHandler.Attest)
		api.POST("/admin/deny", adminAuth.RequireAdminAuth(), attestationHandler.DenyUser)
	}

	return r
}
