package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

type ServerOptions struct {
	APIAccessKey string
	WebDir       string
	Debug        bool
}

// NewServer creates a new HTTP server with all routes configured
func NewServer(handler *Handler, opts ServerOptions) *gin.Engine {
	if opts.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
		SkipPaths: []string{"/health"},
	}))

	r.Use(gin.Recovery())

	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-API-Key")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	setupRoutes(r, handler, opts)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler, opts ServerOptions) {
	r.GET("/health", handler.GetHealth)

	api := r.Group("/api")
	{
		api.GET("/data", handler.GetData)
		api.GET("/listings", handler.GetListings)
		api.POST("/listings", handler.CreateListing)
		api.GET("/places", handler.SearchPlaces)
		api.GET("/places/:id", handler.GetPlace)
		api.GET("/places/:id/qr.png", handler.GetPlaceQR)
		api.GET("/view", handler.GetView)
		api.GET("/sellers", handler.GetSellers)
		api.POST("/leads", handler.CreateLead)
		api.POST("/proposals", handler.CreateProposal)

		sessions := api.Group("/sessions")
		sessions.POST("", handler.CreateSession)
		sessions.GET("/:id", handler.GetSession)
		sessions.PATCH("/:id", handler.UpdateSession)
		sessions.DELETE("/:id", handler.DeleteSession)
		sessions.POST("/:id/list/:item/click", handler.ClickListRow)
		sessions.POST("/:id/markers/:item/click", handler.ClickMarker)

		// Seed is guarded by its own secret
		api.GET("/admin/seed", handler.SeedPlaces)
	}

	if opts.APIAccessKey != "" {
		admin := r.Group("/api/admin")
		admin.Use(authMiddleware(opts.APIAccessKey))
		{
			admin.POST("/reload", handler.ReloadCatalog)
		}
		slog.Info("Admin endpoints enabled with authentication")
	} else {
		slog.Info("Admin endpoints disabled (API_ACCESS_KEY not set)")
	}

	if opts.WebDir != "" {
		if info, err := os.Stat(opts.WebDir); err == nil && info.IsDir() {
			r.Static("/web", opts.WebDir)
			r.GET("/", func(c *gin.Context) {
				c.Redirect(http.StatusFound, "/web/")
			})
		} else {
			slog.Warn("Web directory not found, static front-end disabled", "dir", opts.WebDir)
		}
	}

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
}

func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-API-Key")

		if providedKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				providedKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if providedKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "API key required",
				"message": "Provide API key in X-API-Key header or Authorization: Bearer <key>",
			})
			c.Abort()
			return
		}

		if providedKey != apiAccessKey {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid API key",
				"message": "The provided API key is not valid",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
