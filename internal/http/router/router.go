package router

import (
	"context"
	"net/http"
	"time"

	apphttp "datavend_backend/internal/http"
	"datavend_backend/platform/httpkit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const (
	healthTimeout = 3 * time.Second
	adminRole     = "admin"
)

// New builds the gin engine and mounts every module.
func New(app *apphttp.App) *gin.Engine {
	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestID())
	engine.Use(httpkit.RequestLogger(app.Logger))
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(cors.New(corsConfig(app.Config)))

	engine.NoMethod(func(c *gin.Context) {
		httpkit.Error(c, http.StatusMethodNotAllowed, "Method Not Allowed")
	})
	engine.NoRoute(func(c *gin.Context) {
		httpkit.Error(c, http.StatusNotFound, "Not Found")
	})

	engine.GET("/api/health", func(c *gin.Context) {
		if app.Health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
			defer cancel()
			if err := app.Health.Ping(ctx); err != nil {
				app.Logger.DatabaseError("health ping", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := engine.Group("/api/v1")

	routerCtx := &apphttp.RouterContext{
		Engine:              engine,
		V1:                  v1,
		Config:              app.Config,
		PurchaseRateLimiter: httpkit.NewPerMinuteLimiter(app.Config.GetPurchaseRateLimitPerMinute(), app.Logger),
	}
	if app.Config.IsAdminEnabled() {
		routerCtx.Admin = v1.Group("/admin")
		routerCtx.Admin.Use(httpkit.AuthRequired(app.Config), httpkit.RequireRole(adminRole))
	}

	for _, module := range app.Modules {
		module.RegisterRoutes(routerCtx)
		app.Logger.Debug("module routes registered", "module", module.Name())
	}

	return engine
}

func corsConfig(cfg apphttp.RouterConfig) cors.Config {
	corsCfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", httpkit.RequestIDHeader},
		ExposeHeaders:    []string{httpkit.RequestIDHeader},
		AllowCredentials: cfg.GetCORSAllowCreds(),
		MaxAge:           12 * time.Hour,
	}
	if cfg.GetCORSAllowAll() {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.GetCORSOrigins()
	}
	return corsCfg
}
