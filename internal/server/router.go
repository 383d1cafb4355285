// Package server assembles the HTTP surface: middleware order, routes and CORS.
package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	gorillahandlers "github.com/gorilla/handlers"

	"github.com/jcob-sikorski/mech-mashup/internal/auth"
	"github.com/jcob-sikorski/mech-mashup/internal/config"
	"github.com/jcob-sikorski/mech-mashup/internal/handlers"
	"github.com/jcob-sikorski/mech-mashup/internal/metrics"
	"github.com/jcob-sikorski/mech-mashup/internal/services"
	"github.com/jcob-sikorski/mech-mashup/pkg/utils"
)

// Deps are the collaborators the router needs. Metrics and DB may be nil.
type Deps struct {
	Config  *config.Config
	Auth    services.AuthService
	Users   services.UserService
	Metrics *metrics.Metrics
	DB      handlers.Pinger
}

// NewRouter builds the gin engine and wraps it in the CORS handler.
func NewRouter(d Deps) (http.Handler, error) {
	utils.SetupValidator()

	cfg := d.Config
	router := gin.New()
	// Client IPs feed the rate limiter and request logs, so forwarding
	// headers are honoured only from configured proxies.
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	router.Use(gin.Recovery())
	router.Use(handlers.AllowedHosts(cfg.AllowedHosts))
	router.Use(handlers.RequestLogger())
	if d.Metrics != nil {
		router.Use(d.Metrics.Middleware())
	}
	router.Use(handlers.QueryTimeout(cfg.Database.QueryTimeout))

	healthHandler := handlers.NewHealthHandler(d.DB)
	authHandler := handlers.NewAuthHandler(d.Auth, d.Metrics)
	userHandler := handlers.NewUserHandler(d.Users)

	router.GET("/health", healthHandler.HealthCheck)
	if d.Metrics != nil {
		router.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	limiter := utils.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Interval)

	// Token endpoints take credentials in the body and skip bearer authentication.
	authRoutes := router.Group("/auth")
	{
		authRoutes.POST("/token/", limiter.Middleware(), authHandler.ObtainToken)
		authRoutes.POST("/token/refresh/", authHandler.RefreshToken)
		authRoutes.POST("/token/verify/", authHandler.VerifyToken)
		if d.Auth.BlacklistEnabled() {
			authRoutes.POST("/token/blacklist/", authHandler.BlacklistToken)
		}
		authRoutes.POST("/register/", limiter.Middleware(), authHandler.Register)
	}

	api := router.Group("/api")
	api.Use(auth.Authenticate(d.Auth))
	{
		users := api.Group("/users")

		users.GET("/", auth.RequirePermission(auth.ActionList, nil), userHandler.List)

		self := auth.RequirePermission(auth.ActionSelfRetrieve, nil)
		selfUpdate := auth.RequirePermission(auth.ActionSelfUpdate, nil)
		users.GET("/me/", self, userHandler.Me)
		users.PUT("/me/", selfUpdate, userHandler.UpdateMe)
		users.PATCH("/me/", selfUpdate, userHandler.UpdateMe)

		target := auth.ParamTarget("id")
		users.GET("/:id/", auth.RequirePermission(auth.ActionRetrieve, target), userHandler.Retrieve)
		users.PUT("/:id/", auth.RequirePermission(auth.ActionUpdate, target), userHandler.Update)
		users.PATCH("/:id/", auth.RequirePermission(auth.ActionUpdate, target), userHandler.Update)
	}

	return gorillahandlers.CORS(
		gorillahandlers.AllowedOrigins(cfg.CORS.AllowedOrigins),
		gorillahandlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodOptions}),
		gorillahandlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
		gorillahandlers.AllowCredentials(),
	)(router), nil
}
