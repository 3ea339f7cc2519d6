package handler

import (
	"wallet-ledger/internal/adapter/http/middleware"
	"wallet-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	Dispatcher     ports.OperationDispatcher
	AccountSvc     ports.AccountService
	CatalogSvc     ports.CatalogService
	TokenSvc       ports.TokenService
	RateLimiter    middleware.Limiter // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(maxBodyBytes))

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		return middleware.RateLimiter(deps.RateLimiter, group, rules[group], deps.Logger)
	}

	v1 := r.Group("/api/v1", middleware.JWTAuth(deps.TokenSvc, deps.Logger))

	operationHandler := NewOperationHandler(deps.Dispatcher)
	v1.POST("/operations", rl(middleware.GroupOperations), operationHandler.Execute)

	accountHandler := NewAccountHandler(deps.AccountSvc)
	accounts := v1.Group("/accounts", rl(middleware.GroupAccounts))
	{
		accounts.POST("", accountHandler.Open)
		accounts.GET("/:kind/balance", accountHandler.GetBalance)
		accounts.GET("/:kind/history", accountHandler.ListHistory)
	}

	productHandler := NewProductHandler(deps.CatalogSvc)
	products := v1.Group("/products", rl(middleware.GroupProducts))
	{
		products.GET("", productHandler.List)
		products.POST("", productHandler.Create)
		products.GET("/mine", productHandler.ListMine)
		products.GET("/:id", productHandler.Get)
		products.PUT("/:id", productHandler.Update)
		products.DELETE("/:id", productHandler.Delete)
	}

	return r
}
