package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/fleet-ops-api/internal/handler"
	"github.com/noah-isme/fleet-ops-api/internal/middleware"
	"github.com/noah-isme/fleet-ops-api/internal/models"
	"github.com/noah-isme/fleet-ops-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/fleet-ops-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/fleet-ops-api/pkg/middleware/requestid"
)

// Handlers groups every HTTP handler the API mounts.
type Handlers struct {
	Auth      *handler.AuthHandler
	Buses     *handler.BusHandler
	Drivers   *handler.DriverHandler
	Documents *handler.DocumentHandler
	Incidents *handler.IncidentHandler
	Reports   *handler.ReportHandler
	System    *handler.MetricsHandler
}

// Options configures the engine.
type Options struct {
	APIPrefix      string
	AllowedOrigins []string
	EnableDocs     bool
	Logger         *zap.Logger
	Tokens         middleware.TokenValidator
	Metrics        middleware.RequestObserver
}

// New builds the gin engine with probes at the root and the API under APIPrefix.
func New(h Handlers, opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.APIPrefix == "" {
		opts.APIPrefix = "/api/v1"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(opts.Logger, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(opts.AllowedOrigins))
	r.Use(middleware.Metrics(opts.Metrics))

	r.GET("/health", h.System.Health)
	r.GET("/ready", h.System.Ready)
	r.GET("/metrics", h.System.Prometheus)
	if opts.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(opts.APIPrefix)
	api.POST("/auth/login", h.Auth.Login)

	secured := api.Group("")
	secured.Use(middleware.JWT(opts.Tokens))
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	secured.GET("/auth/me", h.Auth.Me)

	buses := secured.Group("/buses")
	{
		buses.GET("", h.Buses.List)
		buses.POST("", h.Buses.Create)
		buses.POST("/import", h.Buses.Import)
		buses.GET("/:id", h.Buses.Get)
		buses.PUT("/:id", h.Buses.Update)
		buses.DELETE("/:id", adminOnly, h.Buses.Delete)
		buses.GET("/:id/documents", h.Documents.ListByBus)
		buses.GET("/:id/drivers", h.Drivers.ListByBus)
		buses.POST("/:id/drivers", h.Drivers.Assign)
		buses.DELETE("/:id/drivers/:driverId", h.Drivers.Unassign)
	}

	drivers := secured.Group("/drivers")
	{
		drivers.GET("", h.Drivers.List)
		drivers.POST("", h.Drivers.Create)
		drivers.GET("/:id", h.Drivers.Get)
		drivers.DELETE("/:id", adminOnly, h.Drivers.Delete)
	}

	incidents := secured.Group("/incidents")
	{
		incidents.GET("", h.Incidents.List)
		incidents.POST("", h.Incidents.Create)
		incidents.GET("/:id", h.Incidents.Get)
		incidents.PATCH("/:id/status", h.Incidents.UpdateStatus)
		incidents.DELETE("/:id", h.Incidents.Delete)
	}

	documents := secured.Group("/documents")
	{
		documents.POST("", h.Documents.Register)
		documents.GET("/expiring", h.Documents.Expiring)
		documents.DELETE("/:id", h.Documents.Delete)
	}

	secured.GET("/dashboard", h.Reports.Dashboard)
	reports := secured.Group("/reports")
	{
		reports.GET("/weekly", h.Reports.Weekly)
		reports.GET("/weekly/export", h.Reports.ExportWeekly)
		reports.GET("/monthly", h.Reports.Monthly)
		reports.GET("/monthly/export", h.Reports.ExportMonthly)
	}

	secured.GET("/equipment/cameras", h.Buses.CameraStatus)
	secured.GET("/system/metrics", h.System.Snapshot)

	return r
}
