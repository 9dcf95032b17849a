// Package router assembles the gin engine: the global middleware chain, the
// tenant-scoped API group and the operator group.
package router

import (
	"net/http"
	"time"

	"github.com/JasonPDev313/Oppsera-sub010/internal/infrastructure/logger"
	"github.com/JasonPDev313/Oppsera-sub010/internal/interfaces/http/dto"
	"github.com/JasonPDev313/Oppsera-sub010/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// RootRegistrar registers routes outside the versioned API, such as probes
type RootRegistrar interface {
	RegisterRoutes(r gin.IRoutes)
}

// Config holds the middleware settings of the engine
type Config struct {
	ServiceName       string
	TracingEnabled    bool
	ProfilingEnabled  bool
	MaxBodySize       int64
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	CORS              middleware.CORSConfig
	TrustedProxies    []string
	Logger            *zap.Logger
	Meter             metric.Meter
}

// Router manages HTTP route registration
type Router struct {
	engine     *gin.Engine
	cfg        Config
	apiVersion string
	root       []RootRegistrar
	tenant     []RouteRegistrar
	admin      []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// NewRouter creates a gin engine with the global middleware installed
func NewRouter(cfg Config, opts ...RouterOption) *Router {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "gl-posting"
	}

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	_ = engine.SetTrustedProxies(cfg.TrustedProxies)

	r := &Router{
		engine:     engine,
		cfg:        cfg,
		apiVersion: "v1",
	}
	for _, opt := range opts {
		opt(r)
	}

	engine.Use(
		logger.Recovery(cfg.Logger),
		middleware.RequestID(),
		middleware.Secure(),
		middleware.CORS(cfg.CORS),
		middleware.Tracing(cfg.ServiceName, cfg.TracingEnabled),
		middleware.HTTPMetrics(cfg.Meter),
	)
	if cfg.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(cfg.MaxBodySize))
	}
	if cfg.RateLimitEnabled && cfg.RateLimitRequests > 0 {
		engine.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
	}
	return r
}

// RegisterRoot adds a registrar mounted at the engine root
func (r *Router) RegisterRoot(registrar RootRegistrar) *Router {
	r.root = append(r.root, registrar)
	return r
}

// Register adds a registrar mounted under /api/<version>, behind the tenant
// middleware
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.tenant = append(r.tenant, registrar)
	return r
}

// RegisterAdmin adds a registrar mounted under /api/<version>/admin. Admin
// routes span tenants and require no tenant header.
func (r *Router) RegisterAdmin(registrar RouteRegistrar) *Router {
	r.admin = append(r.admin, registrar)
	return r
}

// Setup registers all routes with the engine and returns it
func (r *Router) Setup() *gin.Engine {
	prefix := "/api/" + r.apiVersion

	root := r.engine.Group("", r.scoped()...)
	for _, registrar := range r.root {
		registrar.RegisterRoutes(root)
	}

	admin := r.engine.Group(prefix+"/admin", r.scoped()...)
	for _, registrar := range r.admin {
		registrar.RegisterRoutes(admin)
	}

	tenantChain := append([]gin.HandlerFunc{
		middleware.Tenant(middleware.TenantConfig{Logger: r.cfg.Logger}),
	}, r.scoped()...)
	api := r.engine.Group(prefix, tenantChain...)
	for _, registrar := range r.tenant {
		registrar.RegisterRoutes(api)
	}

	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.NewErrorResponse(dto.ErrCodeRouteNotFound,
			"Route not found", middleware.GetRequestID(c)))
	})
	r.engine.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, dto.NewErrorResponse(dto.ErrCodeMethodNotAllowed,
			"Method not allowed", middleware.GetRequestID(c)))
	})
	return r.engine
}

// Engine returns the underlying gin engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// scoped is the per-group chain that runs once the tenant, if any, is known
func (r *Router) scoped() []gin.HandlerFunc {
	return []gin.HandlerFunc{
		middleware.SpanEnricher(),
		logger.GinMiddleware(r.cfg.Logger),
		middleware.Profiling(r.cfg.ProfilingEnabled),
	}
}
