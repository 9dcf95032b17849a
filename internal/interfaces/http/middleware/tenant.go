package middleware

import (
	"net/http"

	"github.com/JasonPDev313/Oppsera-sub010/internal/infrastructure/logger"
	"github.com/JasonPDev313/Oppsera-sub010/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Tenant context key and header
const (
	TenantIDKey  = "tenant_id"
	TenantHeader = "X-Tenant-ID"
)

// TenantConfig configures Tenant
type TenantConfig struct {
	// SkipPaths are served without a tenant, e.g. health checks
	SkipPaths []string
	Logger    *zap.Logger
}

// Tenant requires a uuid X-Tenant-ID header. The tenant is stored on the gin
// context and on the request context, where the logger and the unit of work
// pick it up.
func Tenant(cfg TenantConfig) gin.HandlerFunc {
	skip := make(map[string]bool, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = true
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		if skip[c.Request.URL.Path] {
			c.Next()
			return
		}

		raw := c.GetHeader(TenantHeader)
		if raw == "" {
			abortWithError(c, http.StatusBadRequest, dto.ErrCodeTenantRequired, "X-Tenant-ID header is required")
			return
		}
		tenantID, err := uuid.Parse(raw)
		if err != nil || tenantID == uuid.Nil {
			log.Debug("rejected tenant header", zap.String("value", raw))
			abortWithError(c, http.StatusBadRequest, dto.ErrCodeTenantRequired, "X-Tenant-ID must be a non-nil UUID")
			return
		}

		c.Set(TenantIDKey, tenantID)
		c.Request = c.Request.WithContext(logger.WithTenantID(c.Request.Context(), tenantID.String()))
		c.Next()
	}
}

// GetTenantID returns the tenant set by Tenant
func GetTenantID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(TenantIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

func tenantLabel(c *gin.Context) string {
	if id, ok := GetTenantID(c); ok {
		return id.String()
	}
	return ""
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, dto.NewErrorResponse(code, message, GetRequestID(c)))
}
