package middleware

import (
	"context"
	"strings"

	"github.com/JasonPDev313/Oppsera-sub010/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
)

// Profiling tags the CPU samples of each request with pprof labels for
// pyroscope: controller, route pattern, method and tenant. Paths in skip are
// left unlabelled. Place it after Tenant.
func Profiling(enabled bool, skip ...string) gin.HandlerFunc {
	if !enabled {
		return func(c *gin.Context) { c.Next() }
	}
	skipped := make(map[string]bool, len(skip))
	for _, p := range skip {
		skipped[p] = true
	}

	return func(c *gin.Context) {
		if skipped[c.Request.URL.Path] {
			c.Next()
			return
		}
		route := c.FullPath()
		labels := telemetry.HTTPRequestLabels(controllerOf(route), route, c.Request.Method, tenantLabel(c))
		telemetry.WithProfilingLabels(c.Request.Context(), labels, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

// controllerOf derives a controller name from a route pattern by skipping the
// api prefix, version and module segments:
// "/api/v1/gl/journal-entries/:id" is "journal-entries".
func controllerOf(route string) string {
	for _, part := range strings.Split(route, "/") {
		switch {
		case part == "", part == "api", part == "gl", isVersionSegment(part):
			continue
		case strings.HasPrefix(part, ":"), strings.HasPrefix(part, "*"):
			continue
		default:
			return part
		}
	}
	return ""
}

func isVersionSegment(s string) bool {
	if len(s) < 2 || (s[0] != 'v' && s[0] != 'V') {
		return false
	}
	for i := 1; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
