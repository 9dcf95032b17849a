package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/JasonPDev313/Oppsera-sub010/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/go-chi/httprate"
)

// RateLimit allows requests per window for each tenant and client IP pair.
// Requests over the limit get 429 with the X-RateLimit headers set.
func RateLimit(requests int, window time.Duration) gin.HandlerFunc {
	limiter := httprate.Limit(requests, window,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			writeJSONError(w, http.StatusTooManyRequests, dto.ErrCodeRateLimited,
				"Too many requests. Please try again later.", w.Header().Get(RequestIDHeader))
		}),
	)

	return func(c *gin.Context) {
		passed := false
		next := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			passed = true
			c.Request = r
			c.Next()
		})
		limiter(next).ServeHTTP(c.Writer, c.Request)
		if !passed {
			c.Abort()
		}
	}
}

func rateLimitKey(r *http.Request) (string, error) {
	ip, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	if tenant := r.Header.Get(TenantHeader); tenant != "" {
		return tenant + ":" + ip, nil
	}
	return ip, nil
}

func writeJSONError(w http.ResponseWriter, status int, code, message, requestID string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(dto.NewErrorResponse(code, message, requestID))
}
