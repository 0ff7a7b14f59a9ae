package api

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/LJTian/MediaMon/internal/apikey"
	"github.com/LJTian/MediaMon/internal/domain"
	"github.com/gin-gonic/gin"
)

const apiKeyContextKey = "apiKey"

// requireBearer 校验 Authorization: Bearer <token>
func (s *Server) requireBearer() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			s.fail(c, http.StatusUnauthorized, "Authentication token is missing")
			return
		}
		if _, err := s.tokens.Verify(strings.TrimSpace(raw)); err != nil {
			s.fail(c, http.StatusUnauthorized, "Invalid authentication token")
			return
		}
		c.Next()
	}
}

// requireAPIKey 校验 X-API-Key 并按档位限流；被拒绝的请求不计入配额
func (s *Server) requireAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("X-API-Key")
		if raw == "" {
			s.fail(c, http.StatusUnauthorized, "API key is required")
			return
		}
		key, err := s.keys.Validate(c.Request.Context(), raw)
		if errors.Is(err, apikey.ErrNotFound) {
			s.fail(c, http.StatusUnauthorized, "Invalid API key")
			return
		}
		if err != nil {
			log.Printf("api: validate key failed: %v", err)
			s.fail(c, http.StatusInternalServerError, "internal server error")
			return
		}
		c.Set(apiKeyContextKey, key)

		if !s.limiter.Allow(c.Request.Context(), key.Key, key.EffectiveTier()) {
			s.fail(c, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}
		c.Next()
	}
}

// requireAdmin 必须挂在 requireAPIKey 之后
func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		key, ok := currentKey(c)
		if !ok {
			s.fail(c, http.StatusUnauthorized, "Authentication required")
			return
		}
		if !key.HasPermission(domain.PermAdmin) {
			s.fail(c, http.StatusForbidden, "Admin permission required")
			return
		}
		c.Next()
	}
}

func currentKey(c *gin.Context) (domain.APIKey, bool) {
	v, ok := c.Get(apiKeyContextKey)
	if !ok {
		return domain.APIKey{}, false
	}
	key, ok := v.(domain.APIKey)
	return key, ok
}
