package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/rental-risk/pkg/common"
	"github.com/richxcame/rental-risk/pkg/logger"
	"github.com/richxcame/rental-risk/pkg/ratelimit"
	"go.uber.org/zap"
)

// Allower is satisfied by *ratelimit.Limiter
type Allower interface {
	Allow(ctx context.Context, key string, rule ratelimit.Rule) (*ratelimit.Result, error)
}

// RateLimit caps mutating requests per authenticated user. Reads pass
// through, and a failing limiter lets the request proceed.
func RateLimit(limiter Allower, rule ratelimit.Rule) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			c.Next()
			return
		}

		key := c.ClientIP()
		if userID, err := GetUserID(c); err == nil {
			key = userID.String()
		}

		result, err := limiter.Allow(c.Request.Context(), key, rule)
		if err != nil {
			logger.WithContext(c.Request.Context()).Warn("rate limit check failed", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		if !result.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(result.ResetAfter.Seconds())+1))
			common.AppErrorResponse(c, common.NewTooManyRequestsError("too many admin actions, slow down"))
			c.Abort()
			return
		}
		c.Next()
	}
}
