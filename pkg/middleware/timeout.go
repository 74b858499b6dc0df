package middleware

import (
	"net/http"
	"time"

	"github.com/gin-contrib/timeout"
	"github.com/gin-gonic/gin"
	"github.com/richxcame/rental-risk/pkg/common"
)

// Timeout aborts handlers that run longer than d with a 503 store_unavailable envelope
func Timeout(d time.Duration) gin.HandlerFunc {
	return timeout.New(
		timeout.WithTimeout(d),
		timeout.WithResponse(func(c *gin.Context) {
			common.AppErrorResponse(c, common.NewAppError(
				http.StatusServiceUnavailable, common.ErrorTypeStoreUnavailable, "request timed out", nil,
			))
		}),
	)
}
