package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/rental-risk/pkg/common"
	"github.com/richxcame/rental-risk/pkg/logger"
	"go.uber.org/zap"
)

// Recovery middleware recovers from panics
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.WithContext(c.Request.Context()).Error("Panic recovered",
					zap.Any("error", err),
					zap.String("path", c.Request.URL.Path),
					zap.String("method", c.Request.Method),
				)

				common.AppErrorResponse(c, common.NewAppError(
					http.StatusInternalServerError, common.ErrorTypeInternal, "internal server error", nil,
				))
				c.Abort()
			}
		}()

		c.Next()
	}
}
