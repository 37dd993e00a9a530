package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"organizerpro/backend/pkg/response"
)

// BodyLimit 请求体大小限制中间件，maxBytes <= 0 时不限制
// 超限时读取 body 的 Handler 会得到绑定错误，这里提前按 Content-Length 拒绝
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes <= 0 {
			c.Next()
			return
		}
		if c.Request.ContentLength > maxBytes {
			response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
			c.Abort()
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}

		c.Next()
	}
}
