package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// respond 统一的响应外壳：status/code/timestamp 必带，message 与 data 可选
func (s *Server) respond(c *gin.Context, code int, message string, data any) {
	status := "success"
	if code >= http.StatusBadRequest {
		status = "error"
	}
	body := gin.H{
		"status":    status,
		"code":      code,
		"timestamp": s.now().UTC().Format(time.RFC3339),
	}
	if message != "" {
		body["message"] = message
	}
	if data != nil {
		body["data"] = data
	}
	c.JSON(code, body)
}

func (s *Server) fail(c *gin.Context, code int, message string) {
	s.respond(c, code, message, nil)
	c.Abort()
}
