package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter wires the routes and middleware.
func NewRouter(h *Handler, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(requestLogger(log.Named("http")), recovery(log.Named("http")))

	router.GET("/healthz", h.Health)

	users := router.Group("/users/:id")
	users.POST("/login", h.Login)
	users.GET("/tasks", h.ListTasks)
	users.POST("/tasks", h.CreateTask)
	users.GET("/tasks/:taskID/eligibility", h.Eligibility)
	users.POST("/tasks/:taskID/complete", h.CompleteTask)
	users.DELETE("/tasks/:taskID", h.DeleteTask)

	return router
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client", c.ClientIP()),
		)
	}
}

func recovery(log *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.Error("panic", zap.Any("recovered", recovered), zap.Stack("stack"))
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "Internal server error"})
	})
}
