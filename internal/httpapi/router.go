package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/suPer8Hu/genie-chat/internal/auth"
	"github.com/suPer8Hu/genie-chat/internal/common"
	"github.com/suPer8Hu/genie-chat/internal/config"
	"github.com/suPer8Hu/genie-chat/internal/httpapi/handlers"
	"github.com/suPer8Hu/genie-chat/internal/httpapi/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NewRouter builds the HTTP API. jobs may be nil when RabbitMQ is unavailable.
func NewRouter(db *gorm.DB, cfg config.Config, refresh auth.RefreshStore, jobs handlers.JobPublisher, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := middleware.NewMetrics(reg)

	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(metrics.Handler())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	h := handlers.NewHandler(db, cfg, refresh, jobs, log)

	r.GET("/ping", h.Ping)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// auth
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", middleware.RateLimit(cfg.LoginRatePerMin), h.Login)
	r.POST("/auth/refresh", h.Refresh)

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))
	authGroup.GET("/me", h.Me)

	// Chat (JWT required)
	authGroup.GET("/chat/threads", h.ListThreads)
	authGroup.POST("/chat/threads", h.CreateThread)
	authGroup.GET("/chat/threads/:id", h.GetThread)
	authGroup.DELETE("/chat/threads/:id", h.DeleteThread)
	authGroup.GET("/chat/messages", h.ListMessages)
	authGroup.POST("/chat/messages", h.CreateMessage)
	authGroup.POST("/chat/assistant", h.Ask)
	authGroup.POST("/chat/messages/async", h.SendMessageAsync)
	authGroup.GET("/chat/jobs/:job_id", h.GetJob)
	return r
}
