package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/genie-chat/internal/ai"
	"github.com/suPer8Hu/genie-chat/internal/auth"
	"github.com/suPer8Hu/genie-chat/internal/chat"
	"github.com/suPer8Hu/genie-chat/internal/common"
	"github.com/suPer8Hu/genie-chat/internal/config"
	"github.com/suPer8Hu/genie-chat/internal/httpapi/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// JobPublisher enqueues asynchronous assistant replies.
type JobPublisher interface {
	PublishJob(ctx context.Context, jobID string) error
}

type Handler struct {
	DB      *gorm.DB
	Cfg     config.Config
	Log     *zap.Logger
	ChatSvc *chat.Service
	Tokens  *auth.Issuer
	Jobs    JobPublisher
}

// NewHandler wires the chat service and token issuer. jobs may be nil, in
// which case the async message endpoint reports 503.
func NewHandler(db *gorm.DB, cfg config.Config, refresh auth.RefreshStore, jobs JobPublisher, log *zap.Logger) *Handler {
	repo := chat.NewRepo(db)
	reg := ai.NewDefaultRegistry(cfg.AssistantDelay)
	chatSvc := chat.NewService(repo, reg, cfg.AIProvider, 20)

	return &Handler{
		DB:      db,
		Cfg:     cfg,
		Log:     log,
		ChatSvc: chatSvc,
		Tokens: &auth.Issuer{
			Secret:     cfg.JWTSecret,
			AccessTTL:  cfg.AccessTokenTTL,
			RefreshTTL: cfg.RefreshTokenTTL,
			Store:      refresh,
		},
		Jobs: jobs,
	}
}

func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "pong"})
}

func userIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

// requireUser writes 401 and returns false when the auth middleware did not run.
func requireUser(c *gin.Context) (string, bool) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
	}
	return uid, ok
}

func (h *Handler) logFields(c *gin.Context, fields ...zap.Field) []zap.Field {
	base := []zap.Field{
		zap.String("request_id", c.GetString(middleware.RequestIDKey)),
		zap.String("user_id", c.GetString(middleware.UserIDKey)),
	}
	return append(base, fields...)
}
