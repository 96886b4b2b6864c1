package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/genie-chat/internal/chat"
	"github.com/suPer8Hu/genie-chat/internal/common"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type createMessageReq struct {
	ThreadID string `json:"threadId"`
	Role     string `json:"role"`
	Content  string `json:"content"`
}

type askReq struct {
	Message string `json:"message"`
	Model   string `json:"model"`
}

type asyncMessageReq struct {
	ThreadID string `json:"threadId"`
	Message  string `json:"message"`
}

func (h *Handler) ListMessages(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	threadID := c.Query("threadId")
	if threadID == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "thread id is required")
		return
	}
	msgs, err := h.ChatSvc.ListMessages(c.Request.Context(), uid, threadID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40401, "thread not found or access denied")
			return
		}
		h.Log.Error("list messages failed", h.logFields(c, zap.String("thread_id", threadID), zap.Error(err))...)
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to fetch messages")
		return
	}
	common.OK(c, gin.H{"messages": msgs})
}

func (h *Handler) CreateMessage(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	var req createMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	msg, err := h.ChatSvc.AppendMessage(c.Request.Context(), uid, req.ThreadID, req.Role, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrInvalidMessage):
			common.Fail(c, http.StatusBadRequest, 10002, err.Error())
		case errors.Is(err, gorm.ErrRecordNotFound):
			common.Fail(c, http.StatusNotFound, 40401, "thread not found or access denied")
		default:
			h.Log.Error("create message failed", h.logFields(c, zap.String("thread_id", req.ThreadID), zap.Error(err))...)
			common.Fail(c, http.StatusInternalServerError, 50001, "failed to create message")
		}
		return
	}
	common.Created(c, gin.H{"message": msg})
}

// Ask handles POST /chat/assistant: a stateless canned reply.
func (h *Handler) Ask(c *gin.Context) {
	var req askReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	reply, model, err := h.ChatSvc.Ask(c.Request.Context(), req.Message, req.Model)
	if err != nil {
		if errors.Is(err, chat.ErrMessageRequired) {
			common.Fail(c, http.StatusBadRequest, 10002, "message is required")
			return
		}
		h.Log.Error("assistant failed", h.logFields(c, zap.Error(err))...)
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to get response from assistant")
		return
	}
	common.OK(c, gin.H{
		"response": reply,
		"model":    model,
		"done":     true,
	})
}

// SendMessageAsync stores the user message and enqueues the assistant reply.
func (h *Handler) SendMessageAsync(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	if h.Jobs == nil {
		common.Fail(c, http.StatusServiceUnavailable, 50003, "async replies unavailable")
		return
	}
	var req asyncMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if req.ThreadID == "" || strings.TrimSpace(req.Message) == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "thread id and message are required")
		return
	}

	idempoKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if len(idempoKey) > 128 {
		common.Fail(c, http.StatusBadRequest, 10003, "idempotency key too long")
		return
	}
	var idempoKeyPtr *string
	if idempoKey != "" {
		idempoKeyPtr = &idempoKey
	}

	ctx := c.Request.Context()
	if _, _, err := h.ChatSvc.InsertUserMessageOrGetExisting(ctx, uid, req.ThreadID, req.Message, idempoKeyPtr); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40401, "thread not found")
			return
		}
		h.Log.Error("insert user message failed", h.logFields(c, zap.String("thread_id", req.ThreadID), zap.Error(err))...)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	jobID, err := common.NewULID()
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	j, created, err := h.ChatSvc.CreateJobOrGetExisting(ctx, &chat.Job{
		ID:             jobID,
		UserID:         uid,
		ThreadID:       req.ThreadID,
		Prompt:         req.Message,
		IdempotencyKey: idempoKeyPtr,
		Status:         chat.JobQueued,
	})
	if err != nil {
		h.Log.Error("create job failed", h.logFields(c, zap.String("job_id", jobID), zap.Error(err))...)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	// Enqueue only when a new job was created
	if created {
		if err := h.Jobs.PublishJob(ctx, j.ID); err != nil {
			h.Log.Error("publish job failed", h.logFields(c, zap.String("job_id", j.ID), zap.Error(err))...)
			_ = h.ChatSvc.MarkJobFailed(ctx, j.ID, "enqueue failed")
			common.Fail(c, http.StatusInternalServerError, 50002, "enqueue failed")
			return
		}
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": j.ID})
}

func (h *Handler) GetJob(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	j, err := h.ChatSvc.GetJob(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40402, "job not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	if j.UserID != uid {
		// hide existence
		common.Fail(c, http.StatusNotFound, 40402, "job not found")
		return
	}

	common.OK(c, gin.H{
		"job": gin.H{
			"id":                j.ID,
			"thread_id":         j.ThreadID,
			"status":            j.Status,
			"result_message_id": j.ResultMessageID,
			"error":             j.Error,
			"created_at":        j.CreatedAt,
			"updated_at":        j.UpdatedAt,
		},
	})
}
