package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/genie-chat/internal/chat"
	"github.com/suPer8Hu/genie-chat/internal/common"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type createThreadReq struct {
	Title string `json:"title"`
}

// ListThreads handles GET /chat/threads. The optional q parameter filters by
// case-insensitive title substring.
func (h *Handler) ListThreads(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	threads, err := h.ChatSvc.ListThreads(c.Request.Context(), uid, c.Query("q"))
	if err != nil {
		h.Log.Error("list threads failed", h.logFields(c, zap.Error(err))...)
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to fetch chat threads")
		return
	}
	common.OK(c, gin.H{"threads": threads})
}

func (h *Handler) CreateThread(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	var req createThreadReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	th, err := h.ChatSvc.CreateThread(c.Request.Context(), uid, req.Title)
	if err != nil {
		if errors.Is(err, chat.ErrTitleRequired) {
			common.Fail(c, http.StatusBadRequest, 10002, "title is required")
			return
		}
		h.Log.Error("create thread failed", h.logFields(c, zap.Error(err))...)
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to create chat thread")
		return
	}
	common.Created(c, gin.H{"thread": th})
}

func (h *Handler) GetThread(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	th, err := h.ChatSvc.GetThread(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40401, "thread not found")
			return
		}
		h.Log.Error("get thread failed", h.logFields(c, zap.String("thread_id", c.Param("id")), zap.Error(err))...)
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to fetch chat thread")
		return
	}
	common.OK(c, gin.H{"thread": th})
}

func (h *Handler) DeleteThread(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	if err := h.ChatSvc.DeleteThread(c.Request.Context(), uid, c.Param("id")); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40401, "thread not found")
			return
		}
		h.Log.Error("delete thread failed", h.logFields(c, zap.String("thread_id", c.Param("id")), zap.Error(err))...)
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to delete chat thread")
		return
	}
	c.Status(http.StatusNoContent)
}
