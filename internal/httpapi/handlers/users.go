package handlers

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/suPer8Hu/genie-chat/internal/auth"
	"github.com/suPer8Hu/genie-chat/internal/common"
	"github.com/suPer8Hu/genie-chat/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type credentialsReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

func userJSON(u *models.User) gin.H {
	return gin.H{
		"id":         u.ID,
		"email":      u.Email,
		"created_at": u.CreatedAt,
	}
}

func (h *Handler) Register(c *gin.Context) {
	var req credentialsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "email and password required")
		return
	}
	if _, err := mail.ParseAddress(email); err != nil || len(req.Password) < 6 {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid email or password too short")
		return
	}

	var cnt int64
	if err := h.DB.WithContext(c.Request.Context()).Model(&models.User{}).Where("email = ?", email).Count(&cnt).Error; err != nil {
		h.Log.Error("count users failed", h.logFields(c, zap.Error(err))...)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	if cnt > 0 {
		common.Fail(c, http.StatusConflict, 40900, "email already registered")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to hash password")
		return
	}

	user := models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
	}
	if err := h.DB.WithContext(c.Request.Context()).Create(&user).Error; err != nil {
		common.Fail(c, http.StatusConflict, 40900, "email already registered")
		return
	}

	h.issue(c, &user)
}

func (h *Handler) Login(c *gin.Context) {
	var req credentialsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "email and password required")
		return
	}

	var user models.User
	err := h.DB.WithContext(c.Request.Context()).Where("email = ?", email).First(&user).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		h.Log.Error("load user failed", h.logFields(c, zap.Error(err))...)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	if err != nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		common.Fail(c, http.StatusUnauthorized, 40102, "invalid email or password")
		return
	}

	h.issue(c, &user)
}

func (h *Handler) issue(c *gin.Context, user *models.User) {
	pair, err := h.Tokens.Issue(c.Request.Context(), user.ID)
	if err != nil {
		h.Log.Error("issue tokens failed", h.logFields(c, zap.String("uid", user.ID), zap.Error(err))...)
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to sign token")
		return
	}
	common.OK(c, gin.H{
		"user":          userJSON(user),
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"expires_in":    pair.ExpiresIn,
	})
}

func (h *Handler) Refresh(c *gin.Context) {
	var req refreshReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	_, pair, err := h.Tokens.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			common.Fail(c, http.StatusUnauthorized, 40103, "invalid refresh token")
			return
		}
		h.Log.Error("refresh tokens failed", h.logFields(c, zap.Error(err))...)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	common.OK(c, pair)
}

func (h *Handler) Me(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	var user models.User
	if err := h.DB.WithContext(c.Request.Context()).First(&user, "id = ?", uid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40403, "user not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "db error")
		return
	}
	common.OK(c, gin.H{"user": userJSON(&user)})
}
