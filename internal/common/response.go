package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// OK writes data as the response body with status 200.
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// Created writes data with status 201.
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// Fail writes the error envelope. code is the 5-digit business code.
func Fail(c *gin.Context, httpStatus int, code int, msg string) {
	c.AbortWithStatusJSON(httpStatus, gin.H{
		"code":  code,
		"error": msg,
	})
}
