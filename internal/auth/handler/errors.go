package handler

import (
	"net/http"

	"ecotrack/internal/apperrors"
	"ecotrack/internal/logger"

	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Error string         `json:"error"`
	Code  apperrors.Code `json:"code"`
}

// writeError answers with the status mapped from the error's code.
func writeError(c *gin.Context, err error) {
	writeErrorStatus(c, apperrors.HTTPStatus(err), err)
}

func writeErrorStatus(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError && apperrors.CodeOf(err) == apperrors.CodeUnknown {
		logger.Error("request failed", map[string]any{
			"method": c.Request.Method,
			"path":   c.FullPath(),
			"error":  err.Error(),
		})
	}
	c.AbortWithStatusJSON(status, errorResponse{
		Error: apperrors.PublicMessage(err),
		Code:  apperrors.CodeOf(err),
	})
}

func badRequest(c *gin.Context) {
	writeError(c, apperrors.New(apperrors.CodeInvalidCredentialsFormat, "invalid request body"))
}
