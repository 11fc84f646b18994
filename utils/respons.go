package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type JSONResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Detail  string      `json:"detail,omitempty"`
}

// ShowErrorDetail exposes the cause chain in error responses. Off in production.
var ShowErrorDetail = true

func RespondJSON(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, JSONResponse{
		Success: code >= 200 && code < 300,
		Message: message,
		Data:    data,
	})
}

// RespondError maps err onto the envelope. Errors that are not AppErrors are
// logged and reported as 500.
func RespondError(c *gin.Context, err error) {
	resp := JSONResponse{Success: false}
	code := http.StatusInternalServerError

	if appErr, ok := GetAppError(err); ok {
		code = appErr.Status
		resp.Message = appErr.Message
		if ShowErrorDetail && appErr.Err != nil {
			resp.Detail = appErr.Err.Error()
		}
	} else {
		resp.Message = "internal error"
		if ShowErrorDetail {
			resp.Detail = err.Error()
		}
	}

	if code >= http.StatusInternalServerError {
		ErrorLogger.WithFields(logrus.Fields{
			"path":       c.Request.URL.Path,
			"request_id": RequestIDFrom(c.Request.Context()),
		}).Error(err)
	}
	c.AbortWithStatusJSON(code, resp)
}

// BindError turns a gin binding failure into a validation error.
func BindError(err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return err
	}
	return &AppError{Kind: KindValidation, Message: "invalid request body", Status: http.StatusBadRequest, Err: err}
}
