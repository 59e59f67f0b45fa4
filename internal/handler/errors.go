package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/identity-gateway/internal/dto"
	"github.com/prperemyshlev/identity-gateway/internal/service"
	"go.uber.org/zap"
)

var errorStatus = map[service.ErrorKind]struct {
	status int
	label  string
}{
	service.KindValidation:         {http.StatusBadRequest, "Validation failed"},
	service.KindDuplicateAccount:   {http.StatusBadRequest, "Duplicate account"},
	service.KindInvalidCredentials: {http.StatusUnauthorized, "Unauthorized"},
	service.KindTokenExpired:       {http.StatusUnauthorized, "Token expired"},
	service.KindTokenInvalid:       {http.StatusUnauthorized, "Invalid token"},
	service.KindNotConfigured:      {http.StatusServiceUnavailable, "Service unavailable"},
	service.KindForbidden:          {http.StatusForbidden, "Forbidden"},
	service.KindNotFound:           {http.StatusNotFound, "Not found"},
	service.KindUnauthorized:       {http.StatusUnauthorized, "Unauthorized"},
	service.KindConflict:           {http.StatusConflict, "Conflict"},
}

// respondError writes err as an ErrorResponse. Unclassified and internal
// errors are logged and answered with a generic 500.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		if mapped, ok := errorStatus[svcErr.Kind]; ok {
			resp := dto.ErrorResponse{Error: mapped.label, Message: svcErr.Message}
			if len(svcErr.Details) > 0 {
				resp.Details = svcErr.Details
			}
			c.AbortWithStatusJSON(mapped.status, resp)
			return
		}
	}

	logger.Error("Request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	c.AbortWithStatusJSON(http.StatusInternalServerError, dto.ErrorResponse{
		Error:   "Internal server error",
		Message: "An unexpected error occurred",
	})
}

func respondBindError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, dto.ErrorResponse{
		Error:   "Validation failed",
		Message: err.Error(),
	})
}
