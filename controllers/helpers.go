package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/habitly/middleware"
	"github.com/cppla/habitly/services"
	"github.com/cppla/habitly/utils"
)

func getUserID(ctx *gin.Context) (uint, bool) {
	value, exists := ctx.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		return uint(v), true
	case int64:
		return uint(v), true
	case float64:
		return uint(v), true
	default:
		return 0, false
	}
}

// requireUser writes 401 and returns false when the request is not authenticated.
func requireUser(ctx *gin.Context) (uint, bool) {
	userID, ok := getUserID(ctx)
	if !ok || userID == 0 {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return 0, false
	}
	return userID, true
}

// habitIDParam reads :id, writing 400 when it is not a positive integer.
func habitIDParam(ctx *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(ctx.Param("id")), 10, 64)
	if err != nil || id == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid habit id")
		return 0, false
	}
	return uint(id), true
}

// intQuery parses an optional integer query parameter, falling back to def when absent.
func intQuery(ctx *gin.Context, key string, def int) (int, bool) {
	raw := strings.TrimSpace(ctx.Query(key))
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40021, "invalid "+key)
		return 0, false
	}
	return n, true
}

// respondServiceError maps the tracker error kinds onto HTTP statuses.
func respondServiceError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		utils.Error(ctx, http.StatusBadRequest, 40022, err.Error())
	case errors.Is(err, services.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, 40420, err.Error())
	case errors.Is(err, services.ErrConfiguration):
		utils.Error(ctx, http.StatusUnprocessableEntity, 42220, err.Error())
	default:
		utils.Sugar.Errorw("request failed", "path", ctx.FullPath(), "error", err)
		utils.Error(ctx, http.StatusInternalServerError, 50020, "internal error, nothing was saved")
	}
}
