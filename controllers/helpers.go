package controllers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-platform/middlewares"
	"github.com/yeremiapane/restaurant-platform/utils"
)

// paramID reads a positive numeric path parameter.
func paramID(c *gin.Context, name string) (uint, error) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, utils.NewValidationError("invalid %s %q", name, raw)
	}
	return uint(id), nil
}

func queryUint(c *gin.Context, name string) (uint, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, utils.NewValidationError("invalid %s %q", name, raw)
	}
	return uint(n), nil
}

// queryIDs parses ?ids=1,2,3.
func queryIDs(c *gin.Context, name string) ([]uint, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	var ids []uint
	for _, part := range strings.Split(raw, ",") {
		n, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, utils.NewValidationError("invalid %s %q", name, raw)
		}
		ids = append(ids, uint(n))
	}
	return ids, nil
}

func currentUser(c *gin.Context) uint {
	return middlewares.CurrentUserID(c)
}
