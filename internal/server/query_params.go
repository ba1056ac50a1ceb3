package server

import (
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

func parseOptionalSnowflakeID(value string) (*snowflake.ID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := snowflake.ParseString(trimmed)
	if err != nil || parsed <= 0 {
		return nil, errors.New("invalid_snowflake_id")
	}
	return &parsed, nil
}

// pathID parses the :id route parameter and aborts the request when it is malformed.
func pathID(c *gin.Context) (snowflake.ID, bool) {
	id, err := parseOptionalSnowflakeID(c.Param("id"))
	if err != nil || id == nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return 0, false
	}
	return *id, true
}

func queryID(c *gin.Context, key string) (snowflake.ID, bool) {
	id, err := parseOptionalSnowflakeID(c.Query(key))
	if err != nil {
		AbortWithError(c, newValidationError(key, "invalid_id", "invalid id"))
		return 0, false
	}
	if id == nil {
		return 0, true
	}
	return *id, true
}

func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		AbortWithError(c, invalidRequestError())
		return false
	}
	return true
}
