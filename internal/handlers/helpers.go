// Package handlers serves the read-only launch status API.
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// respondWithError unified error response function
func respondWithError(c *gin.Context, statusCode int, errorType, message string, details interface{}) {
	response := gin.H{
		"error":   errorType,
		"message": message,
	}
	if details != nil {
		response["details"] = details
	}
	c.JSON(statusCode, response)
}

// parsePagination reads page and size (or limit) query parameters.
func parsePagination(c *gin.Context) (int, int) {
	page := 1
	if val, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil && val > 0 {
		page = val
	}

	size := defaultPageSize
	raw := c.Query("limit")
	if raw == "" {
		raw = c.Query("size")
	}
	if val, err := strconv.Atoi(raw); err == nil && val > 0 {
		if val > maxPageSize {
			val = maxPageSize
		}
		size = val
	}
	return page, size
}
