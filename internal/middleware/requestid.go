package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader carries the request identifier in both directions.
	RequestIDHeader = "X-Request-ID"

	// RequestIDKey is the gin.Context key holding the request identifier.
	RequestIDKey = "request_id"
)

// maxRequestIDLength bounds identifiers accepted from callers
const maxRequestIDLength = 128

// RequestIDMiddleware reuses an inbound X-Request-ID or generates a UUID v4,
// stores it under RequestIDKey and echoes it in the response so a visitor's
// report can be matched with the server logs.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.New().String()
		}

		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)

		c.Next()
	}
}

// GetRequestID returns the identifier assigned by RequestIDMiddleware, or ""
func GetRequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}
