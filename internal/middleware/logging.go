package middleware

import (
	"log"
	"net/http"
	"runtime/debug"
	"time"

	"mutaengine_back_end/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-ID"

// RequestID reprend l'id du client ou en génère un
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// Logger écrit une ligne par requête. La query n'est pas loggée : elle peut porter un token.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		marker := "📥"
		switch {
		case status >= http.StatusInternalServerError:
			marker = "❌"
		case status >= http.StatusBadRequest:
			marker = "⚠️"
		}
		log.Printf("%s %s %s %d %s [%s]", marker, c.Request.Method, c.Request.URL.Path, status,
			time.Since(start).Round(time.Microsecond), c.GetString("request_id"))
	}
}

// Recovery transforme un panic en 500 dans l'enveloppe habituelle
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("❌ panic %s %s [%s]: %v\n%s", c.Request.Method, c.Request.URL.Path,
					c.GetString("request_id"), r, debug.Stack())
				if c.Writer.Written() {
					c.Abort()
					return
				}
				c.AbortWithStatusJSON(http.StatusInternalServerError, utils.Envelope{
					Status:  http.StatusInternalServerError,
					Message: "Something went wrong!",
					Data:    gin.H{"error": "Internal server error"},
				})
			}
		}()
		c.Next()
	}
}
