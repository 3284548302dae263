package utils

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Envelope est la forme commune de toutes les réponses JSON
type Envelope struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func Respond(c *gin.Context, status int, message string, data any) {
	if status == http.StatusNoContent {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(status, Envelope{Status: status, Message: message, Data: data})
}

// RespondError traduit une erreur en enveloppe. Les erreurs inconnues deviennent un 500.
func RespondError(c *gin.Context, err error) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		log.Printf("❌ Erreur interne %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		abortJSON(c, http.StatusInternalServerError, "Something went wrong!", gin.H{"error": "Internal server error"})
		return
	}

	if appErr.Status() >= http.StatusInternalServerError {
		log.Printf("❌ %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	abortJSON(c, appErr.Status(), appErr.Title(), gin.H{"error": appErr.Message})
}

func abortJSON(c *gin.Context, status int, message string, data any) {
	c.AbortWithStatusJSON(status, Envelope{Status: status, Message: message, Data: data})
}
