package respond

import (
	"github.com/gin-gonic/gin"

	"docsum-backend/internal/shared/apperr"
	"docsum-backend/internal/shared/telemetry"
)

// Error sends an enveloped error response and aborts the chain.
func Error(c *gin.Context, status int, text string, data any) {
	fields := map[string]any{
		"status":     status,
		"message":    text,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"request_id": c.GetString("requestId"),
	}
	if id := c.Param("id"); id != "" {
		fields["document_id"] = id
	}
	telemetry.Error("http.error", fields)

	c.AbortWithStatusJSON(status, Envelope{
		StatusCode: status,
		Message:    Message{Text: text},
		Data:       data,
	})
}

// Err maps a classified error to its status and message. Upstream failures
// carry the underlying error text in data.error.
func Err(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	var data any
	switch apperr.KindOf(err) {
	case apperr.KindAnalysis, apperr.KindExtraction, apperr.KindStorage:
		data = gin.H{"error": err.Error()}
	}
	if status >= 500 {
		telemetry.Error("http.cause", map[string]any{
			"path": c.Request.URL.Path,
			"err":  err,
		})
	}
	Error(c, status, apperr.MessageOf(err), data)
}
