package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Message is the human-readable part of the envelope.
type Message struct {
	Text string `json:"text"`
}

// Envelope wraps every response body, success or error.
type Envelope struct {
	StatusCode int     `json:"statusCode"`
	Message    Message `json:"message"`
	Data       any     `json:"data"`
}

// JSON writes an enveloped response with the given status.
func JSON(c *gin.Context, status int, text string, data any) {
	c.JSON(status, Envelope{
		StatusCode: status,
		Message:    Message{Text: text},
		Data:       data,
	})
}

// OK writes a 200 enveloped response.
func OK(c *gin.Context, text string, data any) {
	JSON(c, http.StatusOK, text, data)
}
