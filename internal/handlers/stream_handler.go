package handlers

import (
	"github.com/gin-gonic/gin"

	"token-launcher/internal/services"
)

// LaunchStreamHandler handles GET /api/stream/launches. ?run=<id> limits
// the stream to one run.
func LaunchStreamHandler(stream *services.LaunchStream) gin.HandlerFunc {
	return func(c *gin.Context) {
		stream.ServeWS(c.Writer, c.Request, c.Query("run"))
	}
}
