package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetClientConfig serves every active parameter resolved for the caller's locale.
func (s *Server) GetClientConfig(c *gin.Context) {
	snapshot, err := s.parameterSvc.GetClientConfig(c.Request.Context(), c.Query("locale"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": snapshot})
}
