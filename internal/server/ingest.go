package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/betbot/swingfeed/internal/domain"
)

// handleIngest accepts a play result pushed by an upstream monitor and
// feeds it into the hub for any stream subscribers. The body is the same
// record the push sink emits; acceptance is acknowledged with 202 before
// fan-out completes.
func (s *Server) handleIngest(c *gin.Context) {
	var r domain.PlayResult
	if err := c.ShouldBindJSON(&r); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid play payload"})
		return
	}
	r.EventID = c.Param("gameID")
	if r.PlayID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "play_id is required"})
		return
	}

	s.hub.Publish(r)
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "play_id": r.PlayID})
}

// handleResults returns everything buffered for the game past the given
// offset, for consumers that poll instead of streaming.
func (s *Server) handleResults(c *gin.Context) {
	gameID := c.Param("gameID")
	since := intQuery(c, "since", 0)
	results := s.hub.Results(gameID, since)
	c.JSON(http.StatusOK, gin.H{
		"game_id": gameID,
		"since":   since,
		"count":   len(results),
		"plays":   results,
	})
}
