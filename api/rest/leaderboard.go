package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/shoreline-games/shorebot/game/events"
	"github.com/shoreline-games/shorebot/game/leaderboard"
)

// LeaderboardHandler serves the wealth ranking and the recent event feed.
type LeaderboardHandler struct {
	board  *leaderboard.Service
	events *events.Publisher
}

func NewLeaderboardHandler(board *leaderboard.Service, pub *events.Publisher) *LeaderboardHandler {
	return &LeaderboardHandler{board: board, events: pub}
}

// Top handles GET /api/leaderboard?limit=10.
func (h *LeaderboardHandler) Top(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if limit < 1 || limit > 100 {
		limit = 10
	}
	entries, err := h.board.Top(c.Request.Context(), limit)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// Recent handles GET /api/events/recent?limit=20.
func (h *LeaderboardHandler) Recent(c *gin.Context) {
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)
	if limit < 1 || limit > 100 {
		limit = 20
	}
	evts, err := h.events.Recent(c.Request.Context(), limit)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": evts})
}
