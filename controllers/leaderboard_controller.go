package controllers

import (
	"net/http"

	"github.com/activity-point/api-go/services"
	"github.com/gin-gonic/gin"
)

type LeaderboardController struct {
	Users *services.UserService
}

type LeaderboardQuery struct {
	Page     int `form:"page,default=1" binding:"min=1"`
	PageSize int `form:"pageSize,default=10" binding:"min=1,max=50"`
}

func NewLeaderboardController(users *services.UserService) *LeaderboardController {
	return &LeaderboardController{Users: users}
}

// GetLeaderboard ranks users by XP; the caller's own rank goes in meta.
func (lc *LeaderboardController) GetLeaderboard(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var query LeaderboardQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondBindError(c, err)
		return
	}

	board, err := lc.Users.Leaderboard(c.Request.Context(), userID, query.Page, query.PageSize)
	if err != nil {
		respondError(c, err)
		return
	}

	meta := gin.H{}
	if board.UserRank > 0 {
		meta["userRank"] = board.UserRank
	}
	c.JSON(http.StatusOK, StandardResponse{
		Success:    true,
		Data:       board.Entries,
		Meta:       meta,
		Pagination: paginationMeta(board.Page, board.PageSize, board.Total),
	})
}
