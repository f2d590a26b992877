package routes

import (
	"github.com/activity-point/api-go/controllers"
	"github.com/gin-gonic/gin"
)

func SetupAchievementRoutes(protected *gin.RouterGroup, achievementController *controllers.AchievementController, leaderboardController *controllers.LeaderboardController) {
	protected.GET("/achievements", achievementController.ListAchievements)
	protected.GET("/leaderboard", leaderboardController.GetLeaderboard)
}
