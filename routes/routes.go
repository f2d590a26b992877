package routes

import (
	"net/http"

	"github.com/activity-point/api-go/controllers"
	"github.com/activity-point/api-go/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

type Controllers struct {
	Auth         *controllers.AuthController
	Activities   *controllers.ActivityController
	Users        *controllers.UserController
	Achievements *controllers.AchievementController
	Leaderboard  *controllers.LeaderboardController
}

type AuthSettings struct {
	Secret string
	Issuer string
}

func SetupRoutes(r *gin.Engine, db *gorm.DB, c Controllers, auth AuthSettings) {
	r.GET("/health", health(db))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public routes
	public := r.Group("/api/auth")
	{
		public.POST("/register", c.Auth.Register)
		public.POST("/login", c.Auth.Login)
	}

	// Protected routes
	protected := r.Group("/api")
	protected.Use(middleware.AuthMiddleware(auth.Secret, auth.Issuer))
	{
		SetupActivityRoutes(protected, c.Activities)
		SetupUserRoutes(protected, c.Users)
		SetupAchievementRoutes(protected, c.Achievements, c.Leaderboard)
	}
}

func health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
