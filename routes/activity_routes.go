package routes

import (
	"github.com/activity-point/api-go/controllers"
	"github.com/gin-gonic/gin"
)

func SetupActivityRoutes(protected *gin.RouterGroup, activityController *controllers.ActivityController) {
	activities := protected.Group("/activities")
	{
		activities.GET("", activityController.ListActivities)
		activities.POST("", activityController.CreateActivity)
		activities.GET("/all", activityController.ListAllActivities)
		activities.GET("/types", activityController.ListTypes)
		activities.GET("/creator", activityController.ListCreated)
		activities.GET("/participant", activityController.ListJoined)

		activities.GET("/:id", activityController.GetActivity)
		activities.PUT("/:id", activityController.UpdateActivity)
		activities.DELETE("/:id", activityController.DeleteActivity)

		// Participation
		activities.GET("/:id/participants", activityController.ListParticipants)
		activities.POST("/:id/subscribe", activityController.Subscribe)
		activities.DELETE("/:id/unsubscribe", activityController.Unsubscribe)
		activities.PUT("/:id/approve", activityController.ApproveParticipant)
		activities.POST("/:id/check-in", activityController.CheckIn)
		activities.PUT("/:id/confirm-presence", activityController.ConfirmPresence)
		activities.PUT("/:id/complete", activityController.CompleteActivity)
	}
}
