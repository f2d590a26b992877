package routes

import (
	"github.com/activity-point/api-go/controllers"
	"github.com/gin-gonic/gin"
)

func SetupUserRoutes(protected *gin.RouterGroup, userController *controllers.UserController) {
	users := protected.Group("/users")
	{
		users.PUT("/avatar", userController.ChangeAvatar)
		users.GET("/preferences", userController.GetPreferences)
		users.PUT("/preferences", userController.DefinePreferences)

		users.GET("/:id", userController.GetUser)
		users.PUT("/:id", userController.UpdateUser)
		users.DELETE("/:id", userController.DeleteUser)
	}
}
