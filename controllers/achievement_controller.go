package controllers

import (
	"net/http"

	"github.com/activity-point/api-go/services"
	"github.com/gin-gonic/gin"
)

type AchievementController struct {
	Catalog *services.Catalog
}

func NewAchievementController(catalog *services.Catalog) *AchievementController {
	return &AchievementController{Catalog: catalog}
}

func (ac *AchievementController) ListAchievements(c *gin.Context) {
	achievements, err := ac.Catalog.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: achievements})
}
