package controllers

import (
	"net/http"
	"time"

	"github.com/activity-point/api-go/services"
	"github.com/gin-gonic/gin"
)

type ActivityController struct {
	Activities *services.ActivityService
	Types      *services.ActivityTypeCatalog
}

type ActivityRequest struct {
	Title         string    `json:"title" binding:"required,max=120"`
	Description   string    `json:"description" binding:"required"`
	TypeID        uint      `json:"typeId" binding:"required"`
	ScheduledDate time.Time `json:"scheduledDate" binding:"required"`
	Private       bool      `json:"private"`
	Latitude      *float64  `json:"latitude" binding:"required,min=-90,max=90"`
	Longitude     *float64  `json:"longitude" binding:"required,min=-180,max=180"`
	Image         string    `json:"image" binding:"omitempty,url"`
	Tags          []string  `json:"tags" binding:"max=10,dive,max=30"`
}

func (r ActivityRequest) input() services.ActivityInput {
	return services.ActivityInput{
		Title:         r.Title,
		Description:   r.Description,
		TypeID:        r.TypeID,
		ScheduledDate: r.ScheduledDate,
		Private:       r.Private,
		Latitude:      *r.Latitude,
		Longitude:     *r.Longitude,
		Image:         r.Image,
		Tags:          r.Tags,
	}
}

type ActivityListQuery struct {
	Page     int    `form:"page,default=1" binding:"min=1"`
	PageSize int    `form:"pageSize,default=10" binding:"min=1,max=50"`
	TypeID   uint   `form:"typeId"`
	OrderBy  string `form:"orderBy" binding:"omitempty,oneof=createdAt scheduledDate title"`
	Order    string `form:"order" binding:"omitempty,oneof=asc desc"`
}

type PageQuery struct {
	Page     int `form:"page,default=1" binding:"min=1"`
	PageSize int `form:"pageSize,default=10" binding:"min=1,max=50"`
}

type CheckInRequest struct {
	ConfirmationCode string `json:"confirmationCode" binding:"required"`
}

type ApproveRequest struct {
	ParticipantID uint  `json:"participantId" binding:"required"`
	Approved      *bool `json:"approved"`
}

// approved defaults to true when the field is omitted.
func (r ApproveRequest) approved() bool {
	return r.Approved == nil || *r.Approved
}

func NewActivityController(activities *services.ActivityService, types *services.ActivityTypeCatalog) *ActivityController {
	return &ActivityController{Activities: activities, Types: types}
}

// CreateActivity godoc
// @Summary Create an activity; the caller becomes its creator and earns XP
// @Router /activities [post]
func (ac *ActivityController) CreateActivity(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req ActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := ac.Activities.CreateActivity(c.Request.Context(), userID, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, StandardResponse{Success: true, Data: result})
}

func (ac *ActivityController) ListActivities(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var query ActivityListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondBindError(c, err)
		return
	}

	page, err := ac.Activities.ListActivities(c.Request.Context(), userID, services.ListQuery{
		Page:     query.Page,
		PageSize: query.PageSize,
		TypeID:   query.TypeID,
		OrderBy:  query.OrderBy,
		Order:    query.Order,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, StandardResponse{
		Success:    true,
		Data:       page.Activities,
		Pagination: paginationMeta(page.Page, page.PageSize, page.Total),
	})
}

func (ac *ActivityController) ListAllActivities(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	activities, err := ac.Activities.ListAllActivities(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: activities})
}

func (ac *ActivityController) ListTypes(c *gin.Context) {
	types, err := ac.Types.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: types})
}

// ListCreated returns the caller's own activities.
func (ac *ActivityController) ListCreated(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var query PageQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondBindError(c, err)
		return
	}

	page, err := ac.Activities.ListByCreator(c.Request.Context(), userID, query.Page, query.PageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, StandardResponse{
		Success:    true,
		Data:       page.Activities,
		Pagination: paginationMeta(page.Page, page.PageSize, page.Total),
	})
}

// ListJoined returns activities the caller participates in.
func (ac *ActivityController) ListJoined(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var query PageQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondBindError(c, err)
		return
	}

	page, err := ac.Activities.ListByParticipant(c.Request.Context(), userID, query.Page, query.PageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, StandardResponse{
		Success:    true,
		Data:       page.Activities,
		Pagination: paginationMeta(page.Page, page.PageSize, page.Total),
	})
}

func (ac *ActivityController) GetActivity(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	activityID, ok := paramID(c, "id")
	if !ok {
		return
	}

	activity, err := ac.Activities.GetActivity(c.Request.Context(), activityID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: activity})
}

func (ac *ActivityController) UpdateActivity(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	activityID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req ActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	activity, err := ac.Activities.UpdateActivity(c.Request.Context(), activityID, userID, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: activity})
}

func (ac *ActivityController) DeleteActivity(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	activityID, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := ac.Activities.DeleteActivity(c.Request.Context(), activityID, userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, StandardResponse{Success: true, Message: "Activity deleted"})
}

func (ac *ActivityController) ListParticipants(c *gin.Context) {
	activityID, ok := paramID(c, "id")
	if !ok {
		return
	}

	participants, err := ac.Activities.ListParticipants(c.Request.Context(), activityID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: participants})
}

func (ac *ActivityController) Subscribe(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	activityID, ok := paramID(c, "id")
	if !ok {
		return
	}

	participant, err := ac.Activities.Subscribe(c.Request.Context(), activityID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, StandardResponse{Success: true, Data: participant})
}

func (ac *ActivityController) Unsubscribe(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	activityID, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := ac.Activities.Unsubscribe(c.Request.Context(), activityID, userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, StandardResponse{Success: true, Message: "Unsubscribed"})
}

func (ac *ActivityController) ApproveParticipant(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	activityID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	participant, err := ac.Activities.ApproveParticipant(c.Request.Context(), activityID, userID, req.ParticipantID, req.approved())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: participant})
}

// CheckIn godoc
// @Summary Confirm presence with the activity's confirmation code
// @Router /activities/{id}/check-in [post]
func (ac *ActivityController) CheckIn(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	activityID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := ac.Activities.CheckIn(c.Request.Context(), activityID, userID, req.ConfirmationCode)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: result})
}

// ConfirmPresence godoc
// @Summary Confirm the caller's presence at an activity they subscribed to
// @Router /activities/{id}/confirm-presence [put]
func (ac *ActivityController) ConfirmPresence(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	activityID, ok := paramID(c, "id")
	if !ok {
		return
	}

	result, err := ac.Activities.ConfirmPresence(c.Request.Context(), activityID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: result})
}

// CompleteActivity godoc
// @Summary Mark an activity as completed (creator only)
// @Router /activities/{id}/complete [put]
func (ac *ActivityController) CompleteActivity(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	activityID, ok := paramID(c, "id")
	if !ok {
		return
	}

	result, err := ac.Activities.CompleteActivity(c.Request.Context(), activityID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: result})
}
