package controllers

import (
	"net/http"

	"github.com/activity-point/api-go/services"
	"github.com/activity-point/api-go/storage"
	"github.com/gin-gonic/gin"
)

type UserController struct {
	Users *services.UserService
}

type UpdateUserRequest struct {
	Name  *string `json:"name" binding:"omitempty,min=1,max=80"`
	Email *string `json:"email" binding:"omitempty,email"`
}

type PreferencesRequest struct {
	TypeIDs []uint `json:"typeIds" binding:"required,min=1,dive,min=1"`
}

func NewUserController(users *services.UserService) *UserController {
	return &UserController{Users: users}
}

func (uc *UserController) GetUser(c *gin.Context) {
	userID, ok := paramID(c, "id")
	if !ok {
		return
	}

	user, err := uc.Users.GetProfile(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: user})
}

func (uc *UserController) UpdateUser(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		return
	}
	userID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, err := uc.Users.UpdateProfile(c.Request.Context(), actorID, userID, services.UpdateUserInput{
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: user})
}

func (uc *UserController) DeleteUser(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		return
	}
	userID, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := uc.Users.DeleteUser(c.Request.Context(), actorID, userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, StandardResponse{Success: true, Message: "User deleted"})
}

// ChangeAvatar godoc
// @Summary Upload a new avatar image (multipart field "avatar")
// @Router /users/avatar [put]
func (uc *UserController) ChangeAvatar(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	header, err := c.FormFile("avatar")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid_input", "message": "avatar file is required"})
		return
	}
	if header.Size > storage.MaxAvatarSize {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid_input", "message": "avatar exceeds the 5MB limit"})
		return
	}

	file, err := header.Open()
	if err != nil {
		respondBindError(c, err)
		return
	}
	defer file.Close()

	user, err := uc.Users.ChangeAvatar(c.Request.Context(), userID, services.AvatarUpload{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: user})
}

func (uc *UserController) GetPreferences(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	prefs, err := uc.Users.Preferences(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: prefs})
}

func (uc *UserController) DefinePreferences(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req PreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	prefs, err := uc.Users.DefinePreferences(c.Request.Context(), userID, req.TypeIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: prefs})
}
