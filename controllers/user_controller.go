package controllers

import (
	"errors"
	"net/http"

	"optionscope/database"

	"github.com/gin-gonic/gin"
)

// UserController handles registration and profile settings
type UserController struct {
	storage *database.LocalStorage
}

// NewUserController creates a new user controller
func NewUserController(storage *database.LocalStorage) *UserController {
	return &UserController{
		storage: storage,
	}
}

// RegisterUserRequest represents a registration request
type RegisterUserRequest struct {
	UserUID string `json:"user_uid" binding:"required"`
	Email   string `json:"email" binding:"required"`
	Name    string `json:"name"`
}

// HandleRegisterUser registers a user, or touches last login if known
// POST /api/v1/users
func (uc *UserController) HandleRegisterUser(c *gin.Context) {
	var req RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	userID, err := uc.storage.RegisterUser(req.UserUID, req.Email, req.Name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to register user",
			"details": err.Error(),
		})
		return
	}

	if err := uc.storage.TouchLastLogin(req.UserUID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to update last login",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "User registered",
		"user_id": userID,
	})
}

// UpdateUserRequest represents a settings update
type UpdateUserRequest struct {
	PreferredView *string `json:"preferred_view"`
	AccountType   *string `json:"account_type"`
}

// HandleUpdateUser updates a user's settings
// PATCH /api/v1/users/:uid
func (uc *UserController) HandleUpdateUser(c *gin.Context) {
	uid := c.Param("uid")

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	profile, err := uc.storage.UpdateUser(uid, req.PreferredView, req.AccountType)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "User not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to update user",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "User updated",
		"user":    profile,
	})
}

// HandleGetUserProfile retrieves a user profile
// GET /api/v1/users/:uid
func (uc *UserController) HandleGetUserProfile(c *gin.Context) {
	uid := c.Param("uid")

	profile, err := uc.storage.GetUserProfile(uid)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "User not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to get user profile",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, profile)
}
