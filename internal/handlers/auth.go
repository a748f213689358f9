package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sergiovlezh/documents-manager/internal/config"
	"github.com/sergiovlezh/documents-manager/internal/models"
	"github.com/sergiovlezh/documents-manager/internal/utils"
	"gorm.io/gorm"
)

type RegisterRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	DisplayName string `json:"display_name" binding:"max=100"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	User        *models.User `json:"user"`
	AccessToken string       `json:"access_token"`
}

func Register(db *gorm.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}
		email := strings.ToLower(strings.TrimSpace(req.Email))

		var existingUser models.User
		err := db.Where("email = ?", email).First(&existingUser).Error
		if err == nil {
			respondError(c, http.StatusConflict, "CONFLICT", "Email already exists")
			return
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			respondServiceError(c, err)
			return
		}

		hashedPassword, err := utils.HashSecret(req.Password)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to hash password")
			return
		}

		user := models.User{
			Email:        email,
			PasswordHash: hashedPassword,
			DisplayName:  strings.TrimSpace(req.DisplayName),
			Role:         models.RoleUser,
		}
		if err := db.Create(&user).Error; err != nil {
			respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create user")
			return
		}

		accessToken, err := generateToken(user.ID, user.Role, cfg.JWTSecret, cfg.JWTAccessExpiry)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to generate token")
			return
		}

		log.Info().Str("user_id", user.ID.String()).Msg("user registered")
		respondData(c, http.StatusCreated, AuthResponse{User: &user, AccessToken: accessToken})
	}
}

func Login(db *gorm.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}

		var user models.User
		if err := db.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error; err != nil {
			respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid credentials")
			return
		}

		if !utils.VerifySecret(user.PasswordHash, req.Password) {
			respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid credentials")
			return
		}

		accessToken, err := generateToken(user.ID, user.Role, cfg.JWTSecret, cfg.JWTAccessExpiry)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to generate token")
			return
		}

		respondData(c, http.StatusOK, AuthResponse{User: &user, AccessToken: accessToken})
	}
}

func GetCurrentUser(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}

		var user models.User
		if err := db.First(&user, "id = ?", userID).Error; err != nil {
			respondError(c, http.StatusNotFound, "NOT_FOUND", "User not found")
			return
		}

		respondData(c, http.StatusOK, user)
	}
}

func generateToken(userID uuid.UUID, role models.UserRole, secret string, expiry string) (string, error) {
	duration, err := time.ParseDuration(expiry)
	if err != nil {
		duration = 15 * time.Minute
	}

	claims := jwt.MapClaims{
		"user_id": userID.String(),
		"role":    string(role),
		"exp":     time.Now().Add(duration).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
