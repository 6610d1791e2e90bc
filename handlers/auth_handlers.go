package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"eventhub/api/apperr"
	"eventhub/api/logger"
	"eventhub/api/middleware"
	"eventhub/api/models"
	"eventhub/api/utils"
)

type UserAccounts interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

type AuthHandlers struct {
	users    UserAccounts
	jwt      *utils.JWTManager
	isAdmin  func(email string) bool
	log      *logger.Logger
	hashCost int
}

func NewAuthHandlers(users UserAccounts, jwt *utils.JWTManager, isAdmin func(email string) bool, log *logger.Logger) *AuthHandlers {
	return &AuthHandlers{
		users:    users,
		jwt:      jwt,
		isAdmin:  isAdmin,
		log:      log.With("component", "AuthHandlers"),
		hashCost: bcrypt.DefaultCost,
	}
}

// Signup registers a user with empty analytics. Emails listed in
// ADMIN_EMAILS get the admin role.
func (h *AuthHandlers) Signup(c *gin.Context) {
	var req models.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	_, err := h.users.GetUserByEmail(c.Request.Context(), req.Email)
	if err == nil {
		respondFail(c, http.StatusConflict, "conflict", "User with this email already exists")
		return
	}
	if !apperr.IsNotFound(err) {
		respondError(c, h.log, err)
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.hashCost)
	if err != nil {
		h.log.Error("Failed to hash password", "email", req.Email, "error", err)
		respondFail(c, http.StatusInternalServerError, "internal_error", "Failed to process password")
		return
	}

	role := models.RoleUser
	if h.isAdmin != nil && h.isAdmin(req.Email) {
		role = models.RoleAdmin
	}
	user := models.NewUser(uuid.NewString(), req.Email, strings.TrimSpace(req.Name), role, hashedPassword, time.Now().UTC())
	if req.Interests != nil {
		user.Interests = append([]string{}, req.Interests...)
	}
	user.Location = models.Location{City: req.City, State: req.State, Latitude: req.Latitude, Longitude: req.Longitude}

	if err := h.users.CreateUser(c.Request.Context(), user); err != nil {
		respondError(c, h.log, err)
		return
	}

	h.log.Info("User registered", "userId", user.ID, "role", role)
	respondData(c, http.StatusCreated, user)
}

// Login verifies credentials and issues the JWT as an HttpOnly cookie. The
// token is also returned in the body for bearer clients.
func (h *AuthHandlers) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.users.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if !apperr.IsNotFound(err) {
			respondError(c, h.log, err)
			return
		}
		respondFail(c, http.StatusUnauthorized, "unauthorized", "Invalid credentials")
		return
	}
	if err := bcrypt.CompareHashAndPassword(user.HashedPassword, []byte(req.Password)); err != nil {
		h.log.Debug("Login password mismatch", "userId", user.ID)
		respondFail(c, http.StatusUnauthorized, "unauthorized", "Invalid credentials")
		return
	}

	role := user.Role
	if role != models.RoleAdmin && h.isAdmin != nil && h.isAdmin(user.Email) {
		role = models.RoleAdmin
	}
	tokenString, err := h.jwt.Generate(user.ID, user.Email, role)
	if err != nil {
		h.log.Error("Failed to generate JWT", "userId", user.ID, "error", err)
		respondFail(c, http.StatusInternalServerError, "internal_error", "Failed to generate authentication token")
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AuthCookie, tokenString, int(h.jwt.TTL()/time.Second), "/", "", c.Request.TLS != nil, true)

	h.log.Info("User logged in", "userId", user.ID)
	respondData(c, http.StatusOK, gin.H{"token": tokenString, "user": user})
}

func (h *AuthHandlers) Logout(c *gin.Context) {
	c.SetCookie(middleware.AuthCookie, "", -1, "/", "", c.Request.TLS != nil, true)
	respondMessage(c, http.StatusOK, "Logged out successfully")
}
