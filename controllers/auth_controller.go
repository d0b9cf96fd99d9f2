// Package controllers controllers/auth_controller.go
package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go-lift-control/logger"
	"go-lift-control/middleware"
	"go-lift-control/models"
	"golang.org/x/crypto/bcrypt"
)

// AuthController logs officials in against a JSON credentials file.
type AuthController struct {
	CredentialsFile string
}

// NewAuthController reads credentials from path on every login, so edits
// apply without a restart.
func NewAuthController(path string) *AuthController {
	return &AuthController{CredentialsFile: path}
}

// ComparePasswords checks if the given password matches the hashed password
func ComparePasswords(hashedPassword, plainPassword string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(plainPassword))
	return err == nil
}

// LoadOfficials reads the officials list from path.
func LoadOfficials(path string) (*models.OfficialCreds, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, err
	}

	var creds models.OfficialCreds
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	for _, o := range creds.Officials {
		if !o.Role.Valid() {
			return nil, fmt.Errorf("official %q has unknown role %q", o.Username, o.Role)
		}
	}
	return &creds, nil
}

type loginRequest struct {
	Username string `form:"username" json:"username" binding:"required"`
	Password string `form:"password" json:"password" binding:"required"`
}

// ------------------ login handling ------------------

// Login authenticates an official and stores user and role in the session.
func (ac *AuthController) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		logger.Warn.Println("[Login] Missing username or password")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please fill in all fields.", "code": "INVALID_INPUT"})
		return
	}

	creds, err := LoadOfficials(ac.CredentialsFile)
	if err != nil {
		logger.Error.Println("[Login] Failed to load credentials:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error, please try again later.", "code": "INTERNAL"})
		return
	}

	var official *models.Official
	for i := range creds.Officials {
		o := &creds.Officials[i]
		if o.Username == req.Username && ComparePasswords(o.Password, req.Password) {
			official = o
			break
		}
	}
	if official == nil {
		logger.Warn.Printf("[Login] Invalid login attempt for user %s", req.Username)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password.", "code": "UNAUTHENTICATED"})
		return
	}

	session := sessions.Default(c)
	session.Set(middleware.SessionUserKey, official.Username)
	session.Set(middleware.SessionRoleKey, string(official.Role))
	if err := session.Save(); err != nil {
		logger.Error.Println("[Login] Failed to save session:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error, please try again.", "code": "INTERNAL"})
		return
	}

	logger.Info.Printf("[Login] User %s authenticated as %s", official.Username, official.Role)
	c.JSON(http.StatusOK, models.Actor{ID: official.Username, Role: official.Role})
}

// Logout clears the session.
func (ac *AuthController) Logout(c *gin.Context) {
	session := sessions.Default(c)
	user := session.Get(middleware.SessionUserKey)

	session.Clear()
	if err := session.Save(); err != nil {
		logger.Error.Printf("[Logout] Error saving session during logout: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error, please try again.", "code": "INTERNAL"})
		return
	}
	logger.Info.Printf("[Logout] User %v logged out", user)
	c.JSON(http.StatusOK, gin.H{"loggedOut": true})
}

// Me returns the caller's identity.
func (ac *AuthController) Me(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	c.JSON(http.StatusOK, actor)
}
