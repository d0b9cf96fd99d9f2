// file: controllers/auth_controller_test.go
//go:build unit
// +build unit

package controllers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go-lift-control/middleware"
	"golang.org/x/crypto/bcrypt"
)

// hashPassword hashes with the minimum cost to keep tests fast.
func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hashed)
}

func writeCreds(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "officials.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func setupAuthRouter(t *testing.T) *gin.Engine {
	t.Helper()
	path := writeCreds(t, `{"officials":[
		{"username":"j1","password":"`+hashPassword(t, "lift")+`","role":"JUDGE"},
		{"username":"op","password":"`+hashPassword(t, "run")+`","role":"OPERATOR"}
	]}`)

	router := setupTestRouter()
	ac := NewAuthController(path)
	router.POST("/login", ac.Login)
	router.POST("/logout", ac.Logout)
	router.GET("/me", middleware.AuthRequired, ac.Me)
	return router
}

func TestComparePasswords(t *testing.T) {
	hash := hashPassword(t, "secret")
	assert.True(t, ComparePasswords(hash, "secret"))
	assert.False(t, ComparePasswords(hash, "wrong"))
}

func TestLogin_Success(t *testing.T) {
	router := setupAuthRouter(t)

	w := doJSON(t, router, http.MethodPost, "/login", gin.H{"username": "j1", "password": "lift"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"id":"j1","role":"JUDGE"}`, w.Body.String())

	var ck *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "testsession" {
			ck = c
		}
	}
	require.NotNil(t, ck)

	w = doJSON(t, router, http.MethodGet, "/me", nil, ck)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"j1","role":"JUDGE"}`, w.Body.String())
}

func TestLogin_FormEncoded(t *testing.T) {
	router := setupAuthRouter(t)

	form := url.Values{"username": {"op"}, "password": {"run"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "OPERATOR")
}

func TestLogin_InvalidCredentials(t *testing.T) {
	router := setupAuthRouter(t)

	w := doJSON(t, router, http.MethodPost, "/login", gin.H{"username": "j1", "password": "nope"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid username or password.", decode(t, w)["error"])
}

func TestLogin_MissingFields(t *testing.T) {
	router := setupAuthRouter(t)

	w := doJSON(t, router, http.MethodPost, "/login", gin.H{"username": "j1"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogin_BrokenCredentialsFile(t *testing.T) {
	router := setupTestRouter()
	ac := NewAuthController(writeCreds(t, `{"officials":[{"username":"x","password":"y","role":"REFEREE"}]}`))
	router.POST("/login", ac.Login)

	w := doJSON(t, router, http.MethodPost, "/login", gin.H{"username": "x", "password": "y"}, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestLogout(t *testing.T) {
	router := setupAuthRouter(t)

	w := doJSON(t, router, http.MethodPost, "/login", gin.H{"username": "j1", "password": "lift"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	ck := w.Result().Cookies()[0]

	w = doJSON(t, router, http.MethodPost, "/logout", nil, ck)
	require.Equal(t, http.StatusOK, w.Code)
	cleared := w.Result().Cookies()[0]

	w = doJSON(t, router, http.MethodGet, "/me", nil, cleared)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
