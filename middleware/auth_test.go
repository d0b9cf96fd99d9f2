// file: middleware/auth_test.go
package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go-lift-control/logger"
	"go-lift-control/models"
)

func init() {
	logger.SetOutput(io.Discard)
}

// setupAuthTestRouter mounts a /login-test route that writes the session,
// so later requests can replay its cookie.
func setupAuthTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	store := cookie.NewStore([]byte("secret"))
	router.Use(sessions.Sessions("testsession", store))

	router.GET("/login-test", func(c *gin.Context) {
		session := sessions.Default(c)
		session.Set(SessionUserKey, c.Query("user"))
		session.Set(SessionRoleKey, c.Query("role"))
		if err := session.Save(); err != nil {
			c.String(http.StatusInternalServerError, "Failed to save session")
			return
		}
		c.String(http.StatusOK, "Session set")
	})

	router.GET("/protected", AuthRequired, func(c *gin.Context) {
		actor, _ := ActorFromContext(c)
		c.String(http.StatusOK, actor.ID+"/"+string(actor.Role))
	})
	router.GET("/public", Identify, func(c *gin.Context) {
		actor, _ := ActorFromContext(c)
		c.String(http.StatusOK, actor.ID+"/"+string(actor.Role))
	})
	router.GET("/operators", AuthRequired, RoleRequired(models.RoleAdmin, models.RoleOperator), func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	return router
}

// login returns the session cookie for user with role.
func login(t *testing.T, router *gin.Engine, user, role string) *http.Cookie {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/login-test?user="+user+"&role="+role, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies, "expected a session cookie")
	return cookies[0]
}

func get(router *gin.Engine, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// Test: unauthenticated users get a JSON 401
func TestAuthRequired_Unauthenticated(t *testing.T) {
	router := setupAuthTestRouter()

	w := get(router, "/protected", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"login required","code":"UNAUTHENTICATED"}`, w.Body.String())
}

func TestAuthRequired_Authenticated(t *testing.T) {
	router := setupAuthTestRouter()
	cookie := login(t, router, "j1", "JUDGE")

	w := get(router, "/protected", cookie)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "j1/JUDGE", w.Body.String())
}

func TestAuthRequired_UnknownRole(t *testing.T) {
	router := setupAuthTestRouter()
	cookie := login(t, router, "j1", "REFEREE")

	w := get(router, "/protected", cookie)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestIdentify_FallsBackToSpectator(t *testing.T) {
	router := setupAuthTestRouter()

	w := get(router, "/public", nil)
	assert.Equal(t, "anonymous/SPECTATOR", w.Body.String())

	cookie := login(t, router, "op", "OPERATOR")
	w = get(router, "/public", cookie)
	assert.Equal(t, "op/OPERATOR", w.Body.String())
}
