// file: controllers/test_helpers_test.go
package controllers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go-lift-control/logger"
	"go-lift-control/models"
)

func init() {
	logger.SetOutput(io.Discard)
}

// setupTestRouter creates a gin engine with cookie sessions.
func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	store := cookie.NewStore([]byte("test-secret"))
	router.Use(sessions.Sessions("testsession", store))
	return router
}

// loginAs sets user and role in the session through a helper route and
// returns the session cookie for later requests.
func loginAs(t *testing.T, router *gin.Engine, actor models.Actor) *http.Cookie {
	t.Helper()
	route := "/test-login/" + actor.ID
	router.GET(route, func(c *gin.Context) {
		session := sessions.Default(c)
		session.Set("user", actor.ID)
		session.Set("role", string(actor.Role))
		if err := session.Save(); err != nil {
			c.String(http.StatusInternalServerError, "session save failed")
			return
		}
		c.String(http.StatusOK, "session set")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, route, nil))
	for _, ck := range w.Result().Cookies() {
		if ck.Name == "testsession" {
			return ck
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

// doJSON performs a request with an optional JSON body and session cookie.
func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}, ck *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if ck != nil {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}
