package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identityRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(EnsureIdentity())
	router.GET("/probe", func(c *gin.Context) {
		id, ok := ConnectionID(c)
		c.JSON(http.StatusOK, gin.H{"id": id, "ok": ok})
	})
	return router
}

func TestEnsureIdentityMintsCookie(t *testing.T) {
	router := identityRouter()

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	cookie := cookies[0]
	assert.Equal(t, IdentityCookie, cookie.Name)
	assert.Equal(t, "/", cookie.Path)
	assert.True(t, cookie.HttpOnly)

	// the minted value is a well-formed UUIDv4
	parsed, err := uuid.Parse(cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), parsed.Version())
}

func TestEnsureIdentityPassesThroughExistingCookie(t *testing.T) {
	router := identityRouter()

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.AddCookie(&http.Cookie{Name: IdentityCookie, Value: "existing-id"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Result().Cookies())
	assert.Contains(t, w.Body.String(), "existing-id")
}

func TestEnsureIdentityDoesNotInjectIntoCurrentRequest(t *testing.T) {
	router := identityRouter()

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	// handlers only see what the browser sent; the fresh id arrives with
	// the next request
	assert.Contains(t, w.Body.String(), `"ok":false`)
}

func TestConnectionIDAbsent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	id, ok := ConnectionID(c)

	assert.False(t, ok)
	assert.Empty(t, id)
}
