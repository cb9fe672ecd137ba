package requestid

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func runWithHeader(header string) (string, string, string) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	var fromGin, fromCtx string
	r.GET("/", func(c *gin.Context) {
		fromGin = Value(c)
		fromCtx = FromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(headerKey, header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return fromGin, fromCtx, w.Header().Get(headerKey)
}

func TestMiddlewareKeepsWellFormedID(t *testing.T) {
	g, ctx, resp := runWithHeader("sync-42")
	assert.Equal(t, "sync-42", g)
	assert.Equal(t, "sync-42", ctx)
	assert.Equal(t, "sync-42", resp)
}

func TestMiddlewareReplacesMissingOrUnsafeID(t *testing.T) {
	for _, header := range []string{"", "bad id\nforged=1"} {
		g, ctx, resp := runWithHeader(header)
		_, err := uuid.Parse(g)
		assert.NoError(t, err)
		assert.Equal(t, g, ctx)
		assert.Equal(t, g, resp)
	}
}

func TestFromContextWithoutID(t *testing.T) {
	assert.Equal(t, "", FromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context()))
}
