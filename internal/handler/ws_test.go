package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawWriter_UnwrapsGinWriter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	assert.Equal(t, http.ResponseWriter(rec), rawWriter(c.Writer))
	assert.Equal(t, http.ResponseWriter(rec), rawWriter(rec))
}

func TestWSHandler_CloseCodeReachesClientThroughGin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewWSHandler(Deps{Log: testLog, AllowedOrigins: []string{"*"}})
	r := gin.New()
	r.GET("/ws/tickets/:id", h.Serve)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/tickets/1"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	_, _, err = conn.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, CloseMissingToken, websocket.CloseStatus(err))
}
