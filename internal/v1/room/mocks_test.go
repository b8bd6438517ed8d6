package room

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/goleak"

	"github.com/impermachat/server/internal/v1/middleware"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeRenderer renders every view as a deterministic single-line string
// so wire assertions stay readable. Field order matches insertion order
// for history and sorted names for typing state.
type fakeRenderer struct{}

func (fakeRenderer) Render(view string, model any) (string, error) {
	switch m := model.(type) {
	case roomModel:
		return fmt.Sprintf("<%s room=%s>", view, m.RoomID), nil
	case messagesModel:
		var b strings.Builder
		fmt.Fprintf(&b, "<%s self=%s", view, m.ConnectionID)
		for _, msg := range m.Messages {
			fmt.Fprintf(&b, " %s=%q", msg.Name, msg.Content)
		}
		b.WriteString(">")
		return b.String(), nil
	case typingModel:
		names := make([]string, 0, len(m.Messages))
		for name := range m.Messages {
			names = append(names, name)
		}
		sort.Strings(names)
		var b strings.Builder
		fmt.Fprintf(&b, "<%s self=%s", view, m.ConnectionID)
		for _, name := range names {
			fmt.Fprintf(&b, " %s=%q", name, m.Messages[name].Content)
		}
		b.WriteString(">")
		return b.String(), nil
	case chatInputModel:
		return fmt.Sprintf("<%s room=%s person=%s>", view, m.RoomID, m.Person), nil
	case setNameModel:
		return fmt.Sprintf("<%s room=%s msg=%q>", view, m.RoomID, m.Message), nil
	default:
		return fmt.Sprintf("<%s>", view), nil
	}
}

func newTestRouter(h *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/room/:roomID", h.RenderRoom)
	router.GET("/room/:roomID/connect", h.Connect)
	router.POST("/room/:roomID/live", h.Typing)
	router.POST("/room/:roomID/submit", h.Submit)
	router.POST("/room/:roomID/name", h.SetName)
	return router
}

func performJSON(router *gin.Engine, method, path, body, connectionID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if connectionID != "" {
		req.AddCookie(&http.Cookie{Name: middleware.IdentityCookie, Value: connectionID})
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func performGET(router *gin.Engine, path, connectionID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if connectionID != "" {
		req.AddCookie(&http.Cookie{Name: middleware.IdentityCookie, Value: connectionID})
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}
