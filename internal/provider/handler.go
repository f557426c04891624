package provider

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/relay/server"
)

// Handler answers GET /hello/:name with a greeting naming its own port so
// callers can tell instances apart.
type Handler struct {
	port int
}

// NewHandler creates a Handler reporting port.
func NewHandler(port int) *Handler {
	return &Handler{port: port}
}

// RegisterRoutes mounts GET /hello/:name.
func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/hello/:name", h.Hello)
}

// Hello writes "hello <name>, i am from port <port>".
func (h *Handler) Hello(c *gin.Context) {
	server.RespondText(c, http.StatusOK, []byte(Greeting(c.Param("name"), h.port)))
}

// Greeting formats the provider's answer.
func Greeting(name string, port int) string {
	return fmt.Sprintf("hello %s, i am from port %d", name, port)
}
