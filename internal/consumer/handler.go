package consumer

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/relay/discovery"
	"github.com/kbukum/relay/dispatch"
	apperrors "github.com/kbukum/relay/errors"
	"github.com/kbukum/relay/logger"
	"github.com/kbukum/relay/server"
)

// Handler serves the consumer's inbound routes.
type Handler struct {
	dispatcher *dispatch.Dispatcher
	service    string
	log        *logger.Logger
}

// NewHandler creates a Handler forwarding to the dispatcher's target service.
func NewHandler(d *dispatch.Dispatcher, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Handler{
		dispatcher: d,
		service:    d.Config().TargetService,
		log:        log.WithComponent("consumer"),
	}
}

// RegisterRoutes mounts GET /hello/:name.
func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/hello/:name", h.Hello)
}

// Hello forwards the name to one provider instance and relays its body.
// When no instance is registered the body is the not-found message, still
// with 200.
func (h *Handler) Hello(c *gin.Context) {
	name := c.Param("name")
	log := h.log.WithContext(c.Request.Context())
	log.Info("hello received", map[string]interface{}{"name": name})

	res, err := h.dispatcher.Handle(c.Request.Context(), h.service, name)
	if err != nil {
		appErr := toAppError(h.service, err)
		log.Warn("hello failed", map[string]interface{}{
			logger.FieldService: h.service,
			logger.FieldStatus:  appErr.HTTPStatus,
			logger.FieldError:   err.Error(),
		})
		server.RespondWithError(c, appErr)
		return
	}
	server.RespondText(c, http.StatusOK, res.Body)
}

// toAppError maps dispatch failures onto the HTTP error taxonomy.
func toAppError(service string, err error) *apperrors.AppError {
	var fe *dispatch.ForwardError
	switch {
	case errors.Is(err, discovery.ErrRegistryUnavailable):
		return apperrors.RegistryUnavailable(service, err)
	case dispatch.IsTimeout(err):
		return apperrors.Timeout("forward").WithDetail("service", service).WithCause(err)
	case errors.As(err, &fe):
		return apperrors.ForwardFailed(service, fe.Target, err)
	case errors.Is(err, discovery.ErrInvalidServiceName):
		return apperrors.InvalidInput("service", err.Error())
	default:
		return apperrors.Internal(err)
	}
}
