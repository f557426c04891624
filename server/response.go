package server

import (
	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/relay/errors"
)

// RespondWithError writes err as the JSON error envelope. An
// *apperrors.AppError anywhere in the chain picks the status; anything else
// becomes a 500 without leaking the cause.
func RespondWithError(c *gin.Context, err error) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		appErr = apperrors.Internal(err)
	}
	c.JSON(appErr.HTTPStatus, appErr.ToResponse())
}

// RespondText writes body verbatim as UTF-8 text.
func RespondText(c *gin.Context, status int, body []byte) {
	c.Data(status, "text/plain; charset=utf-8", body)
}
