package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"medword/internal/pkg/apperr"
)

const (
	CodeOK                 = 0
	CodeBadRequest         = 40000
	CodeUnauthorized       = 40100
	CodeForbidden          = 40300
	CodeNotFound           = 40400
	CodeBusy               = 40900
	CodeInternalServer     = 50000
	CodeBackendUnavailable = 50200
	CodeInvalidResponse    = 50201
	CodeBackendTimeout     = 50400
)

type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{
		Code:    CodeOK,
		Message: "ok",
		Data:    data,
	})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
	})
}

// FromError writes err using the status and code of its kind.
func FromError(c *gin.Context, err error) {
	httpStatus, code := Status(err)
	message := apperr.Message(err)
	if code == CodeInternalServer {
		message = "internal error"
		_ = c.Error(err)
	}
	Error(c, httpStatus, code, message)
}

func Status(err error) (int, int) {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest, CodeBadRequest
	case apperr.KindForbidden:
		return http.StatusForbidden, CodeForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound, CodeNotFound
	case apperr.KindBusy:
		return http.StatusConflict, CodeBusy
	case apperr.KindTimeout:
		return http.StatusGatewayTimeout, CodeBackendTimeout
	case apperr.KindNetwork:
		return http.StatusBadGateway, CodeBackendUnavailable
	case apperr.KindInvalidResponse:
		return http.StatusBadGateway, CodeInvalidResponse
	default:
		return http.StatusInternalServerError, CodeInternalServer
	}
}
