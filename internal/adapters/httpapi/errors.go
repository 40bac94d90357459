package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	jujuerrors "github.com/juju/errors"

	"tissuecore/internal/core"
	"tissuecore/pkg/domain"
)

// Error classifications reported to clients.
const (
	ClassValidation = "ValidationError"
	ClassNotFound   = "NotFound"
	ClassNotAllowed = "NotAllowed"
	ClassInternal   = "InternalError"
)

const internalMessage = "An internal error occurred."

// ErrorExtensions carries the machine-readable part of an error response.
type ErrorExtensions struct {
	Classification string   `json:"classification"`
	Problems       []string `json:"problems,omitempty"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Message    string          `json:"message"`
	Extensions ErrorExtensions `json:"extensions"`
}

// classify maps err to a status and response. Validation failures carry
// their full problem list; internal failures never expose their cause.
func classify(err error) (int, ErrorResponse) {
	var verr domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, ErrorResponse{
			Message:    verr.Message,
			Extensions: ErrorExtensions{Classification: ClassValidation, Problems: verr.Problems},
		}
	case core.IsNotFound(err):
		return http.StatusNotFound, ErrorResponse{
			Message:    err.Error(),
			Extensions: ErrorExtensions{Classification: ClassNotFound},
		}
	case jujuerrors.Is(err, jujuerrors.NotSupported):
		return http.StatusMethodNotAllowed, ErrorResponse{
			Message:    err.Error(),
			Extensions: ErrorExtensions{Classification: ClassNotAllowed},
		}
	default:
		return http.StatusInternalServerError, ErrorResponse{
			Message:    internalMessage,
			Extensions: ErrorExtensions{Classification: ClassInternal},
		}
	}
}

func (s *server) fail(c *gin.Context, err error) {
	status, body := classify(err)
	if status == http.StatusInternalServerError {
		s.logger.Errorw("request failed", "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(message string, err error) error {
	return domain.ValidationError{Message: message, Problems: []string{err.Error()}}
}
