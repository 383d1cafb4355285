package utils

import (
	"github.com/gin-gonic/gin"
	"github.com/jcob-sikorski/mech-mashup/internal/apierror"
	"github.com/sirupsen/logrus"
)

// AuthenticateHeader is sent with every 401 so clients know which scheme to use.
const AuthenticateHeader = `Bearer realm="api"`

// JSONResponse represents a standard JSON response format.
type JSONResponse struct {
	Status  string              `json:"status"`
	Message string              `json:"message"`
	Data    interface{}         `json:"data,omitempty"`
	Error   string              `json:"error,omitempty"`
	Code    string              `json:"code,omitempty"`
	Fields  map[string][]string `json:"fields,omitempty"`
}

// SendSuccessResponse sends a successful JSON response using gin.Context.
func SendSuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, JSONResponse{
		Status:  "success",
		Message: message,
		Data:    data,
	})
}

// SendErrorResponse sends an error JSON response using gin.Context.
func SendErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, JSONResponse{
		Status:  "error",
		Message: message,
		Error:   message,
	})
}

// SendAPIError renders err using its apierror classification. Anything that is
// not an *apierror.Error is logged and reported as a generic 500.
func SendAPIError(c *gin.Context, err error) {
	apiErr := apierror.From(err)
	status := apiErr.Status()

	if apiErr.Kind == apierror.KindInternal {
		logrus.WithError(apiErr.Err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		}).Error("Request failed")
	}
	if apiErr.Kind == apierror.KindAuthentication {
		c.Header("WWW-Authenticate", AuthenticateHeader)
	}

	c.JSON(status, JSONResponse{
		Status:  "error",
		Message: apiErr.Message,
		Error:   apiErr.Message,
		Code:    apiErr.Code,
		Fields:  apiErr.Fields,
	})
}
