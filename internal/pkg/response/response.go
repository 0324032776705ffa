package response

import (
	"net/http"
	"reflect"

	"github.com/gin-gonic/gin"
	"github.com/jobtrail/core/internal/pkg/aierr"
)

// Pagination metadata returned with paginated responses.
type Pagination struct {
	Total       int64 `json:"total"`
	CurrentPage int   `json:"current_page"`
	TotalPage   int   `json:"total_page"`
	Size        int   `json:"size"`
	HasNextPage bool  `json:"has_next_page"`
}

// pagedResponse is the envelope for paginated list responses.
type pagedResponse struct {
	Data       interface{} `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

// OK sends a 200 response. Arrays/slices are wrapped in {data: [...]}.
func OK(c *gin.Context, data interface{}) {
	if data != nil {
		v := reflect.ValueOf(data)
		if v.Kind() == reflect.Slice {
			c.JSON(http.StatusOK, gin.H{"data": data})
			return
		}
	}
	c.JSON(http.StatusOK, data)
}

// Paged sends a paginated response.
func Paged(c *gin.Context, data interface{}, pagination Pagination) {
	c.JSON(http.StatusOK, pagedResponse{
		Data:       data,
		Pagination: pagination,
	})
}

// Accepted sends a 202 response for asynchronously handled work.
func Accepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, data)
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest sends a 400 error response.
func BadRequest(c *gin.Context, message string) {
	abortError(c, http.StatusBadRequest, message, "")
}

// Unauthorized sends a 401 error response.
func Unauthorized(c *gin.Context) {
	abortError(c, http.StatusUnauthorized, "authentication required", "")
}

// UnauthorizedMsg sends a 401 error with a custom message.
func UnauthorizedMsg(c *gin.Context, message string) {
	abortError(c, http.StatusUnauthorized, message, "")
}

// NotFound sends a 404 error response.
func NotFound(c *gin.Context) {
	abortError(c, http.StatusNotFound, "not found", "")
}

// NotFoundMsg sends a 404 error with a custom message.
func NotFoundMsg(c *gin.Context, message string) {
	abortError(c, http.StatusNotFound, message, "")
}

// MethodNotAllowed sends a 405 error response.
func MethodNotAllowed(c *gin.Context) {
	abortError(c, http.StatusMethodNotAllowed, "method not allowed", "")
}

// UnprocessableEntity sends a 422 error response.
func UnprocessableEntity(c *gin.Context, message string) {
	abortError(c, http.StatusUnprocessableEntity, message, "")
}

// InternalError sends a 500 error response.
func InternalError(c *gin.Context, err error) {
	abortError(c, http.StatusInternalServerError, err.Error(), "")
}

// AIError maps a kinded AI-layer error onto the HTTP surface, exposing the
// kind so the UI can branch without parsing messages.
func AIError(c *gin.Context, err error) {
	kind := aierr.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case aierr.KindConfiguration, aierr.KindValidation:
		status = http.StatusUnprocessableEntity
	case aierr.KindInvalidURL:
		status = http.StatusBadRequest
	case aierr.KindAuthentication:
		status = http.StatusBadGateway
	case aierr.KindNetwork:
		status = http.StatusGatewayTimeout
	case aierr.KindInvalidModelFile:
		status = http.StatusConflict
	case aierr.KindTotal:
		status = http.StatusBadGateway
	}
	abortError(c, status, err.Error(), string(kind))
}

func abortError(c *gin.Context, status int, message, kind string) {
	body := gin.H{"ok": 0, "code": status, "message": message}
	if kind != "" {
		body["kind"] = kind
	}
	c.AbortWithStatusJSON(status, body)
}
