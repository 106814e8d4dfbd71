package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/justsurfingit/jobtrackr/internal/apperrors"
)

// APIResponse is the envelope of every JSON answer.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

type ErrorInfo struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ListResponse represents a paginated list response
type ListResponse struct {
	Items      interface{} `json:"items"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int         `json:"total_pages"`
}

func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, APIResponse{
		Success: true,
		Data:    data,
		Message: message,
	})
}

func CreatedResponse(c *gin.Context, data interface{}, message ...string) {
	response := APIResponse{
		Success: true,
		Data:    data,
	}
	if len(message) > 0 {
		response.Message = message[0]
	} else {
		response.Message = "Resource created successfully"
	}
	c.JSON(http.StatusCreated, response)
}

func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, APIResponse{
		Success: false,
		Error:   &ErrorInfo{Type: "error", Message: message},
	})
}

// ErrorResponseWithError maps AppErrors to their status code. Anything else is a 500 that does not
// expose the underlying error.
func ErrorResponseWithError(c *gin.Context, err error) {
	var statusCode int
	var info ErrorInfo

	if appErr := apperrors.GetAppError(err); appErr != nil {
		statusCode = appErr.Code
		info = ErrorInfo{
			Type:    string(appErr.Type),
			Message: appErr.Message,
			Details: appErr.Details,
		}
	} else {
		_ = c.Error(err)
		statusCode = http.StatusInternalServerError
		info = ErrorInfo{
			Type:    string(apperrors.ErrorTypeInternal),
			Message: "Internal server error occurred",
		}
	}

	c.JSON(statusCode, APIResponse{Success: false, Error: &info})
}

func ListSuccessResponse(c *gin.Context, items interface{}, total int64, page, pageSize int, message ...string) {
	totalPages := 1
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	if totalPages == 0 {
		totalPages = 1
	}

	response := APIResponse{
		Success: true,
		Data: ListResponse{
			Items:      items,
			Total:      total,
			Page:       page,
			PageSize:   pageSize,
			TotalPages: totalPages,
		},
	}
	if len(message) > 0 {
		response.Message = message[0]
	}
	c.JSON(http.StatusOK, response)
}

func NoContentResponse(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
