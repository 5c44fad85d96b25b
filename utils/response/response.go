package response

import (
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pakuniscraper/api/utils/apperror"
)

// Status markers carried by every response
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response represents a standardized API response
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Status    string            `json:"status"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
	Timestamp string            `json:"timestamp"`
	Stack     string            `json:"stack,omitempty"` // non-production only
}

// PaginationMeta contains pagination metadata
type PaginationMeta struct {
	CurrentPage  int   `json:"currentPage"`
	TotalPages   int   `json:"totalPages"`
	TotalResults int64 `json:"totalResults"`
	HasNextPage  bool  `json:"hasNextPage"`
	HasPrevPage  bool  `json:"hasPrevPage"`
}

// ListResponse represents a paginated API response
type ListResponse struct {
	Status     string         `json:"status"`
	Results    int            `json:"results"`
	Pagination PaginationMeta `json:"pagination"`
	Data       interface{}    `json:"data"`
}

// Success returns a 200 response
func Success(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusOK).JSON(Response{
		Status: StatusSuccess,
		Data:   data,
	})
}

// SuccessWithMessage returns a 200 response with a message
func SuccessWithMessage(c *fiber.Ctx, message string, data interface{}) error {
	return c.Status(fiber.StatusOK).JSON(Response{
		Status:  StatusSuccess,
		Message: message,
		Data:    data,
	})
}

// Created returns a 201 Created response
func Created(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(Response{
		Status:  StatusSuccess,
		Message: "Resource created successfully",
		Data:    data,
	})
}

// Accepted returns a 202 Accepted response for asynchronous operations
func Accepted(c *fiber.Ctx, message string, data interface{}) error {
	return c.Status(fiber.StatusAccepted).JSON(Response{
		Status:  StatusSuccess,
		Message: message,
		Data:    data,
	})
}

// Paginated returns a list response with a pagination block
func Paginated(c *fiber.Ctx, data interface{}, results int, pagination PaginationMeta) error {
	return c.Status(fiber.StatusOK).JSON(ListResponse{
		Status:     StatusSuccess,
		Results:    results,
		Pagination: pagination,
		Data:       data,
	})
}

// Error returns an error response with the given status code
func Error(c *fiber.Ctx, statusCode int, message string) error {
	return c.Status(statusCode).JSON(ErrorResponse{
		Status:    StatusError,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// ErrorWithFields returns an error response with field-level detail
func ErrorWithFields(c *fiber.Ctx, statusCode int, message string, fields map[string]string) error {
	return c.Status(statusCode).JSON(ErrorResponse{
		Status:    StatusError,
		Message:   message,
		Errors:    fields,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// BadRequest returns a 400 Bad Request response
func BadRequest(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadRequest, message)
}

// NotFound returns a 404 Not Found response
func NotFound(c *fiber.Ctx, message string) error {
	if message == "" {
		message = "Resource not found"
	}
	return Error(c, fiber.StatusNotFound, message)
}

// Conflict returns a 409 Conflict response
func Conflict(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusConflict, message)
}

// TooManyRequests returns a 429 Too Many Requests response
func TooManyRequests(c *fiber.Ctx, message string) error {
	if message == "" {
		message = "Too many requests"
	}
	return Error(c, fiber.StatusTooManyRequests, message)
}

// ValidationError returns a 422 Unprocessable Entity response
func ValidationError(c *fiber.Ctx, message string, fields map[string]string) error {
	if message == "" {
		message = "Validation failed"
	}
	return ErrorWithFields(c, fiber.StatusUnprocessableEntity, message, fields)
}

// InternalServerError returns a 500 response. Full detail only leaves the
// server in non-production deployments.
func InternalServerError(c *fiber.Ctx, err error) error {
	message := "Internal server error"
	stack := ""
	if os.Getenv("GO_ENV") != "production" && err != nil {
		message = err.Error()
		stack = message
	}
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Status:    StatusError,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Stack:     stack,
	})
}

// ServiceUnavailable returns a 503 Service Unavailable response
func ServiceUnavailable(c *fiber.Ctx, message string) error {
	if message == "" {
		message = "Service temporarily unavailable"
	}
	return Error(c, fiber.StatusServiceUnavailable, message)
}

// FromError translates an application error into the proper HTTP response
func FromError(c *fiber.Ctx, err error) error {
	switch apperror.KindOf(err) {
	case apperror.KindValidation:
		return ValidationError(c, err.Error(), apperror.FieldsOf(err))
	case apperror.KindConflict:
		return Conflict(c, err.Error())
	case apperror.KindNotFound:
		return NotFound(c, err.Error())
	case apperror.KindRateLimited:
		return TooManyRequests(c, err.Error())
	default:
		return InternalServerError(c, err)
	}
}

// CalculatePagination calculates pagination metadata. Page and limit are
// clamped: page >= 1, 1 <= limit <= 100.
func CalculatePagination(page, limit int, total int64) PaginationMeta {
	page, limit = ClampPageLimit(page, limit)

	totalPages := int(total) / limit
	if int(total)%limit > 0 {
		totalPages++
	}

	return PaginationMeta{
		CurrentPage:  page,
		TotalPages:   totalPages,
		TotalResults: total,
		HasNextPage:  page < totalPages,
		HasPrevPage:  page > 1,
	}
}

// ClampPageLimit normalizes pagination parameters: page defaults to 1,
// limit defaults to 20 and is capped at 100.
func ClampPageLimit(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}
