package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/booktracker/internal/auth"
	"github.com/mrlokans/booktracker/internal/barcode"
	"github.com/mrlokans/booktracker/internal/library"
	"github.com/mrlokans/booktracker/internal/store"
)

// ErrorResponse is the standard error response format for all API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`    // machine-readable error code
	Details any    `json:"details,omitempty"` // additional context (validation errors, etc.)
}

// Machine-readable error codes.
const (
	CodeValidation   = "validation_failed"
	CodeNotFound     = "not_found"
	CodeForbidden    = "forbidden"
	CodeDuplicate    = "already_exists"
	CodeUnavailable  = "capability_unavailable"
	CodeInvalidImage = "invalid_image"
	CodeNoISBN       = "no_isbn"
	CodeInternal     = "internal"
)

// classifyError maps a domain error onto its status code and response.
func classifyError(err error) (int, ErrorResponse) {
	var verr *library.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, ErrorResponse{Error: "validation failed", Code: CodeValidation, Details: verr.Fields}
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{Error: "book not found", Code: CodeNotFound}
	case errors.Is(err, library.ErrForbidden):
		return http.StatusForbidden, ErrorResponse{Error: "You are not authorized to edit this book.", Code: CodeForbidden}
	case errors.Is(err, library.ErrAlreadyInLibrary), errors.Is(err, store.ErrAlreadyExists):
		return http.StatusConflict, ErrorResponse{Error: "Book already in your library.", Code: CodeDuplicate}
	case errors.Is(err, barcode.ErrCapabilityUnavailable):
		return http.StatusServiceUnavailable, ErrorResponse{Error: "Barcode scanning is not available on this server.", Code: CodeUnavailable}
	case errors.Is(err, barcode.ErrInvalidImage):
		return http.StatusBadRequest, ErrorResponse{Error: "Invalid image data.", Code: CodeInvalidImage}
	case errors.Is(err, barcode.ErrNoISBN):
		return http.StatusNotFound, ErrorResponse{Error: "No valid ISBN barcode found.", Code: CodeNoISBN}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: CodeInternal}
	}
}

// respondError writes the mapped error. Unmapped errors are logged and
// hidden behind a generic 500.
func respondError(c *gin.Context, log *zap.Logger, err error, action string) {
	status, body := classifyError(err)
	if status == http.StatusInternalServerError {
		log.Error(action+" failed", zap.Error(err), zap.String("user_id", auth.GetUserID(c)))
	}
	c.JSON(status, body)
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: message})
}

// wantsJSON reports whether the client asked for JSON instead of a page.
func wantsJSON(c *gin.Context) bool {
	return strings.HasPrefix(c.Request.URL.Path, "/api/") ||
		strings.Contains(c.GetHeader("Accept"), "application/json")
}
