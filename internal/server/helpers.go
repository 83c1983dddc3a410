package server

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"strings"
	"unicode"

	"prok/internal/middleware"
	"prok/internal/models"
	"prok/internal/service"
	"prok/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

var statusByCode = map[string]int{
	models.CodeValidation:      fiber.StatusBadRequest,
	models.CodeConflict:        fiber.StatusBadRequest,
	models.CodeUnauthorized:    fiber.StatusUnauthorized,
	models.CodeForbidden:       fiber.StatusForbidden,
	models.CodeNotFound:        fiber.StatusNotFound,
	models.CodePayloadTooLarge: fiber.StatusRequestEntityTooLarge,
}

// statusFor maps a service error to its HTTP status. Anything that is not a
// known AppError is a 500.
func statusFor(err error) int {
	if appErr, ok := models.AsAppError(err); ok {
		if status, found := statusByCode[appErr.Code]; found {
			return status
		}
	}
	return fiber.StatusInternalServerError
}

// respondServiceError writes err with the status its code maps to. Internal
// failures are logged with the request context and answered generically.
func respondServiceError(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status == fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request failed",
			slog.String("path", c.Path()),
			slog.String("error", err.Error()),
		)
		return models.RespondWithError(c, status, models.NewInternalError(err))
	}
	return models.RespondWithError(c, status, err)
}

// checkRequest runs the struct-tag rules on req. A missing required field
// yields required when it is non-nil; other failures become validation
// errors, with details when more than one rule failed.
func (s *Server) checkRequest(req any, required error) error {
	err := s.validator.Struct(req)
	if err == nil {
		return nil
	}
	var serr *validation.StructError
	if !errors.As(err, &serr) {
		return models.NewValidationError(err.Error())
	}
	if required != nil && serr.MissingRequired() {
		return required
	}
	if msgs := serr.Messages(); len(msgs) > 1 {
		return models.NewValidationErrors(msgs)
	}
	return models.NewValidationError(serr.Error())
}

func badRequest(c *fiber.Ctx, message string) error {
	return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError(message))
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = badRequest(c, "Invalid "+humanizeParam(param))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "userId" -> "user ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		words := splitCamel(param[:len(param)-2])
		return strings.ToLower(strings.Join(words, " ")) + " ID"
	}
	return param
}

// splitCamel splits a camelCase string into words.
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	words = append(words, s[start:])
	return words
}

// currentUserID returns the account set by AuthRequired.
func currentUserID(c *fiber.Ctx) uint {
	id, _ := middleware.UserID(c)
	return id
}

// pageParams reads page and per_page. Out of range values are clamped by
// the post service.
func pageParams(c *fiber.Ctx) (page, perPage int) {
	return c.QueryInt("page", 1), c.QueryInt("per_page", service.DefaultPerPage)
}

// isMultipart reports whether the request carries a multipart form.
func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEMultipartForm)
}

// readUpload loads a form file into memory.
func readUpload(fh *multipart.FileHeader) (*service.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return &service.Upload{Filename: fh.Filename, Content: content}, nil
}

// formFile returns the named file of a multipart form, or nil when absent or
// submitted without a file name.
func formFile(form *multipart.Form, field string) *multipart.FileHeader {
	if form == nil {
		return nil
	}
	files := form.File[field]
	if len(files) == 0 || files[0].Filename == "" {
		return nil
	}
	return files[0]
}

// formValue returns the first value of field and whether it was submitted.
func formValue(form *multipart.Form, field string) (string, bool) {
	if form == nil {
		return "", false
	}
	vals, ok := form.Value[field]
	if !ok || len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

func formOptional(form *multipart.Form, field string) models.Optional[string] {
	if v, ok := formValue(form, field); ok {
		return models.Some(v)
	}
	return models.Optional[string]{}
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
