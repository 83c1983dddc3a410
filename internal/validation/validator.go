package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Validator is the single entry point stores and services use for input checks.
type Validator interface {
	Username(string) error
	Email(string) error
	Password(string) error
	URL(string) error
	PlatformURL(url string, platform Platform) error
	Phone(string) error
	CompanySize(string) error
	Visibility(string) error
	Category(string) (string, error)
	Sanitize(text string, max int) string
	Struct(any) error
}

type rules struct{}

// Default is the stateless Validator backed by this package's rules.
var Default Validator = rules{}

func (rules) Username(s string) error { return ValidateUsername(s) }
func (rules) Email(s string) error { return ValidateEmail(s) }
func (rules) Password(s string) error { return ValidatePassword(s) }
func (rules) URL(s string) error { return ValidateURL(s) }
func (rules) PlatformURL(s string, p Platform) error { return ValidatePlatformURL(s, p) }
func (rules) Phone(s string) error { return ValidatePhone(s) }
func (rules) CompanySize(s string) error { return ValidateCompanySize(s) }
func (rules) Visibility(s string) error { return ValidateVisibility(s) }
func (rules) Category(s string) (string, error) { return NormalizeCategory(s) }
func (rules) Sanitize(text string, max int) string { return Sanitize(text, max) }
func (rules) Struct(s any) error {
	if err := ValidateStruct(s); err != nil {
		return err
	}
	return nil
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError is one failed struct-tag rule.
type FieldError struct {
	Field   string
	Tag     string
	Message string
}

// StructError collects the failures of one ValidateStruct call.
type StructError struct {
	Fields []FieldError
}

func (e *StructError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, "; ")
}

// Messages returns the per-field messages in declaration order.
func (e *StructError) Messages() []string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return msgs
}

// HasTag reports whether any field failed the given rule.
func (e *StructError) HasTag(tag string) bool {
	for _, f := range e.Fields {
		if f.Tag == tag {
			return true
		}
	}
	return false
}

// MissingRequired reports whether a required or required_* rule failed.
func (e *StructError) MissingRequired() bool {
	for _, f := range e.Fields {
		if strings.HasPrefix(f.Tag, "required") {
			return true
		}
	}
	return false
}

// GetValidator returns the shared go-playground validator. Field names in
// messages use the json tag.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		_ = validate.RegisterValidation("visibility", func(fl validator.FieldLevel) bool {
			return ValidateVisibility(fl.Field().String()) == nil
		})
	})
	return validate
}

// ValidateStruct runs struct-tag validation and returns *StructError on failure.
func ValidateStruct(s any) *StructError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &StructError{Fields: []FieldError{{Field: "unknown", Tag: "unknown", Message: err.Error()}}}
	}

	out := &StructError{Fields: make([]FieldError, len(verrs))}
	for i, fe := range verrs {
		out.Fields[i] = FieldError{Field: fe.Field(), Tag: fe.Tag(), Message: translateError(fe)}
	}
	return out
}

var errorMessageTemplates = map[string]string{
	"required":             "%s is required",
	"required_without_all": "%s is required",
	"email":                "%s must be a valid email address",
	"visibility":           "Invalid visibility setting",
}

var errorMessageWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"max":   "%s must be at most %s characters",
	"min":   "%s must be at least %s characters",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
}

func translateError(fe validator.FieldError) string {
	if tmpl, ok := errorMessageTemplates[fe.Tag()]; ok {
		if strings.Contains(tmpl, "%s") {
			return fmt.Sprintf(tmpl, fe.Field())
		}
		return tmpl
	}
	if tmpl, ok := errorMessageWithParam[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
}
