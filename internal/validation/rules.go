// Package validation provides input validation utilities
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"prok/internal/models"
)

var (
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	urlRegex      = regexp.MustCompile(`^https?://(?:[-\w.])+(?:[:\d]+)?(?:/(?:[\w/_.])*(?:\?(?:[\w&=%.])*)?(?:#(?:[\w.])*)?)?$`)
	upperRegex    = regexp.MustCompile(`[A-Z]`)
	lowerRegex    = regexp.MustCompile(`[a-z]`)
	digitRegex    = regexp.MustCompile(`\d`)
	specialRegex  = regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>]`)
	nonDigitRegex = regexp.MustCompile(`\D`)
	unsafeChars   = strings.NewReplacer("<", "", ">", "", `"`, "", "'", "")
)

// Column widths enforced before persistence.
const (
	MaxEmailLen = 120
	MaxURLLen   = 200
	MaxPhoneLen = 20
)

// Platform names a social network whose profile URLs are checked.
type Platform string

const (
	PlatformLinkedIn Platform = "linkedin"
	PlatformTwitter  Platform = "twitter"
	PlatformGitHub   Platform = "github"
)

var platformDomains = map[Platform][]string{
	PlatformLinkedIn: {"linkedin.com"},
	PlatformTwitter:  {"twitter.com", "x.com"},
	PlatformGitHub:   {"github.com"},
}

var platformLabels = map[Platform]string{
	PlatformLinkedIn: "LinkedIn",
	PlatformTwitter:  "Twitter",
	PlatformGitHub:   "GitHub",
}

// ErrPasswordLength and ErrPasswordComplexity are the two password failures.
var (
	ErrPasswordLength     = errors.New("Password must be at least 8 characters long")
	ErrPasswordComplexity = errors.New("Password must contain uppercase, lowercase, digit, and special character")
)

// ValidateUsername checks length and allowed characters.
func ValidateUsername(username string) error {
	if n := utf8.RuneCountInString(username); n < 3 || n > 80 {
		return errors.New("Username must be between 3 and 80 characters")
	}
	if !usernameRegex.MatchString(username) {
		return errors.New("Username can only contain letters, numbers, underscores, and hyphens")
	}
	return nil
}

// ValidateEmail checks length, a single @ and a dotted domain.
func ValidateEmail(email string) error {
	if utf8.RuneCountInString(email) > MaxEmailLen {
		return fmt.Errorf("Email must be at most %d characters", MaxEmailLen)
	}
	if strings.Count(email, "@") != 1 || !emailRegex.MatchString(email) {
		return errors.New("Invalid email format")
	}
	return nil
}

// ValidatePassword checks if a password meets complexity requirements
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < 8 {
		return ErrPasswordLength
	}
	if !upperRegex.MatchString(password) ||
		!lowerRegex.MatchString(password) ||
		!digitRegex.MatchString(password) ||
		!specialRegex.MatchString(password) {
		return ErrPasswordComplexity
	}
	return nil
}

// ValidateURL checks a generic http(s) URL. Empty is accepted.
func ValidateURL(url string) error {
	if url == "" {
		return nil
	}
	if utf8.RuneCountInString(url) > MaxURLLen {
		return fmt.Errorf("Website URL must be at most %d characters", MaxURLLen)
	}
	if !urlRegex.MatchString(url) {
		return errors.New("Invalid website URL format")
	}
	return nil
}

// ValidatePlatformURL checks the generic URL shape and that the host belongs
// to the platform. Empty is accepted.
func ValidatePlatformURL(url string, platform Platform) error {
	if url == "" {
		return nil
	}
	domains, ok := platformDomains[platform]
	if !ok {
		return fmt.Errorf("unknown platform %q", platform)
	}
	if utf8.RuneCountInString(url) > MaxURLLen {
		return fmt.Errorf("%s URL must be at most %d characters", platformLabels[platform], MaxURLLen)
	}
	invalid := fmt.Errorf("Invalid %s URL format", platformLabels[platform])
	if !urlRegex.MatchString(url) {
		return invalid
	}
	lower := strings.ToLower(url)
	for _, d := range domains {
		if strings.Contains(lower, d) {
			return nil
		}
	}
	return invalid
}

// ValidatePhone caps the raw length, then counts digits after stripping
// everything else. Empty is accepted.
func ValidatePhone(phone string) error {
	if phone == "" {
		return nil
	}
	if utf8.RuneCountInString(phone) > MaxPhoneLen {
		return fmt.Errorf("Phone number must be at most %d characters", MaxPhoneLen)
	}
	digits := nonDigitRegex.ReplaceAllString(phone, "")
	if len(digits) < 7 || len(digits) > 15 {
		return errors.New("Phone number must be between 7 and 15 digits")
	}
	return nil
}

// ValidateCompanySize checks membership in the bucket enumeration. Empty is accepted.
func ValidateCompanySize(size string) error {
	if size == "" || slices.Contains(models.CompanySizes, size) {
		return nil
	}
	return fmt.Errorf("Company size must be one of: %s", strings.Join(models.CompanySizes, ", "))
}

// ValidateVisibility checks the post visibility tier.
func ValidateVisibility(visibility string) error {
	switch visibility {
	case models.VisibilityPublic, models.VisibilityConnections, models.VisibilityPrivate:
		return nil
	}
	return errors.New("Invalid visibility setting")
}

// NormalizeCategory lower-cases and trims a category, defaulting blank input.
func NormalizeCategory(category string) (string, error) {
	c := strings.ToLower(strings.TrimSpace(category))
	if c == "" {
		return models.DefaultCategory, nil
	}
	if !slices.Contains(models.Categories, c) {
		return "", errors.New("Invalid category")
	}
	return c, nil
}

// Sanitize strips markup-significant characters, truncates to max runes when
// max is positive, then trims surrounding whitespace.
func Sanitize(text string, max int) string {
	if text == "" {
		return text
	}
	s := unsafeChars.Replace(text)
	if max > 0 && utf8.RuneCountInString(s) > max {
		s = string([]rune(s)[:max])
	}
	return strings.TrimSpace(s)
}
