package service

import (
	"context"
	"errors"
	"strings"

	"prok/internal/models"
	"prok/internal/observability"
	"prok/internal/repository"
	"prok/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

// Account failures surfaced to clients.
var (
	ErrCredentialsRequired = models.NewValidationError("Username, email, and password are required")
	ErrLoginFieldsRequired = models.NewValidationError("Username/email and password are required")
	ErrUsernameTaken       = models.NewConflictError("Username already exists")
	ErrEmailTaken          = models.NewConflictError("Email already exists")
	ErrInvalidCredentials  = models.NewUnauthorizedError("Invalid username/email or password")
	ErrAccountDisabled     = models.NewUnauthorizedError("Account is deactivated")
)

// AccountService owns registration and credential checks.
type AccountService struct {
	users     repository.UserRepository
	validator validation.Validator
	cost      int
}

// NewAccountService returns an AccountService. A nil validator uses
// validation.Default.
func NewAccountService(users repository.UserRepository, v validation.Validator) *AccountService {
	if v == nil {
		v = validation.Default
	}
	return &AccountService{users: users, validator: v, cost: bcrypt.DefaultCost}
}

// RegisterInput carries the raw signup fields.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// Register creates an active account. Username and email are sanitised
// before validation; the password is used as given.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (user *models.User, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "account", "Register")
	defer func() {
		observability.AuthAttempts.WithLabelValues("signup", outcome(err)).Inc()
		observability.EndSpan(span, err)
	}()

	username := s.validator.Sanitize(in.Username, 0)
	email := s.validator.Sanitize(in.Email, 0)
	if username == "" || email == "" || in.Password == "" {
		return nil, ErrCredentialsRequired
	}
	if err := s.validator.Username(username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := s.validator.Email(email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := s.validator.Password(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	if err := s.checkAvailable(ctx, username, email); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user = &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		var dup *repository.DuplicateError
		if errors.As(err, &dup) {
			return nil, s.takenError(ctx, dup, username, email)
		}
		return nil, err
	}
	return user, nil
}

func (s *AccountService) checkAvailable(ctx context.Context, username, email string) error {
	existing, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrUsernameTaken
	}
	existing, err = s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrEmailTaken
	}
	return nil
}

// takenError resolves an insert race into the matching taken error.
func (s *AccountService) takenError(ctx context.Context, dup *repository.DuplicateError, username, email string) error {
	switch dup.Field {
	case "username":
		return ErrUsernameTaken
	case "email":
		return ErrEmailTaken
	}
	if err := s.checkAvailable(ctx, username, email); err != nil {
		return err
	}
	return ErrUsernameTaken
}

// Authenticate resolves identifier as an email when it contains '@' and as a
// username otherwise. Unknown accounts and wrong passwords are reported the
// same way; a disabled account is reported only after the password matched.
func (s *AccountService) Authenticate(ctx context.Context, identifier, password string) (user *models.User, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "account", "Authenticate")
	defer func() {
		observability.AuthAttempts.WithLabelValues("login", outcome(err)).Inc()
		observability.EndSpan(span, err)
	}()

	identifier = s.validator.Sanitize(identifier, 0)
	if identifier == "" || password == "" {
		return nil, ErrLoginFieldsRequired
	}

	if strings.Contains(identifier, "@") {
		user, err = s.users.GetByEmail(ctx, identifier)
	} else {
		user, err = s.users.GetByUsername(ctx, identifier)
	}
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}
	return user, nil
}

func (s *AccountService) FindByID(ctx context.Context, id uint) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

// FindByUsername returns NotFound when no account has the name.
func (s *AccountService) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return orNotFound(s.users.GetByUsername(ctx, username))
}

// FindByEmail returns NotFound when no account has the address.
func (s *AccountService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return orNotFound(s.users.GetByEmail(ctx, email))
}

// Deactivate disables login for the account.
func (s *AccountService) Deactivate(ctx context.Context, id uint) error {
	return s.users.SetActive(ctx, id, false)
}

func orNotFound(u *models.User, err error) (*models.User, error) {
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, models.NewNotFoundError("User not found")
	}
	return u, nil
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	if appErr, ok := models.AsAppError(err); ok {
		return strings.ToLower(appErr.Code)
	}
	return "error"
}
