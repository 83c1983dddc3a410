package server

import (
	"prok/internal/models"
	"prok/internal/service"

	"github.com/gofiber/fiber/v2"
)

// SignupRequest is the body of POST /api/signup.
type SignupRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginRequest is the body of POST /api/login. UsernameOrEmail is treated as
// an email when it contains "@". Username and Email are accepted as fallbacks.
type LoginRequest struct {
	UsernameOrEmail string `json:"username_or_email" validate:"required_without_all=Username Email"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password" validate:"required"`
}

// AuthResponse is returned by signup and login.
type AuthResponse struct {
	Message     string       `json:"message"`
	User        *models.User `json:"user"`
	AccessToken string       `json:"access_token"`
}

// Signup handles POST /api/signup
// @Summary User signup
// @Description Register a new account and return a bearer token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body SignupRequest true "Signup request"
// @Success 201 {object} AuthResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /signup [post]
func (s *Server) Signup(c *fiber.Ctx) error {
	var req SignupRequest
	if len(c.Body()) == 0 {
		return badRequest(c, "No data provided")
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := s.checkRequest(&req, service.ErrCredentialsRequired); err != nil {
		return respondServiceError(c, err)
	}

	user, err := s.accounts.Register(c.UserContext(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(AuthResponse{
		Message:     "User created successfully",
		User:        user,
		AccessToken: token,
	})
}

// Login handles POST /api/login
// @Summary User login
// @Description Authenticate by username or email and return a bearer token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if len(c.Body()) == 0 {
		return badRequest(c, "No data provided")
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := s.checkRequest(&req, service.ErrLoginFieldsRequired); err != nil {
		return respondServiceError(c, err)
	}

	identifier := req.UsernameOrEmail
	if identifier == "" {
		identifier = req.Username
	}
	if identifier == "" {
		identifier = req.Email
	}

	user, err := s.accounts.Authenticate(c.UserContext(), identifier, req.Password)
	if err != nil {
		return respondServiceError(c, err)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(AuthResponse{
		Message:     "Login successful",
		User:        user,
		AccessToken: token,
	})
}

// Logout handles POST /api/logout. Tokens are not revoked server side; the
// client discards its copy.
// @Summary Logout
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{message=string}
// @Router /logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": "Logout successful"})
}

// Me handles GET /api/me
// @Summary Current account
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{user=models.User}
// @Failure 404 {object} models.ErrorResponse
// @Router /me [get]
func (s *Server) Me(c *fiber.Ctx) error {
	user, err := s.accounts.FindByID(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"user": user})
}
