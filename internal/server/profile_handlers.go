package server

import (
	"encoding/json"

	"prok/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetProfile handles GET /api/profile. The profile row is created on first
// access.
// @Summary Get own profile
// @Tags profile
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{success=bool,profile=models.ProfileView}
// @Failure 404 {object} models.ErrorResponse
// @Router /profile [get]
func (s *Server) GetProfile(c *fiber.Ctx) error {
	view, err := s.profiles.Get(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "profile": view})
}

// UpdateProfile handles PUT /api/profile. Only supplied fields change; all
// field errors are reported together and nothing is written if any fail.
// @Summary Update own profile
// @Tags profile
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.ProfileUpdate true "Fields to change"
// @Success 200 {object} object{success=bool,message=string,profile=models.ProfileView}
// @Failure 400 {object} models.ErrorResponse
// @Router /profile [put]
func (s *Server) UpdateProfile(c *fiber.Ctx) error {
	body := c.Body()
	if len(body) == 0 {
		return badRequest(c, "No data provided")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if len(fields) == 0 {
		return badRequest(c, "No data provided")
	}

	view, err := s.profiles.Update(c.UserContext(), currentUserID(c), service.DecodeProfileUpdate(fields))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Profile updated successfully",
		"profile": view,
	})
}

// UploadProfileImage handles POST /api/profile/image
// @Summary Upload profile image
// @Description Stores a resized JPEG (plus WebP companion) and replaces the previous image
// @Tags profile
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param image formData file true "PNG, JPG, JPEG, GIF or WebP image"
// @Success 200 {object} object{success=bool,message=string,image_url=string}
// @Failure 400 {object} models.ErrorResponse
// @Failure 413 {object} models.ErrorResponse
// @Router /profile/image [post]
func (s *Server) UploadProfileImage(c *fiber.Ctx) error {
	if !isMultipart(c) {
		return badRequest(c, "No image file provided")
	}
	form, err := c.MultipartForm()
	if err != nil {
		return badRequest(c, "No image file provided")
	}

	files, ok := form.File["image"]
	if !ok || len(files) == 0 {
		if _, named := form.Value["image"]; named {
			return badRequest(c, "No image file selected")
		}
		return badRequest(c, "No image file provided")
	}
	fh := formFile(form, "image")
	if fh == nil {
		return badRequest(c, "No image file selected")
	}

	upload, err := readUpload(fh)
	if err != nil {
		return respondServiceError(c, err)
	}

	url, err := s.profiles.SetImage(c.UserContext(), currentUserID(c), upload.Filename, upload.Content)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":   true,
		"message":   "Profile image uploaded successfully",
		"image_url": url,
	})
}

// DeleteProfileImage handles DELETE /api/profile/image
// @Summary Remove profile image
// @Tags profile
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{success=bool,message=string}
// @Failure 404 {object} models.ErrorResponse
// @Router /profile/image [delete]
func (s *Server) DeleteProfileImage(c *fiber.Ctx) error {
	if err := s.profiles.ClearImage(c.UserContext(), currentUserID(c)); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Profile image deleted successfully",
	})
}

// GetPublicProfile handles GET /api/profile/:id
// @Summary Public profile
// @Tags profile
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} object{success=bool,profile=models.PublicProfileView}
// @Failure 404 {object} models.ErrorResponse
// @Router /profile/{id} [get]
func (s *Server) GetPublicProfile(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	view, err := s.profiles.PublicProfile(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "profile": view})
}
