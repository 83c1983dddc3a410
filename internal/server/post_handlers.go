package server

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"strings"

	"prok/internal/middleware"
	"prok/internal/models"
	"prok/internal/service"

	"github.com/gofiber/fiber/v2"
)

var errBadTags = models.NewValidationError("Tags must be a list or a comma separated string")

// CreatePostRequest is the JSON form of POST /api/posts. Tags may be a list
// or a comma separated string.
type CreatePostRequest struct {
	Content     string          `json:"content"`
	RichContent string          `json:"rich_content"`
	Tags        json.RawMessage `json:"tags" swaggertype:"array,string"`
	Visibility  string          `json:"visibility" validate:"omitempty,visibility"`
	Category    string          `json:"category"`
}

// UpdatePostRequest is the JSON form of PUT /api/posts/:id. Absent fields
// are left unchanged.
type UpdatePostRequest struct {
	Content     models.Optional[string]          `json:"content" swaggertype:"string"`
	RichContent models.Optional[string]          `json:"rich_content" swaggertype:"string"`
	Tags        models.Optional[json.RawMessage] `json:"tags" swaggertype:"array,string"`
	Visibility  models.Optional[string]          `json:"visibility" swaggertype:"string"`
	Category    models.Optional[string]          `json:"category" swaggertype:"string"`
	RemoveMedia bool                             `json:"remove_media"`
}

// PostListResponse is one page of the feed.
type PostListResponse struct {
	Posts      []models.PostView `json:"posts"`
	Pagination models.Pagination `json:"pagination"`
}

// parseTags accepts a JSON list of strings or a comma separated string.
func parseTags(raw json.RawMessage) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return service.NormalizeTags(list), nil
	}
	var csv string
	if err := json.Unmarshal(raw, &csv); err == nil {
		return service.SplitTags(csv), nil
	}
	return nil, errBadTags
}

func postViews(posts []*models.Post) []models.PostView {
	out := make([]models.PostView, len(posts))
	for i, p := range posts {
		out[i] = p.View()
	}
	return out
}

// CreatePost handles POST /api/posts
// @Summary Create post
// @Description Accepts multipart/form-data (content, rich_content, tags as CSV, visibility, category, media file) or JSON
// @Tags posts
// @Accept multipart/form-data
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param content formData string false "Post text"
// @Param rich_content formData string false "Formatted post text"
// @Param tags formData string false "Comma separated tags"
// @Param visibility formData string false "public, connections or private"
// @Param category formData string false "Post category"
// @Param media formData file false "Image or video attachment"
// @Success 201 {object} object{message=string,post=models.PostView}
// @Failure 400 {object} models.ErrorResponse
// @Failure 413 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	in := service.CreatePostInput{AuthorID: currentUserID(c)}

	if isMultipart(c) {
		form, err := c.MultipartForm()
		if err != nil {
			return badRequest(c, "Invalid form data")
		}
		in.Content, _ = formValue(form, "content")
		in.RichContent, _ = formValue(form, "rich_content")
		in.Visibility, _ = formValue(form, "visibility")
		in.Category, _ = formValue(form, "category")
		req := CreatePostRequest{Visibility: in.Visibility}
		if err := s.checkRequest(&req, nil); err != nil {
			return respondServiceError(c, err)
		}
		if csv, ok := formValue(form, "tags"); ok {
			in.Tags = service.SplitTags(csv)
		}
		if in.Media, err = uploadFrom(form); err != nil {
			return respondServiceError(c, err)
		}
	} else {
		var req CreatePostRequest
		if len(c.Body()) > 0 {
			if err := json.Unmarshal(c.Body(), &req); err != nil {
				return badRequest(c, "Invalid request body")
			}
		}
		if err := s.checkRequest(&req, nil); err != nil {
			return respondServiceError(c, err)
		}
		tags, err := parseTags(req.Tags)
		if err != nil {
			return respondServiceError(c, err)
		}
		in.Content, in.RichContent, in.Tags = req.Content, req.RichContent, tags
		in.Visibility, in.Category = req.Visibility, req.Category
	}

	post, err := s.posts.Create(c.UserContext(), in)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Post created successfully",
		"post":    post.View(),
	})
}

func uploadFrom(form *multipart.Form) (*service.Upload, error) {
	fh := formFile(form, "media")
	if fh == nil {
		return nil, nil
	}
	return readUpload(fh)
}

// GetPosts handles GET /api/posts
// @Summary List posts
// @Description Paginated feed. Private posts are only listed for their author.
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Page size (max 50)" default(20)
// @Param search query string false "Case-insensitive text search"
// @Param category query string false "Category"
// @Param visibility query string false "Visibility tier"
// @Param tags query string false "Comma separated tags, any of"
// @Param user_id query int false "Author ID"
// @Param sort_by query string false "created_at, likes_count, comments_count or views_count"
// @Param sort_order query string false "asc or desc" default(desc)
// @Success 200 {object} PostListResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /posts [get]
func (s *Server) GetPosts(c *fiber.Ctx) error {
	authorID := c.QueryInt("user_id", 0)
	if authorID < 0 {
		return badRequest(c, "Invalid user ID")
	}

	filter := service.ListFilter{
		Search:     strings.TrimSpace(c.Query("search")),
		Category:   c.Query("category"),
		Visibility: c.Query("visibility"),
		Tags:       service.SplitTags(c.Query("tags")),
		AuthorID:   uint(authorID),
		ViewerID:   currentUserID(c),
	}
	sort := service.ParseSort(c.Query("sort_by"), c.Query("sort_order"))
	page, perPage := pageParams(c)

	result, err := s.posts.List(c.UserContext(), filter, sort, page, perPage)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(PostListResponse{
		Posts:      postViews(result.Posts),
		Pagination: result.Pagination,
	})
}

// GetCategories handles GET /api/posts/categories
// @Summary Post counts per category
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{categories=[]models.NameCount}
// @Router /posts/categories [get]
func (s *Server) GetCategories(c *fiber.Ctx) error {
	cats, err := s.posts.Categories(c.UserContext())
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"categories": cats})
}

// GetPopularTags handles GET /api/posts/popular-tags
// @Summary Most used tags
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{tags=[]models.NameCount}
// @Router /posts/popular-tags [get]
func (s *Server) GetPopularTags(c *fiber.Ctx) error {
	tags, err := s.posts.PopularTags(c.UserContext())
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"tags": tags})
}

// GetPost handles GET /api/posts/:id and counts the view.
// @Summary Get post
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} object{post=models.PostView}
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	ctx := c.UserContext()
	post, err := s.posts.Get(ctx, id)
	if err != nil {
		return respondServiceError(c, err)
	}
	if err := s.posts.RecordView(ctx, id); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to record post view",
			slog.Uint64("post_id", uint64(id)),
			slog.String("error", err.Error()),
		)
	} else {
		post.ViewsCount++
	}
	return c.JSON(fiber.Map{"post": post.View()})
}

// UpdatePost handles PUT /api/posts/:id
// @Summary Update post
// @Description Owner only. Accepts multipart/form-data or JSON; absent fields are unchanged. A new media file replaces the old one and remove_media clears it.
// @Tags posts
// @Accept multipart/form-data
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param request body UpdatePostRequest false "Fields to change"
// @Success 200 {object} object{message=string,post=models.PostView}
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [put]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	in := service.UpdatePostInput{PostID: id, ActorID: currentUserID(c)}

	if isMultipart(c) {
		form, err := c.MultipartForm()
		if err != nil {
			return badRequest(c, "Invalid form data")
		}
		in.Content = formOptional(form, "content")
		in.RichContent = formOptional(form, "rich_content")
		in.Visibility = formOptional(form, "visibility")
		in.Category = formOptional(form, "category")
		if csv, ok := formValue(form, "tags"); ok {
			in.Tags = models.Some(service.SplitTags(csv))
		}
		if v, ok := formValue(form, "remove_media"); ok {
			in.RemoveMedia = truthy(v)
		}
		if in.Media, err = uploadFrom(form); err != nil {
			return respondServiceError(c, err)
		}
	} else {
		var req UpdatePostRequest
		if len(c.Body()) > 0 {
			if err := json.Unmarshal(c.Body(), &req); err != nil {
				return badRequest(c, "Invalid request body")
			}
		}
		if raw, ok := req.Tags.Get(); ok {
			tags, err := parseTags(raw)
			if err != nil {
				return respondServiceError(c, err)
			}
			in.Tags = models.Some(tags)
		}
		in.Content, in.RichContent = req.Content, req.RichContent
		in.Visibility, in.Category = req.Visibility, req.Category
		in.RemoveMedia = req.RemoveMedia
	}

	post, err := s.posts.Update(c.UserContext(), in)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Post updated successfully",
		"post":    post.View(),
	})
}

// DeletePost handles DELETE /api/posts/:id. Posts are deactivated, not removed.
// @Summary Delete post
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} object{message=string}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.posts.SoftDelete(c.UserContext(), id, currentUserID(c)); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Post deleted successfully"})
}

// LikePost handles POST /api/posts/:id/like
// @Summary Like post
// @Description Increments the like counter. Likes are not tracked per account.
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} object{message=string,likes_count=int}
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/like [post]
func (s *Server) LikePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	count, err := s.posts.Like(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"message":     "Post liked successfully",
		"likes_count": count,
	})
}

// UnlikePost handles DELETE /api/posts/:id/like
// @Summary Unlike post
// @Description Decrements the like counter, never below zero.
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} object{message=string,likes_count=int}
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/like [delete]
func (s *Server) UnlikePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	count, err := s.posts.Unlike(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"message":     "Post unliked successfully",
		"likes_count": count,
	})
}
