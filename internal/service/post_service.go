package service

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"prok/internal/cache"
	"prok/internal/middleware"
	"prok/internal/models"
	"prok/internal/observability"
	"prok/internal/repository"
	"prok/internal/validation"
)

// Feed paging bounds.
const (
	DefaultPerPage  = 20
	MaxPerPage      = 50
	PopularTagLimit = 20
)

// Post failures surfaced to clients.
var (
	ErrPostContentRequired = models.NewValidationError("Post content is required")
	ErrInvalidVisibility   = models.NewValidationError("Invalid visibility setting")
	ErrNotPostOwner        = models.NewForbiddenError("Unauthorized")
)

// PostMediaStore is the media dependency of PostService.
type PostMediaStore interface {
	SavePostMedia(ctx context.Context, filename string, content []byte) (models.MediaRef, error)
	Delete(url string) error
}

// Upload is a file received with a request.
type Upload struct {
	Filename string
	Content  []byte
}

type CreatePostInput struct {
	AuthorID    uint
	Content     string
	RichContent string
	Tags        []string
	Visibility  string
	Category    string
	Media       *Upload
}

// UpdatePostInput applies only the fields that are Set. Media replaces the
// current attachment; RemoveMedia clears it.
type UpdatePostInput struct {
	PostID      uint
	ActorID     uint
	Content     models.Optional[string]
	RichContent models.Optional[string]
	Tags        models.Optional[[]string]
	Visibility  models.Optional[string]
	Category    models.Optional[string]
	Media       *Upload
	RemoveMedia bool
}

// ListFilter narrows the feed. ViewerID is the acting account.
type ListFilter struct {
	Search     string
	Category   string
	Visibility string
	Tags       []string
	AuthorID   uint
	ViewerID   uint
}

// Sort orders the feed by one column.
type Sort struct {
	Field string
	Desc  bool
}

var sortAliases = map[string]string{
	"created_at":     repository.SortCreatedAt,
	"createdAt":      repository.SortCreatedAt,
	"likes_count":    repository.SortLikesCount,
	"likeCount":      repository.SortLikesCount,
	"comments_count": repository.SortCommentsCount,
	"commentCount":   repository.SortCommentsCount,
	"views_count":    repository.SortViewsCount,
	"viewCount":      repository.SortViewsCount,
}

// ParseSort resolves a field name and direction. Unknown fields sort by
// newest first; any direction other than "asc" is descending.
func ParseSort(field, direction string) Sort {
	col, ok := sortAliases[strings.TrimSpace(field)]
	if !ok {
		return Sort{Field: repository.SortCreatedAt, Desc: true}
	}
	return Sort{Field: col, Desc: !strings.EqualFold(strings.TrimSpace(direction), "asc")}
}

// PostPage is one page of the feed.
type PostPage struct {
	Posts      []*models.Post
	Pagination models.Pagination
}

// PostService owns the post lifecycle and the aggregate views over posts.
type PostService struct {
	posts     repository.PostRepository
	media     PostMediaStore
	lookup    *cache.LookupCache
	validator validation.Validator
}

// NewPostService returns a PostService. A nil lookup cache is replaced by
// one with the default TTL; a nil validator uses validation.Default.
func NewPostService(
	posts repository.PostRepository,
	media PostMediaStore,
	lookup *cache.LookupCache,
	v validation.Validator,
) *PostService {
	if lookup == nil {
		lookup = cache.NewLookupCache(cache.DefaultLookupTTL, nil)
	}
	if v == nil {
		v = validation.Default
	}
	return &PostService{posts: posts, media: media, lookup: lookup, validator: v}
}

// Create validates and stores a new post, saving its attachment first.
func (s *PostService) Create(ctx context.Context, in CreatePostInput) (post *models.Post, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "post", "Create")
	defer func() { observability.EndSpan(span, err) }()

	content := strings.TrimSpace(in.Content)
	rich := strings.TrimSpace(in.RichContent)
	if content == "" && rich == "" {
		return nil, ErrPostContentRequired
	}

	visibility := strings.TrimSpace(in.Visibility)
	if visibility == "" {
		visibility = models.VisibilityPublic
	}
	if s.validator.Visibility(visibility) != nil {
		return nil, ErrInvalidVisibility
	}
	category, err := s.validator.Category(in.Category)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	post = &models.Post{
		UserID:      in.AuthorID,
		Content:     content,
		RichContent: rich,
		Visibility:  visibility,
		Category:    category,
		IsActive:    true,
	}
	post.SetTags(NormalizeTags(in.Tags))

	if in.Media != nil {
		ref, err := s.media.SavePostMedia(ctx, in.Media.Filename, in.Media.Content)
		if err != nil {
			return nil, err
		}
		post.MediaURL, post.MediaType = ref.URL, ref.Kind
	}

	if err := s.posts.Create(ctx, post); err != nil {
		s.discardMedia(ctx, post.MediaURL)
		return nil, err
	}
	s.lookup.Invalidate()

	return s.posts.GetByID(ctx, post.ID)
}

// Get returns an active post.
func (s *PostService) Get(ctx context.Context, id uint) (*models.Post, error) {
	return s.posts.GetByID(ctx, id)
}

// RecordView bumps the view counter of an active post.
func (s *PostService) RecordView(ctx context.Context, id uint) error {
	return s.posts.IncrementViews(ctx, id)
}

// Update edits a post owned by the actor. Ownership is checked before any
// field is validated.
func (s *PostService) Update(ctx context.Context, in UpdatePostInput) (post *models.Post, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "post", "Update")
	defer func() { observability.EndSpan(span, err) }()

	post, err = s.posts.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	if post.UserID != in.ActorID {
		return nil, ErrNotPostOwner
	}

	if v, ok := in.Content.Get(); ok {
		post.Content = strings.TrimSpace(v)
	}
	if v, ok := in.RichContent.Get(); ok {
		post.RichContent = strings.TrimSpace(v)
	}
	if !post.HasBody() {
		return nil, ErrPostContentRequired
	}
	if v, ok := in.Visibility.Get(); ok {
		v = strings.TrimSpace(v)
		if s.validator.Visibility(v) != nil {
			return nil, ErrInvalidVisibility
		}
		post.Visibility = v
	}
	if v, ok := in.Category.Get(); ok {
		category, err := s.validator.Category(v)
		if err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		post.Category = category
	}
	if v, ok := in.Tags.Get(); ok {
		post.SetTags(NormalizeTags(v))
	}

	previous := post.MediaURL
	switch {
	case in.Media != nil:
		ref, err := s.media.SavePostMedia(ctx, in.Media.Filename, in.Media.Content)
		if err != nil {
			return nil, err
		}
		post.MediaURL, post.MediaType = ref.URL, ref.Kind
	case in.RemoveMedia:
		post.MediaURL, post.MediaType = "", models.MediaNone
	}

	if err := s.posts.Update(ctx, post); err != nil {
		if post.MediaURL != previous {
			s.discardMedia(ctx, post.MediaURL)
		}
		return nil, err
	}
	s.lookup.Invalidate()

	if previous != "" && previous != post.MediaURL {
		s.discardMedia(ctx, previous)
	}
	return post, nil
}

// SoftDelete deactivates a post owned by the actor.
func (s *PostService) SoftDelete(ctx context.Context, id, actorID uint) error {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if post.UserID != actorID {
		return ErrNotPostOwner
	}
	if err := s.posts.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.lookup.Invalidate()
	return nil
}

// List returns one page of the feed. Private posts are only listed when the
// viewer asks for their own posts.
func (s *PostService) List(ctx context.Context, f ListFilter, sort Sort, page, perPage int) (*PostPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}

	category := ""
	if strings.TrimSpace(f.Category) != "" {
		c, err := s.validator.Category(f.Category)
		if err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		category = c
	}

	visible := []string{models.VisibilityPublic, models.VisibilityConnections}
	if f.AuthorID != 0 && f.AuthorID == f.ViewerID {
		visible = append(visible, models.VisibilityPrivate)
	}
	if v := strings.TrimSpace(f.Visibility); v != "" {
		if s.validator.Visibility(v) != nil {
			return nil, ErrInvalidVisibility
		}
		if !slices.Contains(visible, v) {
			return &PostPage{Posts: []*models.Post{}, Pagination: models.NewPagination(page, perPage, 0)}, nil
		}
		visible = []string{v}
	}

	posts, total, err := s.posts.List(ctx, repository.PostQuery{
		Search:       f.Search,
		Category:     category,
		Visibilities: visible,
		Tags:         NormalizeTags(f.Tags),
		AuthorID:     f.AuthorID,
		SortField:    sort.Field,
		SortDesc:     sort.Desc,
		Limit:        perPage,
		Offset:       (page - 1) * perPage,
	})
	if err != nil {
		return nil, err
	}
	return &PostPage{Posts: posts, Pagination: models.NewPagination(page, perPage, total)}, nil
}

// Categories counts active posts per category.
func (s *PostService) Categories(ctx context.Context) ([]models.NameCount, error) {
	return s.lookup.Categories(ctx, s.posts.CategoryCounts)
}

// PopularTags returns the most used tags across active posts.
func (s *PostService) PopularTags(ctx context.Context) ([]models.NameCount, error) {
	return s.lookup.PopularTags(ctx, func(ctx context.Context) ([]models.NameCount, error) {
		return s.posts.TagCounts(ctx, PopularTagLimit)
	})
}

// Like increments the like counter and returns the new value.
func (s *PostService) Like(ctx context.Context, id uint) (int, error) {
	n, err := s.posts.AdjustLikes(ctx, id, 1)
	if err != nil {
		return 0, err
	}
	s.lookup.Invalidate()
	return n, nil
}

// Unlike decrements the like counter, never below zero.
func (s *PostService) Unlike(ctx context.Context, id uint) (int, error) {
	n, err := s.posts.AdjustLikes(ctx, id, -1)
	if err != nil {
		return 0, err
	}
	s.lookup.Invalidate()
	return n, nil
}

func (s *PostService) discardMedia(ctx context.Context, url string) {
	if url == "" {
		return
	}
	if err := s.media.Delete(url); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to delete post media",
			slog.String("url", url),
			slog.String("error", err.Error()),
		)
	}
}

// NormalizeTags trims tags, drops empty and repeated ones and keeps at most
// models.MaxTags.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || slices.Contains(out, t) {
			continue
		}
		out = append(out, t)
		if len(out) == models.MaxTags {
			break
		}
	}
	return out
}

// SplitTags parses a comma separated tag list.
func SplitTags(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	return NormalizeTags(strings.Split(csv, ","))
}
