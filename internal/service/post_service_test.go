package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"prok/internal/cache"
	"prok/internal/models"
	"prok/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPostService(repo *postRepoStub, media *mediaStub) *PostService {
	return NewPostService(repo, media, cache.NewLookupCache(time.Hour, nil), nil)
}

func TestPostService_CreateValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      CreatePostInput
		wantErr error
		wantMsg string
	}{
		{name: "empty content and no media", in: CreatePostInput{AuthorID: 1, Content: "   "}, wantErr: ErrPostContentRequired},
		{name: "media does not replace content", in: CreatePostInput{AuthorID: 1, Media: &Upload{Filename: "a.png"}}, wantErr: ErrPostContentRequired},
		{name: "bad visibility", in: CreatePostInput{AuthorID: 1, Content: "hi", Visibility: "friends"}, wantErr: ErrInvalidVisibility},
		{name: "bad category", in: CreatePostInput{AuthorID: 1, Content: "hi", Category: "gossip"}, wantMsg: "Invalid category"},
		{name: "unsupported media", in: CreatePostInput{AuthorID: 1, Content: "hi", Media: &Upload{Filename: "a.exe"}}, wantMsg: "Unsupported media type"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			repo := noopPostRepo()
			repo.createFn = func(_ context.Context, _ *models.Post) error {
				t.Fatal("create must not be called")
				return nil
			}
			_, err := newPostService(repo, &mediaStub{}).Create(context.Background(), tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.wantMsg != "" {
				appErr := assertAppError(t, err, models.CodeValidation)
				assert.Equal(t, tt.wantMsg, appErr.Message)
			}
		})
	}
}

func TestPostService_CreateNormalises(t *testing.T) {
	t.Parallel()

	repo := noopPostRepo()
	var created *models.Post
	repo.createFn = func(_ context.Context, p *models.Post) error {
		p.ID = 7
		created = p
		return nil
	}
	repo.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
		require.Equal(t, uint(7), id)
		return created, nil
	}
	media := &mediaStub{}
	svc := newPostService(repo, media)

	tags := []string{" go ", "", "go", "sql"}
	for i := 0; i < 12; i++ {
		tags = append(tags, fmt.Sprintf("t%d", i))
	}

	post, err := svc.Create(context.Background(), CreatePostInput{
		AuthorID:    3,
		Content:     "  Hello  ",
		RichContent: "<p>Hello</p>",
		Tags:        tags,
		Category:    " Technology ",
		Media:       &Upload{Filename: "clip.mov"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello", post.Content)
	assert.Equal(t, models.VisibilityPublic, post.Visibility)
	assert.Equal(t, "technology", post.Category)
	assert.Equal(t, models.MediaVideo, post.MediaType)
	assert.Equal(t, "/uploads/posts/clip.mov", post.MediaURL)

	got := post.TagList()
	assert.Len(t, got, models.MaxTags)
	assert.Equal(t, []string{"go", "sql", "t0"}, got[:3])
}

func TestPostService_CreateFailureDiscardsMedia(t *testing.T) {
	t.Parallel()

	repo := noopPostRepo()
	repo.createFn = func(_ context.Context, _ *models.Post) error {
		return models.NewInternalError(errors.New("db down"))
	}
	media := &mediaStub{}

	_, err := newPostService(repo, media).Create(context.Background(), CreatePostInput{
		AuthorID: 1, Content: "x", Media: &Upload{Filename: "a.png"},
	})
	assertAppError(t, err, models.CodeInternal)
	assert.Equal(t, media.saved, media.deleted)
}

func TestPostService_UpdateChecksOwnershipFirst(t *testing.T) {
	t.Parallel()

	repo := noopPostRepo()
	repo.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
		if id == 404 {
			return nil, models.NewNotFoundError("Post not found")
		}
		return &models.Post{ID: id, UserID: 1, Content: "mine"}, nil
	}
	repo.updateFn = func(_ context.Context, _ *models.Post) error {
		t.Fatal("update must not be called")
		return nil
	}
	svc := newPostService(repo, &mediaStub{})
	ctx := context.Background()

	_, err := svc.Update(ctx, UpdatePostInput{PostID: 404, ActorID: 1})
	assertAppError(t, err, models.CodeNotFound)

	_, err = svc.Update(ctx, UpdatePostInput{PostID: 5, ActorID: 2, Visibility: models.Some("nope")})
	assert.ErrorIs(t, err, ErrNotPostOwner)

	_, err = svc.Update(ctx, UpdatePostInput{PostID: 5, ActorID: 1, Content: models.Some(" ")})
	assert.ErrorIs(t, err, ErrPostContentRequired)

	_, err = svc.Update(ctx, UpdatePostInput{PostID: 5, ActorID: 1, Visibility: models.Some("nope")})
	assert.ErrorIs(t, err, ErrInvalidVisibility)
}

func TestPostService_UpdateMedia(t *testing.T) {
	t.Parallel()

	stored := &models.Post{ID: 5, UserID: 1, Content: "x", MediaURL: "/uploads/posts/old.png", MediaType: models.MediaImage}
	repo := noopPostRepo()
	repo.getByIDFn = func(_ context.Context, _ uint) (*models.Post, error) {
		cp := *stored
		return &cp, nil
	}
	media := &mediaStub{}
	svc := newPostService(repo, media)
	ctx := context.Background()

	post, err := svc.Update(ctx, UpdatePostInput{PostID: 5, ActorID: 1, Media: &Upload{Filename: "new.mp4"}})
	require.NoError(t, err)
	assert.Equal(t, "/uploads/posts/new.mp4", post.MediaURL)
	assert.Equal(t, models.MediaVideo, post.MediaType)
	assert.Equal(t, []string{"/uploads/posts/old.png"}, media.deleted)

	post, err = svc.Update(ctx, UpdatePostInput{PostID: 5, ActorID: 1, RemoveMedia: true, Tags: models.Some([]string{"a", "a", "b"})})
	require.NoError(t, err)
	assert.Empty(t, post.MediaURL)
	assert.Equal(t, models.MediaNone, post.MediaType)
	assert.Equal(t, []string{"a", "b"}, post.TagList())
}

func TestPostService_SoftDelete(t *testing.T) {
	t.Parallel()

	repo := noopPostRepo()
	repo.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
		return &models.Post{ID: id, UserID: 1, Content: "x"}, nil
	}
	deleted := uint(0)
	repo.softDeleteFn = func(_ context.Context, id uint) error {
		deleted = id
		return nil
	}
	svc := newPostService(repo, &mediaStub{})

	assert.ErrorIs(t, svc.SoftDelete(context.Background(), 3, 2), ErrNotPostOwner)
	assert.Zero(t, deleted)
	require.NoError(t, svc.SoftDelete(context.Background(), 3, 1))
	assert.Equal(t, uint(3), deleted)
}

func TestPostService_ListVisibility(t *testing.T) {
	t.Parallel()

	open := []string{models.VisibilityPublic, models.VisibilityConnections}
	tests := []struct {
		name      string
		filter    ListFilter
		want      []string
		wantQuery bool
	}{
		{name: "feed", filter: ListFilter{ViewerID: 1}, want: open, wantQuery: true},
		{name: "feed asking for private", filter: ListFilter{ViewerID: 1, Visibility: "private"}},
		{name: "own posts", filter: ListFilter{ViewerID: 1, AuthorID: 1}, want: []string{"public", "connections", "private"}, wantQuery: true},
		{name: "own private posts", filter: ListFilter{ViewerID: 1, AuthorID: 1, Visibility: "private"}, want: []string{"private"}, wantQuery: true},
		{name: "someone else's posts", filter: ListFilter{ViewerID: 1, AuthorID: 2}, want: open, wantQuery: true},
		{name: "someone else's private posts", filter: ListFilter{ViewerID: 1, AuthorID: 2, Visibility: "private"}},
		{name: "explicit public", filter: ListFilter{ViewerID: 1, Visibility: "public"}, want: []string{"public"}, wantQuery: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			repo := noopPostRepo()
			called := false
			repo.listFn = func(_ context.Context, q repository.PostQuery) ([]*models.Post, int64, error) {
				called = true
				assert.Equal(t, tt.want, q.Visibilities)
				return []*models.Post{}, 0, nil
			}
			page, err := newPostService(repo, &mediaStub{}).List(context.Background(), tt.filter, ParseSort("", ""), 1, 20)
			require.NoError(t, err)
			assert.Equal(t, tt.wantQuery, called)
			assert.Empty(t, page.Posts)
		})
	}
}

func TestPostService_ListPaging(t *testing.T) {
	t.Parallel()

	repo := noopPostRepo()
	var got repository.PostQuery
	repo.listFn = func(_ context.Context, q repository.PostQuery) ([]*models.Post, int64, error) {
		got = q
		return []*models.Post{{ID: 1}}, 101, nil
	}
	svc := newPostService(repo, &mediaStub{})

	page, err := svc.List(context.Background(), ListFilter{Category: "Career", Tags: []string{" go "}}, ParseSort("likeCount", "asc"), 3, 500)
	require.NoError(t, err)
	assert.Equal(t, MaxPerPage, got.Limit)
	assert.Equal(t, 100, got.Offset)
	assert.Equal(t, "career", got.Category)
	assert.Equal(t, []string{"go"}, got.Tags)
	assert.Equal(t, repository.SortLikesCount, got.SortField)
	assert.False(t, got.SortDesc)
	assert.Equal(t, models.Pagination{Page: 3, PerPage: 50, TotalCount: 101, TotalPages: 3, HasMore: false}, page.Pagination)

	page, err = svc.List(context.Background(), ListFilter{}, ParseSort("", ""), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultPerPage, got.Limit)
	assert.Equal(t, 0, got.Offset)
	assert.True(t, page.Pagination.HasMore)

	_, err = svc.List(context.Background(), ListFilter{Category: "gossip"}, ParseSort("", ""), 1, 20)
	assertAppError(t, err, models.CodeValidation)
}

func TestParseSort(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Sort{Field: "created_at", Desc: true}, ParseSort("", ""))
	assert.Equal(t, Sort{Field: "created_at", Desc: true}, ParseSort("password_hash", "asc"))
	assert.Equal(t, Sort{Field: "views_count", Desc: false}, ParseSort("viewCount", "ASC"))
	assert.Equal(t, Sort{Field: "comments_count", Desc: true}, ParseSort("comments_count", "sideways"))
}

func TestPostService_LookupCacheCoherence(t *testing.T) {
	t.Parallel()

	repo := noopPostRepo()
	loads := 0
	repo.categoryCountsFn = func(_ context.Context) ([]models.NameCount, error) {
		loads++
		return []models.NameCount{{Name: "general", Count: int64(loads)}}, nil
	}
	repo.tagCountsFn = func(_ context.Context, limit int) ([]models.NameCount, error) {
		assert.Equal(t, PopularTagLimit, limit)
		return []models.NameCount{{Name: "go", Count: int64(loads)}}, nil
	}
	repo.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
		return &models.Post{ID: id, UserID: 1, Content: "x"}, nil
	}
	svc := newPostService(repo, &mediaStub{})
	ctx := context.Background()

	cats, err := svc.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cats[0].Count)
	_, _ = svc.Categories(ctx)
	assert.Equal(t, 1, loads, "second read is served from cache")

	writes := []func() error{
		func() error { _, err := svc.Create(ctx, CreatePostInput{AuthorID: 1, Content: "new"}); return err },
		func() error { _, err := svc.Update(ctx, UpdatePostInput{PostID: 1, ActorID: 1, Content: models.Some("y")}); return err },
		func() error { return svc.SoftDelete(ctx, 1, 1) },
		func() error { _, err := svc.Like(ctx, 1); return err },
		func() error { _, err := svc.Unlike(ctx, 1); return err },
	}
	for i, write := range writes {
		require.NoError(t, write())
		cats, err = svc.Categories(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(i+2), cats[0].Count, "write %d invalidates the cache", i)
	}

	tags, err := svc.PopularTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, "go", tags[0].Name)
}

func TestPostService_LikeUnlike(t *testing.T) {
	t.Parallel()

	repo := noopPostRepo()
	var deltas []int
	repo.adjustLikesFn = func(_ context.Context, _ uint, delta int) (int, error) {
		deltas = append(deltas, delta)
		return 1, nil
	}
	svc := newPostService(repo, &mediaStub{})

	n, err := svc.Like(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = svc.Unlike(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []int{1, -1}, deltas)
}

func TestSplitTags(t *testing.T) {
	t.Parallel()

	assert.Nil(t, SplitTags("  "))
	assert.Equal(t, []string{"go", "web dev"}, SplitTags("go, ,web dev,go"))
}
