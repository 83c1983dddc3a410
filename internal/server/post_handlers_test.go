package server

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postPath(id uint, suffix ...string) string {
	return fmt.Sprintf("/api/posts/%d%s", id, strings.Join(suffix, ""))
}

func postIDs(resp response) []uint {
	list, _ := resp.body["posts"].([]any)
	ids := make([]uint, 0, len(list))
	for _, p := range list {
		id, _ := p.(map[string]any)["id"].(float64)
		ids = append(ids, uint(id))
	}
	return ids
}

func TestCreatePostJSON(t *testing.T) {
	env := newTestEnv(t)
	token, uid := env.signup("user_1")

	resp := env.doJSON(http.MethodPost, "/api/posts", map[string]any{
		"content":  "  Hello network  ",
		"tags":     []string{"go", " go ", "", "hiring"},
		"category": "Career",
	}, token)
	require.Equal(t, fiber.StatusCreated, resp.status, resp.body)
	assert.Equal(t, "Post created successfully", resp.str("message"))

	post := resp.obj("post")
	assert.Equal(t, "Hello network", post["content"])
	assert.Equal(t, []any{"go", "hiring"}, post["tags"])
	assert.Equal(t, "career", post["category"])
	assert.Equal(t, "public", post["visibility"])
	assert.Equal(t, float64(0), post["likes_count"])
	assert.Equal(t, float64(uid), post["user_id"])

	author, _ := post["user"].(map[string]any)
	assert.Equal(t, "user_1", author["username"])
	assert.NotContains(t, author, "email")

	csv := env.doJSON(http.MethodPost, "/api/posts", map[string]any{
		"content": "tags as text",
		"tags":    "a, b,,c",
	}, token)
	require.Equal(t, fiber.StatusCreated, csv.status)
	assert.Equal(t, []any{"a", "b", "c"}, csv.obj("post")["tags"])
	assert.Equal(t, "general", csv.obj("post")["category"])
}

func TestCreatePostValidation(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.signup("user_1")

	tests := []struct {
		name string
		body any
		want string
	}{
		{name: "empty content", body: map[string]any{"content": "   "}, want: "Post content is required"},
		{name: "no body", body: "", want: "Post content is required"},
		{name: "bad visibility", body: map[string]any{"content": "x", "visibility": "friends"}, want: "Invalid visibility setting"},
		{name: "bad category", body: map[string]any{"content": "x", "category": "gossip"}, want: "Invalid category"},
		{name: "bad tags", body: map[string]any{"content": "x", "tags": 7}, want: "Tags must be a list or a comma separated string"},
		{name: "bad json", body: "{", want: "Invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.doJSON(http.MethodPost, "/api/posts", tt.body, token)
			assert.Equal(t, fiber.StatusBadRequest, resp.status)
			assert.Equal(t, tt.want, resp.str("error"))
		})
	}

	unauth := env.doJSON(http.MethodPost, "/api/posts", map[string]any{"content": "x"}, "")
	assert.Equal(t, fiber.StatusUnauthorized, unauth.status)
}

func TestCreatePostMultipart(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.signup("user_1")

	resp := env.doForm(http.MethodPost, "/api/posts", map[string]string{
		"content":    "With a picture",
		"tags":       "Design, UX",
		"visibility": "connections",
	}, []formFileField{{field: "media", name: "shot.png", content: pngBytes(t, 4, 4)}}, token)
	require.Equal(t, fiber.StatusCreated, resp.status, resp.body)

	post := resp.obj("post")
	assert.Equal(t, []any{"Design", "UX"}, post["tags"])
	assert.Equal(t, "connections", post["visibility"])
	assert.Equal(t, "image", post["media_type"])

	url, _ := post["media_url"].(string)
	require.True(t, strings.HasPrefix(url, "/uploads/posts/"), url)
	assert.True(t, strings.HasSuffix(url, "_shot.png"), url)
	assert.FileExists(t, filepath.Join(env.cfg.UploadDir, filepath.FromSlash(strings.TrimPrefix(url, "/uploads/"))))

	bad := env.doForm(http.MethodPost, "/api/posts", map[string]string{"content": "x"},
		[]formFileField{{field: "media", name: "run.exe", content: []byte("MZ")}}, token)
	assert.Equal(t, fiber.StatusBadRequest, bad.status)
	assert.Equal(t, "Unsupported media type", bad.str("error"))

	fake := env.doForm(http.MethodPost, "/api/posts", map[string]string{"content": "x"},
		[]formFileField{{field: "media", name: "fake.jpg", content: []byte("plain text")}}, token)
	assert.Equal(t, fiber.StatusBadRequest, fake.status)
	assert.Equal(t, "Invalid image file. Please upload a valid image.", fake.str("error"))

	hidden := env.doForm(http.MethodPost, "/api/posts", map[string]string{"content": "x", "visibility": "friends"},
		[]formFileField{{field: "media", name: "other.png", content: pngBytes(t, 4, 4)}}, token)
	assert.Equal(t, fiber.StatusBadRequest, hidden.status)
	assert.Equal(t, "Invalid visibility setting", hidden.str("error"))
	entries, err := os.ReadDir(filepath.Join(env.cfg.UploadDir, "posts"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	long := env.doForm(http.MethodPost, "/api/posts", map[string]string{"content": "long name"},
		[]formFileField{{field: "media", name: strings.Repeat("n", 240) + ".png", content: pngBytes(t, 4, 4)}}, token)
	require.Equal(t, fiber.StatusCreated, long.status, long.body)
	longURL, _ := long.obj("post")["media_url"].(string)
	assert.LessOrEqual(t, len(longURL), 500)
	assert.True(t, strings.HasSuffix(longURL, ".png"), longURL)
}

func TestGetPostCountsViews(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.signup("user_1")
	id := env.createPost(token, map[string]any{"content": "viewed"})

	first := env.doJSON(http.MethodGet, postPath(id), nil, token)
	require.Equal(t, fiber.StatusOK, first.status)
	assert.Equal(t, float64(1), first.obj("post")["views_count"])

	second := env.doJSON(http.MethodGet, postPath(id), nil, token)
	assert.Equal(t, float64(2), second.obj("post")["views_count"])

	missing := env.doJSON(http.MethodGet, postPath(9999), nil, token)
	assert.Equal(t, fiber.StatusNotFound, missing.status)
	assert.Equal(t, "Post not found", missing.str("error"))

	bad := env.doJSON(http.MethodGet, "/api/posts/zero", nil, token)
	assert.Equal(t, fiber.StatusBadRequest, bad.status)
	assert.Equal(t, "Invalid ID", bad.str("error"))
}

func TestUpdatePost(t *testing.T) {
	env := newTestEnv(t)
	owner, _ := env.signup("owner")
	other, _ := env.signup("other")
	id := env.createPost(owner, map[string]any{"content": "original", "tags": []string{"a"}})

	forbidden := env.doJSON(http.MethodPut, postPath(id), map[string]any{"content": "hijack"}, other)
	assert.Equal(t, fiber.StatusForbidden, forbidden.status)
	assert.Equal(t, "Unauthorized", forbidden.str("error"))

	missing := env.doJSON(http.MethodPut, postPath(9999), map[string]any{"content": "x"}, owner)
	assert.Equal(t, fiber.StatusNotFound, missing.status)

	blank := env.doJSON(http.MethodPut, postPath(id), map[string]any{"content": ""}, owner)
	assert.Equal(t, fiber.StatusBadRequest, blank.status)
	assert.Equal(t, "Post content is required", blank.str("error"))

	ok := env.doJSON(http.MethodPut, postPath(id), map[string]any{
		"visibility": "private",
		"tags":       "x, y",
	}, owner)
	require.Equal(t, fiber.StatusOK, ok.status, ok.body)
	assert.Equal(t, "Post updated successfully", ok.str("message"))
	post := ok.obj("post")
	assert.Equal(t, "original", post["content"])
	assert.Equal(t, "private", post["visibility"])
	assert.Equal(t, []any{"x", "y"}, post["tags"])
}

func TestUpdatePostMedia(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.signup("user_1")

	created := env.doForm(http.MethodPost, "/api/posts", map[string]string{"content": "clip"},
		[]formFileField{{field: "media", name: "a.mp4", content: []byte("not really a video")}}, token)
	require.Equal(t, fiber.StatusCreated, created.status, created.body)
	id := uint(created.obj("post")["id"].(float64))
	oldURL := created.obj("post")["media_url"].(string)
	oldPath := filepath.Join(env.cfg.UploadDir, filepath.FromSlash(strings.TrimPrefix(oldURL, "/uploads/")))
	require.FileExists(t, oldPath)

	replaced := env.doForm(http.MethodPut, postPath(id), nil,
		[]formFileField{{field: "media", name: "b.png", content: pngBytes(t, 2, 2)}}, token)
	require.Equal(t, fiber.StatusOK, replaced.status, replaced.body)
	assert.Equal(t, "image", replaced.obj("post")["media_type"])
	assert.NoFileExists(t, oldPath)

	cleared := env.doForm(http.MethodPut, postPath(id), map[string]string{"remove_media": "true"}, nil, token)
	require.Equal(t, fiber.StatusOK, cleared.status)
	assert.Equal(t, "", cleared.obj("post")["media_url"])
	assert.Equal(t, "", cleared.obj("post")["media_type"])
}

func TestDeletePost(t *testing.T) {
	env := newTestEnv(t)
	owner, _ := env.signup("owner")
	other, _ := env.signup("other")
	id := env.createPost(owner, map[string]any{"content": "short lived"})

	forbidden := env.doJSON(http.MethodDelete, postPath(id), nil, other)
	assert.Equal(t, fiber.StatusForbidden, forbidden.status)

	resp := env.doJSON(http.MethodDelete, postPath(id), nil, owner)
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Equal(t, "Post deleted successfully", resp.str("message"))

	assert.Equal(t, fiber.StatusNotFound, env.doJSON(http.MethodGet, postPath(id), nil, owner).status)
	assert.Equal(t, fiber.StatusNotFound, env.doJSON(http.MethodDelete, postPath(id), nil, owner).status)
	assert.Empty(t, postIDs(env.doJSON(http.MethodGet, "/api/posts", nil, owner)))
}

func TestListPosts(t *testing.T) {
	env := newTestEnv(t)
	alice, aliceID := env.signup("alice")
	bob, _ := env.signup("bob")

	for i := 0; i < 5; i++ {
		env.createPost(alice, map[string]any{
			"content":  fmt.Sprintf("alice post %d", i),
			"category": "technology",
			"tags":     []string{"go"},
		})
	}
	secret := env.createPost(alice, map[string]any{"content": "alice secret", "visibility": "private"})
	bobPost := env.createPost(bob, map[string]any{"content": "Bob says HELLO", "tags": []string{"intro"}})

	feed := env.doJSON(http.MethodGet, "/api/posts?per_page=50", nil, bob)
	require.Equal(t, fiber.StatusOK, feed.status)
	assert.Len(t, postIDs(feed), 6)
	assert.NotContains(t, postIDs(feed), secret)

	own := env.doJSON(http.MethodGet, fmt.Sprintf("/api/posts?user_id=%d", aliceID), nil, alice)
	assert.Contains(t, postIDs(own), secret)
	assert.Len(t, postIDs(own), 6)

	peek := env.doJSON(http.MethodGet, fmt.Sprintf("/api/posts?user_id=%d&visibility=private", aliceID), nil, bob)
	require.Equal(t, fiber.StatusOK, peek.status)
	assert.Empty(t, postIDs(peek))

	page := env.doJSON(http.MethodGet, "/api/posts?category=technology&per_page=2&page=3", nil, bob)
	require.Equal(t, fiber.StatusOK, page.status)
	assert.Len(t, postIDs(page), 1)
	pg := page.obj("pagination")
	assert.Equal(t, float64(3), pg["page"])
	assert.Equal(t, float64(2), pg["per_page"])
	assert.Equal(t, float64(5), pg["total_count"])
	assert.Equal(t, float64(3), pg["total_pages"])
	assert.Equal(t, false, pg["has_more"])

	search := env.doJSON(http.MethodGet, "/api/posts?search=hello", nil, alice)
	assert.Equal(t, []uint{bobPost}, postIDs(search))

	tagged := env.doJSON(http.MethodGet, "/api/posts?tags=intro,missing", nil, alice)
	assert.Equal(t, []uint{bobPost}, postIDs(tagged))

	badCategory := env.doJSON(http.MethodGet, "/api/posts?category=gossip", nil, alice)
	assert.Equal(t, fiber.StatusBadRequest, badCategory.status)
	assert.Equal(t, "Invalid category", badCategory.str("error"))

	badVisibility := env.doJSON(http.MethodGet, "/api/posts?visibility=friends", nil, alice)
	assert.Equal(t, fiber.StatusBadRequest, badVisibility.status)

	clamped := env.doJSON(http.MethodGet, "/api/posts?per_page=500&page=0", nil, alice)
	assert.Equal(t, float64(50), clamped.obj("pagination")["per_page"])
	assert.Equal(t, float64(1), clamped.obj("pagination")["page"])
}

func TestListPostsSortByLikes(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.signup("user_1")
	quiet := env.createPost(token, map[string]any{"content": "quiet"})
	loud := env.createPost(token, map[string]any{"content": "loud"})

	for i := 0; i < 3; i++ {
		require.Equal(t, fiber.StatusOK, env.doJSON(http.MethodPost, postPath(loud, "/like"), nil, token).status)
	}

	desc := env.doJSON(http.MethodGet, "/api/posts?sort_by=likes_count", nil, token)
	assert.Equal(t, []uint{loud, quiet}, postIDs(desc))

	asc := env.doJSON(http.MethodGet, "/api/posts?sort_by=likes_count&sort_order=asc", nil, token)
	assert.Equal(t, []uint{quiet, loud}, postIDs(asc))
}

func TestLikeUnlike(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.signup("user_1")
	id := env.createPost(token, map[string]any{"content": "likeable"})

	like := env.doJSON(http.MethodPost, postPath(id, "/like"), nil, token)
	require.Equal(t, fiber.StatusOK, like.status)
	assert.Equal(t, "Post liked successfully", like.str("message"))
	assert.Equal(t, float64(1), like.body["likes_count"])

	// The counter is not tracked per account, so a second like counts.
	like = env.doJSON(http.MethodPost, postPath(id, "/like"), nil, token)
	assert.Equal(t, float64(2), like.body["likes_count"])

	for _, want := range []float64{1, 0, 0} {
		unlike := env.doJSON(http.MethodDelete, postPath(id, "/like"), nil, token)
		require.Equal(t, fiber.StatusOK, unlike.status)
		assert.Equal(t, "Post unliked successfully", unlike.str("message"))
		assert.Equal(t, want, unlike.body["likes_count"])
	}

	missing := env.doJSON(http.MethodPost, postPath(9999, "/like"), nil, token)
	assert.Equal(t, fiber.StatusNotFound, missing.status)
}

func TestCategoriesAndTags(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.signup("user_1")

	empty := env.doJSON(http.MethodGet, "/api/posts/categories", nil, token)
	require.Equal(t, fiber.StatusOK, empty.status)
	assert.Equal(t, []any{}, empty.body["categories"])

	first := env.createPost(token, map[string]any{"content": "a", "category": "design", "tags": []string{"ux", "figma"}})
	env.createPost(token, map[string]any{"content": "b", "category": "design", "tags": []string{"ux"}})
	env.createPost(token, map[string]any{"content": "c", "category": "finance"})

	cats := env.doJSON(http.MethodGet, "/api/posts/categories", nil, token)
	assert.Equal(t, []any{
		map[string]any{"name": "design", "count": float64(2)},
		map[string]any{"name": "finance", "count": float64(1)},
	}, cats.body["categories"])

	tags := env.doJSON(http.MethodGet, "/api/posts/popular-tags", nil, token)
	assert.Equal(t, []any{
		map[string]any{"name": "ux", "count": float64(2)},
		map[string]any{"name": "figma", "count": float64(1)},
	}, tags.body["tags"])

	require.Equal(t, fiber.StatusOK, env.doJSON(http.MethodDelete, postPath(first), nil, token).status)

	cats = env.doJSON(http.MethodGet, "/api/posts/categories", nil, token)
	assert.Equal(t, []any{
		map[string]any{"name": "design", "count": float64(1)},
		map[string]any{"name": "finance", "count": float64(1)},
	}, cats.body["categories"])

	tags = env.doJSON(http.MethodGet, "/api/posts/popular-tags", nil, token)
	assert.Equal(t, []any{
		map[string]any{"name": "ux", "count": float64(1)},
	}, tags.body["tags"])
}
