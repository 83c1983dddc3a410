package service

import (
	"context"
	"testing"

	"prok/internal/models"
	"prok/internal/repository"

	"github.com/stretchr/testify/require"
)

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	getByIDFn         func(context.Context, uint) (*models.User, error)
	getByEmailFn      func(context.Context, string) (*models.User, error)
	getByUsernameFn   func(context.Context, string) (*models.User, error)
	createFn          func(context.Context, *models.User) error
	updateFn          func(context.Context, *models.User) error
	setActiveFn       func(context.Context, uint, bool) error
	setProfileImageFn func(context.Context, uint, string) error
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getByEmailFn(ctx, email)
}
func (s *userRepoStub) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getByUsernameFn(ctx, username)
}
func (s *userRepoStub) Create(ctx context.Context, u *models.User) error {
	return s.createFn(ctx, u)
}
func (s *userRepoStub) Update(ctx context.Context, u *models.User) error {
	return s.updateFn(ctx, u)
}
func (s *userRepoStub) SetActive(ctx context.Context, id uint, active bool) error {
	return s.setActiveFn(ctx, id, active)
}
func (s *userRepoStub) SetProfileImage(ctx context.Context, id uint, url string) error {
	return s.setProfileImageFn(ctx, id, url)
}

func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		getByIDFn: func(_ context.Context, id uint) (*models.User, error) {
			return &models.User{ID: id, IsActive: true}, nil
		},
		getByEmailFn:      func(_ context.Context, _ string) (*models.User, error) { return nil, nil },
		getByUsernameFn:   func(_ context.Context, _ string) (*models.User, error) { return nil, nil },
		createFn:          func(_ context.Context, u *models.User) error { u.ID = 1; return nil },
		updateFn:          func(_ context.Context, _ *models.User) error { return nil },
		setActiveFn:       func(_ context.Context, _ uint, _ bool) error { return nil },
		setProfileImageFn: func(_ context.Context, _ uint, _ string) error { return nil },
	}
}

// profileRepoStub is a stub for repository.ProfileRepository.
type profileRepoStub struct {
	getByUserIDFn func(context.Context, uint) (*models.Profile, error)
	getOrCreateFn func(context.Context, uint) (*models.Profile, error)
	saveFn        func(context.Context, *models.Profile) error
}

func (s *profileRepoStub) GetByUserID(ctx context.Context, userID uint) (*models.Profile, error) {
	return s.getByUserIDFn(ctx, userID)
}
func (s *profileRepoStub) GetOrCreate(ctx context.Context, userID uint) (*models.Profile, error) {
	return s.getOrCreateFn(ctx, userID)
}
func (s *profileRepoStub) Save(ctx context.Context, p *models.Profile) error {
	return s.saveFn(ctx, p)
}

func noopProfileRepo() *profileRepoStub {
	return &profileRepoStub{
		getByUserIDFn: func(_ context.Context, _ uint) (*models.Profile, error) { return nil, nil },
		getOrCreateFn: func(_ context.Context, userID uint) (*models.Profile, error) {
			p := models.NewProfile(userID)
			p.ID = 100 + userID
			return p, nil
		},
		saveFn: func(_ context.Context, _ *models.Profile) error { return nil },
	}
}

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn         func(context.Context, *models.Post) error
	getByIDFn        func(context.Context, uint) (*models.Post, error)
	updateFn         func(context.Context, *models.Post) error
	softDeleteFn     func(context.Context, uint) error
	listFn           func(context.Context, repository.PostQuery) ([]*models.Post, int64, error)
	adjustLikesFn    func(context.Context, uint, int) (int, error)
	incrementViewsFn func(context.Context, uint) error
	categoryCountsFn func(context.Context) ([]models.NameCount, error)
	tagCountsFn      func(context.Context, int) ([]models.NameCount, error)
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id)
}
func (s *postRepoStub) Update(ctx context.Context, post *models.Post) error {
	return s.updateFn(ctx, post)
}
func (s *postRepoStub) SoftDelete(ctx context.Context, id uint) error {
	return s.softDeleteFn(ctx, id)
}
func (s *postRepoStub) List(ctx context.Context, q repository.PostQuery) ([]*models.Post, int64, error) {
	return s.listFn(ctx, q)
}
func (s *postRepoStub) AdjustLikes(ctx context.Context, id uint, delta int) (int, error) {
	return s.adjustLikesFn(ctx, id, delta)
}
func (s *postRepoStub) IncrementViews(ctx context.Context, id uint) error {
	return s.incrementViewsFn(ctx, id)
}
func (s *postRepoStub) CategoryCounts(ctx context.Context) ([]models.NameCount, error) {
	return s.categoryCountsFn(ctx)
}
func (s *postRepoStub) TagCounts(ctx context.Context, limit int) ([]models.NameCount, error) {
	return s.tagCountsFn(ctx, limit)
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn:      func(_ context.Context, p *models.Post) error { p.ID = 1; return nil },
		getByIDFn:     func(_ context.Context, id uint) (*models.Post, error) { return &models.Post{ID: id, Content: "x"}, nil },
		updateFn:      func(_ context.Context, _ *models.Post) error { return nil },
		softDeleteFn:  func(_ context.Context, _ uint) error { return nil },
		listFn:        func(_ context.Context, _ repository.PostQuery) ([]*models.Post, int64, error) { return nil, 0, nil },
		adjustLikesFn: func(_ context.Context, _ uint, delta int) (int, error) { return max(delta, 0), nil },
		incrementViewsFn: func(_ context.Context, _ uint) error {
			return nil
		},
		categoryCountsFn: func(_ context.Context) ([]models.NameCount, error) { return nil, nil },
		tagCountsFn:      func(_ context.Context, _ int) ([]models.NameCount, error) { return nil, nil },
	}
}

// uowStub runs fn directly against fixed repositories.
type uowStub struct {
	repos repository.Repositories
	calls int
}

func (u *uowStub) Do(_ context.Context, fn func(repository.Repositories) error) error {
	u.calls++
	return fn(u.repos)
}

// mediaStub records stored and deleted URLs.
type mediaStub struct {
	saveErr error
	saved   []string
	deleted []string
}

func (m *mediaStub) SavePostMedia(_ context.Context, filename string, _ []byte) (models.MediaRef, error) {
	if m.saveErr != nil {
		return models.MediaRef{}, m.saveErr
	}
	kind := models.ClassifyMedia(filename)
	if kind == models.MediaNone {
		return models.MediaRef{}, models.NewValidationError("Unsupported media type")
	}
	url := "/uploads/posts/" + filename
	m.saved = append(m.saved, url)
	return models.MediaRef{URL: url, Kind: kind}, nil
}

func (m *mediaStub) SaveProfileImage(_ context.Context, filename string, _ []byte) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	url := "/uploads/profile_images/" + filename
	m.saved = append(m.saved, url)
	return url, nil
}

func (m *mediaStub) Delete(url string) error {
	m.deleted = append(m.deleted, url)
	return nil
}

func assertAppError(t *testing.T, err error, code string) *models.AppError {
	t.Helper()
	appErr, ok := models.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	require.Equal(t, code, appErr.Code)
	return appErr
}
