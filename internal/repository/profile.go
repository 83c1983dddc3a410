package repository

import (
	"context"
	"errors"

	"prok/internal/models"
	"prok/internal/observability"

	"gorm.io/gorm"
)

// ProfileRepository defines persistence operations for profiles.
type ProfileRepository interface {
	GetByUserID(ctx context.Context, userID uint) (*models.Profile, error)
	GetOrCreate(ctx context.Context, userID uint) (*models.Profile, error)
	Save(ctx context.Context, profile *models.Profile) error
}

type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository returns a new ProfileRepository implementation.
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

// GetByUserID returns (nil, nil) when the user has no profile yet.
func (r *profileRepository) GetByUserID(ctx context.Context, userID uint) (*models.Profile, error) {
	defer observability.TrackQuery("get_by_user_id", "profiles")()

	var p models.Profile
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &p, nil
}

// GetOrCreate returns the user's profile, inserting the default one first if
// needed. A concurrent insert that wins the unique index is re-read.
func (r *profileRepository) GetOrCreate(ctx context.Context, userID uint) (*models.Profile, error) {
	p, err := r.GetByUserID(ctx, userID)
	if err != nil || p != nil {
		return p, err
	}

	defer observability.TrackQuery("create", "profiles")()

	p = models.NewProfile(userID)
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		if _, dup := duplicateFor(err, "user_id"); dup {
			return r.GetByUserID(ctx, userID)
		}
		return nil, models.NewInternalError(err)
	}
	return p, nil
}

// Save writes every column of profile, including false booleans.
func (r *profileRepository) Save(ctx context.Context, profile *models.Profile) error {
	defer observability.TrackQuery("save", "profiles")()

	if err := r.db.WithContext(ctx).Save(profile).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
