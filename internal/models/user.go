// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// User is a registered account. Professional fields live here; preferences
// and platform links live on Profile.
type User struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Username        string    `gorm:"size:80;uniqueIndex;not null" json:"username"`
	Email           string    `gorm:"size:120;uniqueIndex;not null" json:"email"`
	PasswordHash    string    `gorm:"size:255;not null" json:"-"`
	IsActive        bool      `gorm:"not null;default:true" json:"is_active"`
	FirstName       string    `gorm:"size:100" json:"first_name"`
	LastName        string    `gorm:"size:100" json:"last_name"`
	Bio             string    `gorm:"type:text" json:"bio"`
	Location        string    `gorm:"size:100" json:"location"`
	Company         string    `gorm:"size:100" json:"company"`
	JobTitle        string    `gorm:"size:100" json:"job_title"`
	Website         string    `gorm:"size:200" json:"website"`
	Phone           string    `gorm:"size:20" json:"phone"`
	ProfileImageURL string    `gorm:"size:500" json:"profile_image_url"`
	Skills          string    `gorm:"type:text" json:"skills"`
	Education       string    `gorm:"type:text" json:"education"`
	SocialLinks     string    `gorm:"type:text" json:"social_links"`
	ExperienceYears *int      `json:"experience_years"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	Posts           []Post    `gorm:"foreignKey:UserID" json:"-"`
	Profile         *Profile  `gorm:"foreignKey:UserID" json:"-"`
}

// Author is the public summary embedded in every serialized post.
type Author struct {
	ID              uint   `json:"id"`
	Username        string `json:"username"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	ProfileImageURL string `json:"profile_image_url"`
}

// Summary returns the author view of u.
func (u *User) Summary() Author {
	return Author{
		ID:              u.ID,
		Username:        u.Username,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		ProfileImageURL: u.ProfileImageURL,
	}
}
