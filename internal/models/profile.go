package models

import (
	"encoding/json"
	"time"
)

// CompanySizes is the closed set of company-size buckets.
var CompanySizes = []string{
	"1-10", "11-50", "51-200", "201-500", "501-1000", "1001-5000", "5001-10000", "10000+",
}

// Profile is the one-to-one professional extension of a User.
type Profile struct {
	ID              uint      `gorm:"primaryKey" json:"profile_id"`
	UserID          uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	Headline        string    `gorm:"size:200" json:"headline"`
	Industry        string    `gorm:"size:100" json:"industry"`
	CurrentPosition string    `gorm:"size:100" json:"current_position"`
	CompanySize     string    `gorm:"size:50" json:"company_size"`
	LinkedInURL     string    `gorm:"column:linkedin_url;size:200" json:"linkedin_url"`
	TwitterURL      string    `gorm:"size:200" json:"twitter_url"`
	GitHubURL       string    `gorm:"column:github_url;size:200" json:"github_url"`
	IsPublic        bool      `gorm:"not null;default:true" json:"is_public"`
	AllowMessages   bool      `gorm:"not null;default:true" json:"allow_messages"`
	ShowEmail       bool      `gorm:"not null;default:false" json:"show_email"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewProfile returns the default profile for a user.
func NewProfile(userID uint) *Profile {
	return &Profile{UserID: userID, IsPublic: true, AllowMessages: true}
}

// EducationEntry is one element of a user's education history.
type EducationEntry map[string]any

// ProfileView is the merged account and profile shape returned by the
// profile endpoints.
type ProfileView struct {
	ID              uint              `json:"id"`
	UserID          uint              `json:"user_id"`
	ProfileID       uint              `json:"profile_id"`
	Username        string            `json:"username"`
	Email           string            `json:"email"`
	IsActive        bool              `json:"is_active"`
	FirstName       string            `json:"first_name"`
	LastName        string            `json:"last_name"`
	Bio             string            `json:"bio"`
	Location        string            `json:"location"`
	Company         string            `json:"company"`
	JobTitle        string            `json:"job_title"`
	Website         string            `json:"website"`
	Phone           string            `json:"phone"`
	ProfileImageURL string            `json:"profile_image_url"`
	Skills          []string          `json:"skills"`
	Education       []EducationEntry  `json:"education"`
	SocialLinks     map[string]string `json:"social_links"`
	ExperienceYears *int              `json:"experience_years"`
	Headline        string            `json:"headline"`
	Industry        string            `json:"industry"`
	CurrentPosition string            `json:"current_position"`
	CompanySize     string            `json:"company_size"`
	LinkedInURL     string            `json:"linkedin_url"`
	TwitterURL      string            `json:"twitter_url"`
	GitHubURL       string            `json:"github_url"`
	IsPublic        bool              `json:"is_public"`
	AllowMessages   bool              `json:"allow_messages"`
	ShowEmail       bool              `json:"show_email"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// PublicProfileView is what anonymous callers see for a public profile.
type PublicProfileView struct {
	ID              uint             `json:"id"`
	Username        string           `json:"username"`
	Email           string           `json:"email,omitempty"`
	FirstName       string           `json:"first_name"`
	LastName        string           `json:"last_name"`
	Bio             string           `json:"bio"`
	Location        string           `json:"location"`
	Company         string           `json:"company"`
	JobTitle        string           `json:"job_title"`
	ProfileImageURL string           `json:"profile_image_url"`
	Headline        string           `json:"headline"`
	Industry        string           `json:"industry"`
	CurrentPosition string           `json:"current_position"`
	LinkedInURL     string           `json:"linkedin_url"`
	TwitterURL      string           `json:"twitter_url"`
	GitHubURL       string           `json:"github_url"`
	Skills          []string         `json:"skills"`
	Education       []EducationEntry `json:"education"`
	CreatedAt       time.Time        `json:"created_at"`
}

// NewProfileView merges u and p, decoding the stored JSON columns.
func NewProfileView(u *User, p *Profile) ProfileView {
	return ProfileView{
		ID:              u.ID,
		UserID:          u.ID,
		ProfileID:       p.ID,
		Username:        u.Username,
		Email:           u.Email,
		IsActive:        u.IsActive,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		Bio:             u.Bio,
		Location:        u.Location,
		Company:         u.Company,
		JobTitle:        u.JobTitle,
		Website:         u.Website,
		Phone:           u.Phone,
		ProfileImageURL: u.ProfileImageURL,
		Skills:          DecodeStringList(u.Skills),
		Education:       DecodeEducation(u.Education),
		SocialLinks:     DecodeSocialLinks(u.SocialLinks),
		ExperienceYears: u.ExperienceYears,
		Headline:        p.Headline,
		Industry:        p.Industry,
		CurrentPosition: p.CurrentPosition,
		CompanySize:     p.CompanySize,
		LinkedInURL:     p.LinkedInURL,
		TwitterURL:      p.TwitterURL,
		GitHubURL:       p.GitHubURL,
		IsPublic:        p.IsPublic,
		AllowMessages:   p.AllowMessages,
		ShowEmail:       p.ShowEmail,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

// NewPublicProfileView builds the anonymous view. Email is included only
// when the owner opted in.
func NewPublicProfileView(u *User, p *Profile) PublicProfileView {
	v := PublicProfileView{
		ID:              u.ID,
		Username:        u.Username,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		Bio:             u.Bio,
		Location:        u.Location,
		Company:         u.Company,
		JobTitle:        u.JobTitle,
		ProfileImageURL: u.ProfileImageURL,
		Headline:        p.Headline,
		Industry:        p.Industry,
		CurrentPosition: p.CurrentPosition,
		LinkedInURL:     p.LinkedInURL,
		TwitterURL:      p.TwitterURL,
		GitHubURL:       p.GitHubURL,
		Skills:          DecodeStringList(u.Skills),
		Education:       DecodeEducation(u.Education),
		CreatedAt:       u.CreatedAt,
	}
	if p.ShowEmail {
		v.Email = u.Email
	}
	return v
}

// DecodeStringList parses a stored JSON list of strings, yielding an empty list for
// blank or malformed data.
func DecodeStringList(raw string) []string {
	out := []string{}
	if raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil || out == nil {
		return []string{}
	}
	return out
}

// DecodeEducation parses a stored education column.
func DecodeEducation(raw string) []EducationEntry {
	out := []EducationEntry{}
	if raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil || out == nil {
		return []EducationEntry{}
	}
	return out
}

// DecodeSocialLinks parses a stored social links column.
func DecodeSocialLinks(raw string) map[string]string {
	out := map[string]string{}
	if raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil || out == nil {
		return map[string]string{}
	}
	return out
}
