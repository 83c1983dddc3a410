// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"prok/internal/middleware"
	"prok/internal/models"
	"prok/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
)

// DemoPassword is the password of every seeded account.
const DemoPassword = "Password123!"

var (
	skillPool = []string{
		"go", "postgres", "kubernetes", "react", "typescript", "python", "product management",
		"ux research", "figma", "sales", "negotiation", "public speaking", "data analysis",
		"machine learning", "accounting", "recruiting", "copywriting", "seo",
	}

	industryPool = []string{
		"Software", "Finance", "Healthcare", "Education", "Retail", "Manufacturing",
		"Consulting", "Media", "Energy", "Logistics",
	}

	tagPool = []string{
		"hiring", "opentowork", "leadership", "remote", "startups", "ai", "career",
		"golang", "design", "marketing", "funding", "mentorship", "productivity",
	}

	visibilityWeights = []string{
		models.VisibilityPublic, models.VisibilityPublic, models.VisibilityPublic,
		models.VisibilityPublic, models.VisibilityConnections, models.VisibilityPrivate,
	}
)

// Factory builds domain entities and persists them through the repositories.
type Factory struct {
	repos  repository.Repositories
	opts   Options
	faker  *gofakeit.Faker
	hash   string
	nextID uint
	seq    int
}

// NewFactory creates a Factory. A nil-DB Repositories value is fine in
// DryRun mode.
func NewFactory(repos repository.Repositories, opts Options) *Factory {
	seed := opts.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Factory{repos: repos, opts: opts, faker: gofakeit.New(seed), nextID: 1000}
}

func (f *Factory) passwordHash() (string, error) {
	if f.hash != "" {
		return f.hash, nil
	}
	cost := bcrypt.DefaultCost
	if f.opts.FastHash {
		cost = bcrypt.MinCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), cost)
	if err != nil {
		return "", err
	}
	f.hash = string(h)
	return f.hash, nil
}

// BuildUser returns an unsaved account with a filled-in professional profile
// section.
func (f *Factory) BuildUser() *models.User {
	first, last := f.faker.FirstName(), f.faker.LastName()
	f.seq++
	username := strings.ToLower(fmt.Sprintf("%s_%s%d", first, last, f.seq))
	username = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return -1
	}, username)
	if len(username) > 80 {
		username = username[:80]
	}

	years := f.faker.Number(0, 30)
	skills := make([]string, 0, 4)
	for len(skills) < 4 {
		s := f.faker.RandomString(skillPool)
		if !contains(skills, s) {
			skills = append(skills, s)
		}
	}

	u := &models.User{
		Username:        username,
		Email:           username + "@example.com",
		IsActive:        true,
		FirstName:       first,
		LastName:        last,
		Bio:             f.faker.Sentence(12),
		Location:        f.faker.City(),
		Company:         f.faker.Company(),
		JobTitle:        f.faker.JobTitle(),
		Website:         "https://" + username + ".example.com",
		Phone:           f.faker.Phone(),
		ExperienceYears: &years,
	}
	if b, err := json.Marshal(skills); err == nil {
		u.Skills = string(b)
	}
	return u
}

// BuildProfile returns an unsaved profile for user.
func (f *Factory) BuildProfile(user *models.User) *models.Profile {
	p := models.NewProfile(user.ID)
	p.Headline = fmt.Sprintf("%s at %s", user.JobTitle, user.Company)
	p.Industry = f.faker.RandomString(industryPool)
	p.CurrentPosition = user.JobTitle
	p.CompanySize = f.faker.RandomString(models.CompanySizes)
	p.LinkedInURL = "https://www.linkedin.com/in/" + user.Username
	if f.faker.Bool() {
		p.GitHubURL = "https://github.com/" + user.Username
	}
	p.ShowEmail = f.faker.Number(1, 4) == 1
	return p
}

// BuildPost returns an unsaved post by author, backdated up to MaxDays.
func (f *Factory) BuildPost(author *models.User) *models.Post {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	created := time.Now().Add(-time.Duration(f.faker.Number(0, maxDays*24*60)) * time.Minute)

	tags := make([]string, 0, 3)
	for n, i := f.faker.Number(0, 3), 0; i < n; i++ {
		t := f.faker.RandomString(tagPool)
		if !contains(tags, t) {
			tags = append(tags, t)
		}
	}

	p := &models.Post{
		UserID:     author.ID,
		Content:    f.faker.Paragraph(1, f.faker.Number(1, 4), 12, " "),
		Visibility: f.faker.RandomString(visibilityWeights),
		Category:   f.faker.RandomString(models.Categories),
		IsActive:   true,
		LikesCount: f.faker.Number(0, 250),
		ViewsCount: f.faker.Number(0, 2000),
		CreatedAt:  created,
		UpdatedAt:  created,
	}
	p.SetTags(tags)
	return p
}

// CreateUser persists a built account and its profile.
func (f *Factory) CreateUser(ctx context.Context, overrides ...func(*models.User)) (*models.User, error) {
	user := f.BuildUser()
	for _, o := range overrides {
		o(user)
	}

	hash, err := f.passwordHash()
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash

	if f.opts.DryRun {
		f.nextID++
		user.ID = f.nextID
		middleware.Logger.Debug("[dry-run] CreateUser", slog.String("username", user.Username))
		return user, nil
	}

	if err := f.repos.Users.Create(ctx, user); err != nil {
		return nil, err
	}
	if err := f.repos.Profiles.Save(ctx, f.BuildProfile(user)); err != nil {
		return nil, err
	}
	return user, nil
}

// CreatePost persists a built post.
func (f *Factory) CreatePost(ctx context.Context, author *models.User, overrides ...func(*models.Post)) (*models.Post, error) {
	post := f.BuildPost(author)
	for _, o := range overrides {
		o(post)
	}

	if f.opts.DryRun {
		f.nextID++
		post.ID = f.nextID
		return post, nil
	}
	if err := f.repos.Posts.Create(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
