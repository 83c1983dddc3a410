package service

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"reflect"
	"strconv"
	"strings"

	"prok/internal/middleware"
	"prok/internal/models"
	"prok/internal/observability"
	"prok/internal/repository"
	"prok/internal/validation"
)

// Field length caps applied when sanitising profile text.
const (
	maxNameLen     = 50
	maxBioLen      = 1000
	maxShortText   = 100
	maxHeadlineLen = 200
	maxExperience  = 50
)

// ErrProfileNotPublic hides profiles that are missing or not public.
var ErrProfileNotPublic = models.NewNotFoundError("Profile not found or not public")

// ProfileImageStore is the media dependency of ProfileService.
type ProfileImageStore interface {
	SaveProfileImage(ctx context.Context, filename string, content []byte) (string, error)
	Delete(url string) error
}

// ProfileUpdate is a partial update: only fields that are Set are applied.
// Structured fields keep their raw JSON so the element type can be checked.
type ProfileUpdate struct {
	FirstName       models.Optional[string]          `json:"first_name"`
	LastName        models.Optional[string]          `json:"last_name"`
	Bio             models.Optional[string]          `json:"bio"`
	Location        models.Optional[string]          `json:"location"`
	Company         models.Optional[string]          `json:"company"`
	JobTitle        models.Optional[string]          `json:"job_title"`
	Website         models.Optional[string]          `json:"website"`
	Phone           models.Optional[string]          `json:"phone"`
	ExperienceYears models.Optional[json.RawMessage] `json:"experience_years"`
	Skills          models.Optional[json.RawMessage] `json:"skills"`
	Education       models.Optional[json.RawMessage] `json:"education"`
	SocialLinks     models.Optional[json.RawMessage] `json:"social_links"`
	Headline        models.Optional[string]          `json:"headline"`
	Industry        models.Optional[string]          `json:"industry"`
	CurrentPosition models.Optional[string]          `json:"current_position"`
	CompanySize     models.Optional[string]          `json:"company_size"`
	LinkedInURL     models.Optional[string]          `json:"linkedin_url"`
	TwitterURL      models.Optional[string]          `json:"twitter_url"`
	GitHubURL       models.Optional[string]          `json:"github_url"`
	IsPublic        models.Optional[bool]            `json:"is_public"`
	AllowMessages   models.Optional[bool]            `json:"allow_messages"`
	ShowEmail       models.Optional[bool]            `json:"show_email"`

	decodeErrs []string
}

// DecodeProfileUpdate decodes each supplied field on its own, so a value of
// the wrong JSON type is reported with the other field errors by Update.
// Unknown keys are ignored.
func DecodeProfileUpdate(fields map[string]json.RawMessage) ProfileUpdate {
	var in ProfileUpdate
	v := reflect.ValueOf(&in).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}
		raw, ok := fields[name]
		if !ok {
			continue
		}
		field := v.Field(i)
		if err := json.Unmarshal(raw, field.Addr().Interface()); err != nil {
			field.Set(reflect.Zero(field.Type()))
			in.decodeErrs = append(in.decodeErrs, "Invalid value for "+name)
		}
	}
	return in
}

// ProfileService manages the professional profile attached to each account.
type ProfileService struct {
	uow       repository.UnitOfWork
	users     repository.UserRepository
	profiles  repository.ProfileRepository
	images    ProfileImageStore
	validator validation.Validator
}

// NewProfileService returns a ProfileService. A nil validator uses
// validation.Default.
func NewProfileService(
	uow repository.UnitOfWork,
	users repository.UserRepository,
	profiles repository.ProfileRepository,
	images ProfileImageStore,
	v validation.Validator,
) *ProfileService {
	if v == nil {
		v = validation.Default
	}
	return &ProfileService{uow: uow, users: users, profiles: profiles, images: images, validator: v}
}

// Get returns the merged profile, creating the default profile on first use.
func (s *ProfileService) Get(ctx context.Context, userID uint) (*models.ProfileView, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile, err := s.profiles.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	view := models.NewProfileView(user, profile)
	return &view, nil
}

// Update validates every supplied field and writes account and profile
// changes together. Any validation failure leaves both untouched.
func (s *ProfileService) Update(ctx context.Context, userID uint, in ProfileUpdate) (view *models.ProfileView, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "profile", "Update")
	defer func() { observability.EndSpan(span, err) }()

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		profile = models.NewProfile(userID)
	}

	errs := append([]string(nil), in.decodeErrs...)
	s.applyAccount(user, in, &errs)
	s.applyProfile(profile, in, &errs)
	if len(errs) > 0 {
		return nil, models.NewValidationErrors(errs)
	}

	err = s.uow.Do(ctx, func(r repository.Repositories) error {
		if err := r.Users.Update(ctx, user); err != nil {
			return err
		}
		if profile.ID == 0 {
			created, err := r.Profiles.GetOrCreate(ctx, userID)
			if err != nil {
				return err
			}
			profile.ID = created.ID
			profile.CreatedAt = created.CreatedAt
		}
		return r.Profiles.Save(ctx, profile)
	})
	if err != nil {
		return nil, err
	}

	v := models.NewProfileView(user, profile)
	return &v, nil
}

func (s *ProfileService) applyAccount(u *models.User, in ProfileUpdate, errs *[]string) {
	s.setText(&u.FirstName, in.FirstName, maxNameLen)
	s.setText(&u.LastName, in.LastName, maxNameLen)
	s.setText(&u.Bio, in.Bio, maxBioLen)
	s.setText(&u.Location, in.Location, maxShortText)
	s.setText(&u.Company, in.Company, maxShortText)
	s.setText(&u.JobTitle, in.JobTitle, maxShortText)

	if v, ok := in.Website.Get(); ok {
		v = strings.TrimSpace(v)
		if err := s.validator.URL(v); err != nil {
			*errs = append(*errs, err.Error())
		} else {
			u.Website = v
		}
	}
	if v, ok := in.Phone.Get(); ok {
		v = strings.TrimSpace(v)
		if err := s.validator.Phone(v); err != nil {
			*errs = append(*errs, err.Error())
		} else {
			u.Phone = v
		}
	}

	if raw, ok := in.ExperienceYears.Get(); ok {
		years, err := parseExperience(raw)
		switch {
		case err != nil:
			*errs = append(*errs, "Experience years must be a valid number")
		case years < 0 || years > maxExperience:
			*errs = append(*errs, "Experience years must be between 0 and 50")
		default:
			u.ExperienceYears = &years
		}
	}

	if raw, ok := in.Skills.Get(); ok {
		var skills []string
		if !decodeKind(raw, '[', &skills) {
			*errs = append(*errs, "Skills must be a list")
		} else {
			u.Skills = encodeJSON(skills, "[]")
		}
	}
	if raw, ok := in.Education.Get(); ok {
		var education []models.EducationEntry
		if !decodeKind(raw, '[', &education) {
			*errs = append(*errs, "Education must be a list")
		} else {
			u.Education = encodeJSON(education, "[]")
		}
	}
	if raw, ok := in.SocialLinks.Get(); ok {
		var links map[string]string
		if !decodeKind(raw, '{', &links) {
			*errs = append(*errs, "Social links must be an object")
		} else {
			u.SocialLinks = encodeJSON(links, "{}")
		}
	}
}

func (s *ProfileService) applyProfile(p *models.Profile, in ProfileUpdate, errs *[]string) {
	s.setText(&p.Headline, in.Headline, maxHeadlineLen)
	s.setText(&p.Industry, in.Industry, maxShortText)
	s.setText(&p.CurrentPosition, in.CurrentPosition, maxShortText)

	if v, ok := in.CompanySize.Get(); ok {
		if err := s.validator.CompanySize(v); err != nil {
			*errs = append(*errs, err.Error())
		} else {
			p.CompanySize = v
		}
	}

	s.setPlatformURL(&p.LinkedInURL, in.LinkedInURL, validation.PlatformLinkedIn, errs)
	s.setPlatformURL(&p.TwitterURL, in.TwitterURL, validation.PlatformTwitter, errs)
	s.setPlatformURL(&p.GitHubURL, in.GitHubURL, validation.PlatformGitHub, errs)

	if v, ok := in.IsPublic.Get(); ok {
		p.IsPublic = v
	}
	if v, ok := in.AllowMessages.Get(); ok {
		p.AllowMessages = v
	}
	if v, ok := in.ShowEmail.Get(); ok {
		p.ShowEmail = v
	}
}

func (s *ProfileService) setText(dst *string, o models.Optional[string], max int) {
	if v, ok := o.Get(); ok {
		*dst = s.validator.Sanitize(v, max)
	}
}

func (s *ProfileService) setPlatformURL(dst *string, o models.Optional[string], platform validation.Platform, errs *[]string) {
	v, ok := o.Get()
	if !ok {
		return
	}
	v = strings.TrimSpace(v)
	if err := s.validator.PlatformURL(v, platform); err != nil {
		*errs = append(*errs, err.Error())
		return
	}
	*dst = v
}

// PublicProfile returns the anonymous view of a user's profile.
func (s *ProfileService) PublicProfile(ctx context.Context, userID uint) (*models.PublicProfileView, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil || !profile.IsPublic {
		return nil, ErrProfileNotPublic
	}
	v := models.NewPublicProfileView(user, profile)
	return &v, nil
}

// SetImage stores a new avatar and replaces the previous one.
func (s *ProfileService) SetImage(ctx context.Context, userID uint, filename string, content []byte) (url string, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "profile", "SetImage")
	defer func() { observability.EndSpan(span, err) }()

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}

	url, err = s.images.SaveProfileImage(ctx, filename, content)
	if err != nil {
		return "", err
	}
	if err := s.users.SetProfileImage(ctx, userID, url); err != nil {
		s.deleteImage(ctx, url)
		return "", err
	}
	if user.ProfileImageURL != "" {
		s.deleteImage(ctx, user.ProfileImageURL)
	}
	return url, nil
}

// ClearImage removes the current avatar.
func (s *ProfileService) ClearImage(ctx context.Context, userID uint) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.ProfileImageURL == "" {
		return models.NewNotFoundError("No profile image to delete")
	}
	s.deleteImage(ctx, user.ProfileImageURL)
	return s.users.SetProfileImage(ctx, userID, "")
}

func (s *ProfileService) deleteImage(ctx context.Context, url string) {
	if err := s.images.Delete(url); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to delete profile image",
			slog.String("url", url),
			slog.String("error", err.Error()),
		)
	}
}

// parseExperience accepts a JSON number or a string holding an integer.
// Fractional numbers are truncated.
func parseExperience(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		if math.IsInf(n, 0) || math.IsNaN(n) || math.Abs(n) > math.MaxInt32 {
			return 0, strconv.ErrRange
		}
		return int(n), nil
	}
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(str))
}

// decodeKind unmarshals raw into dst only when the JSON value opens with
// the expected delimiter.
func decodeKind(raw json.RawMessage, open byte, dst any) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != open {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

func encodeJSON(v any, empty string) string {
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return empty
	}
	return string(b)
}
