package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"prok/internal/middleware"
	"prok/internal/models"
	"prok/internal/repository"
	"prok/internal/service"

	"gorm.io/gorm"
)

// Options configures a seeding run.
type Options struct {
	NumUsers    int
	NumPosts    int
	ShouldClean bool
	DryRun      bool
	// MaxDays bounds how far back post timestamps are spread.
	MaxDays int
	// RandomSeed makes generated data reproducible when non-zero.
	RandomSeed int64
	// FastHash uses the minimum bcrypt cost.
	FastHash bool
	// NumInactive deactivates the last N seeded accounts.
	NumInactive int
}

// Result summarizes what a run created.
type Result struct {
	Users []*models.User
	Posts []*models.Post
}

// Seeder fills the database with demo accounts, profiles and posts.
type Seeder struct {
	db       *gorm.DB
	opts     Options
	factory  *Factory
	accounts *service.AccountService
}

// NewSeeder creates a Seeder. db may be nil when opts.DryRun is set.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	var repos repository.Repositories
	s := &Seeder{db: db, opts: opts}
	if db != nil {
		repos = repository.NewRepositories(db)
		s.accounts = service.NewAccountService(repos.Users, nil)
	}
	s.factory = NewFactory(repos, opts)
	return s
}

// Factory exposes the underlying entity factory.
func (s *Seeder) Factory() *Factory {
	return s.factory
}

// ClearAll removes every post, profile and account.
func (s *Seeder) ClearAll(ctx context.Context) error {
	if s.opts.DryRun {
		middleware.Logger.Info("[dry-run] skipping cleanup")
		return nil
	}

	middleware.Logger.Info("Cleaning database")
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range []string{"posts", "profiles", "users"} {
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		return nil
	})
}

// SeedUsers creates n accounts, each with a profile.
func (s *Seeder) SeedUsers(ctx context.Context, n int) ([]*models.User, error) {
	users := make([]*models.User, 0, n)
	for i := 0; i < n; i++ {
		u, err := s.factory.CreateUser(ctx)
		if err != nil {
			return users, fmt.Errorf("failed to create user %d: %w", i+1, err)
		}
		users = append(users, u)
	}
	middleware.Logger.Info("Seeded users", slog.Int("count", len(users)))
	return users, nil
}

// SeedPosts creates n posts spread round-robin across authors.
func (s *Seeder) SeedPosts(ctx context.Context, authors []*models.User, n int) ([]*models.Post, error) {
	if len(authors) == 0 {
		return nil, nil
	}

	posts := make([]*models.Post, 0, n)
	for i := 0; i < n; i++ {
		p, err := s.factory.CreatePost(ctx, authors[i%len(authors)])
		if err != nil {
			return posts, fmt.Errorf("failed to create post %d: %w", i+1, err)
		}
		posts = append(posts, p)
	}
	middleware.Logger.Info("Seeded posts", slog.Int("count", len(posts)))
	return posts, nil
}

// DeactivateUsers disables login for the given accounts.
func (s *Seeder) DeactivateUsers(ctx context.Context, users []*models.User) error {
	for _, u := range users {
		if s.opts.DryRun {
			u.IsActive = false
			continue
		}
		if err := s.accounts.Deactivate(ctx, u.ID); err != nil {
			return fmt.Errorf("failed to deactivate user %d: %w", u.ID, err)
		}
		u.IsActive = false
	}
	if len(users) > 0 {
		middleware.Logger.Info("Deactivated users", slog.Int("count", len(users)))
	}
	return nil
}

// Run executes a full seeding pass as configured by Options.
func (s *Seeder) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	if s.opts.ShouldClean {
		if err := s.ClearAll(ctx); err != nil {
			return nil, err
		}
	}

	users, err := s.SeedUsers(ctx, s.opts.NumUsers)
	if err != nil {
		return nil, err
	}
	posts, err := s.SeedPosts(ctx, users, s.opts.NumPosts)
	if err != nil {
		return nil, err
	}
	if n := min(s.opts.NumInactive, len(users)); n > 0 {
		if err := s.DeactivateUsers(ctx, users[len(users)-n:]); err != nil {
			return nil, err
		}
	}

	middleware.Logger.Info("Seeding complete",
		slog.Int("users", len(users)),
		slog.Int("posts", len(posts)),
		slog.Bool("dry_run", s.opts.DryRun),
		slog.Duration("took", time.Since(start)),
	)
	return &Result{Users: users, Posts: posts}, nil
}
