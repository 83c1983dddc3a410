package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"prok/internal/models"
	"prok/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Sortable post columns.
const (
	SortCreatedAt     = "created_at"
	SortLikesCount    = "likes_count"
	SortCommentsCount = "comments_count"
	SortViewsCount    = "views_count"
)

var sortColumns = map[string]bool{
	SortCreatedAt:     true,
	SortLikesCount:    true,
	SortCommentsCount: true,
	SortViewsCount:    true,
}

// PostQuery describes one page of the feed. Only active posts are ever
// returned. An empty Visibilities slice applies no visibility restriction.
type PostQuery struct {
	Search       string
	Category     string
	Visibilities []string
	Tags         []string
	AuthorID     uint
	SortField    string
	SortDesc     bool
	Limit        int
	Offset       int
}

// PostRepository defines persistence operations for posts.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	SoftDelete(ctx context.Context, id uint) error
	List(ctx context.Context, q PostQuery) ([]*models.Post, int64, error)
	AdjustLikes(ctx context.Context, id uint, delta int) (int, error)
	IncrementViews(ctx context.Context, id uint) error
	CategoryCounts(ctx context.Context) ([]models.NameCount, error)
	TagCounts(ctx context.Context, limit int) ([]models.NameCount, error)
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository returns a new PostRepository implementation.
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

var errPostNotFound = models.NewNotFoundError("Post not found")

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	defer observability.TrackQuery("create", "posts")()

	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// GetByID loads an active post together with its author.
func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	defer observability.TrackQuery("get_by_id", "posts")()

	var post models.Post
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("is_active = ?", true).
		First(&post, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errPostNotFound
		}
		return nil, models.NewInternalError(err)
	}
	return &post, nil
}

func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	defer observability.TrackQuery("update", "posts")()

	if err := r.db.WithContext(ctx).Omit(clause.Associations).Save(post).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) SoftDelete(ctx context.Context, id uint) error {
	defer observability.TrackQuery("soft_delete", "posts")()

	res := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ? AND is_active = ?", id, true).
		Update("is_active", false)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return errPostNotFound
	}
	return nil
}

// List returns the requested page and the total number of matching posts.
func (r *postRepository) List(ctx context.Context, q PostQuery) ([]*models.Post, int64, error) {
	defer observability.TrackQuery("list", "posts")()

	db := r.db.WithContext(ctx)

	var total int64
	if err := db.Model(&models.Post{}).Scopes(postFilter(q)).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	posts := make([]*models.Post, 0)
	if total == 0 {
		return posts, 0, nil
	}

	query := db.Scopes(postFilter(q), applySort(q.SortField, q.SortDesc)).Preload("User")
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	if q.Offset > 0 {
		query = query.Offset(q.Offset)
	}
	if err := query.Find(&posts).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return posts, total, nil
}

func postFilter(q PostQuery) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		db = db.Where("is_active = ?", true)
		if q.AuthorID != 0 {
			db = db.Where("user_id = ?", q.AuthorID)
		}
		if len(q.Visibilities) > 0 {
			db = db.Where("visibility IN ?", q.Visibilities)
		}
		if q.Category != "" {
			db = db.Where("category = ?", q.Category)
		}
		if search := strings.TrimSpace(q.Search); search != "" {
			pattern := "%" + escapeLike(strings.ToLower(search)) + "%"
			db = db.Where(
				"(LOWER(content) LIKE ? ESCAPE '\\' OR LOWER(COALESCE(rich_content, '')) LIKE ? ESCAPE '\\')",
				pattern, pattern,
			)
		}
		if len(q.Tags) > 0 {
			clauses := make([]string, 0, len(q.Tags))
			args := make([]any, 0, len(q.Tags))
			for _, tag := range q.Tags {
				encoded, _ := json.Marshal(tag)
				clauses = append(clauses, "tags LIKE ? ESCAPE '\\'")
				args = append(args, "%"+escapeLike(string(encoded))+"%")
			}
			db = db.Where("("+strings.Join(clauses, " OR ")+")", args...)
		}
		return db
	}
}

// applySort orders by a whitelisted column, falling back to newest first.
func applySort(field string, desc bool) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if !sortColumns[field] {
			field, desc = SortCreatedAt, true
		}
		dir := " ASC"
		if desc {
			dir = " DESC"
		}
		return db.Order(field + dir).Order("id" + dir)
	}
}

// AdjustLikes moves likes_count by delta in a single UPDATE and returns the
// new value. Decrements never take the counter below zero.
func (r *postRepository) AdjustLikes(ctx context.Context, id uint, delta int) (int, error) {
	defer observability.TrackQuery("adjust_likes", "posts")()

	expr := gorm.Expr("likes_count + ?", delta)
	if delta < 0 {
		expr = gorm.Expr("CASE WHEN likes_count + ? < 0 THEN 0 ELSE likes_count + ? END", delta, delta)
	}

	var count int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Post{}).
			Where("id = ? AND is_active = ?", id, true).
			UpdateColumn("likes_count", expr)
		if res.Error != nil {
			return models.NewInternalError(res.Error)
		}
		if res.RowsAffected == 0 {
			return errPostNotFound
		}
		if err := tx.Model(&models.Post{}).Where("id = ?", id).Select("likes_count").Scan(&count).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	return count, err
}

func (r *postRepository) IncrementViews(ctx context.Context, id uint) error {
	defer observability.TrackQuery("increment_views", "posts")()

	res := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ? AND is_active = ?", id, true).
		UpdateColumn("views_count", gorm.Expr("views_count + 1"))
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return errPostNotFound
	}
	return nil
}

// CategoryCounts counts active posts per category, largest first.
func (r *postRepository) CategoryCounts(ctx context.Context) ([]models.NameCount, error) {
	defer observability.TrackQuery("category_counts", "posts")()

	rows := make([]models.NameCount, 0)
	err := r.db.WithContext(ctx).Model(&models.Post{}).
		Select("category AS name, COUNT(*) AS count").
		Where("is_active = ?", true).
		Group("category").
		Order("COUNT(*) DESC").
		Order("category ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return rows, nil
}

// TagCounts returns the limit most used tags across active posts. Tags are
// stored as JSON text, so counting happens after decoding.
func (r *postRepository) TagCounts(ctx context.Context, limit int) ([]models.NameCount, error) {
	defer observability.TrackQuery("tag_counts", "posts")()

	var encoded []string
	err := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("is_active = ? AND tags IS NOT NULL AND tags <> '' AND tags <> '[]'", true).
		Pluck("tags", &encoded).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return countTags(encoded, limit), nil
}

func countTags(encoded []string, limit int) []models.NameCount {
	counts := make(map[string]int64)
	for _, raw := range encoded {
		for _, tag := range models.DecodeStringList(raw) {
			counts[tag]++
		}
	}

	out := make([]models.NameCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, models.NameCount{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
