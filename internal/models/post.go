package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Visibility tiers for posts.
const (
	VisibilityPublic      = "public"
	VisibilityConnections = "connections"
	VisibilityPrivate     = "private"
)

// DefaultCategory is assigned when a post is created without one.
const DefaultCategory = "general"

// MaxTags bounds the number of tags kept on a post.
const MaxTags = 10

// Categories is the set of accepted post categories.
var Categories = []string{
	"general", "technology", "business", "career", "education",
	"design", "marketing", "finance", "health", "other",
}

// Post is a unit of user-generated content.
type Post struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"not null;index" json:"user_id"`
	User          User      `gorm:"foreignKey:UserID" json:"-"`
	Content       string    `gorm:"type:text;not null" json:"content"`
	RichContent   string    `gorm:"type:text" json:"rich_content"`
	MediaURL      string    `gorm:"size:500" json:"media_url"`
	MediaType     MediaKind `gorm:"size:20" json:"media_type"`
	LikesCount    int       `gorm:"not null;default:0" json:"likes_count"`
	CommentsCount int       `gorm:"not null;default:0" json:"comments_count"`
	ViewsCount    int       `gorm:"not null;default:0" json:"views_count"`
	Tags          string    `gorm:"type:text" json:"-"`
	Visibility    string    `gorm:"size:20;not null;default:public" json:"visibility"`
	Category      string    `gorm:"size:50;not null;default:general;index" json:"category"`
	IsActive      bool      `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// PostView is the serialized post with decoded tags and author summary.
type PostView struct {
	ID            uint      `json:"id"`
	UserID        uint      `json:"user_id"`
	Content       string    `json:"content"`
	RichContent   string    `json:"rich_content"`
	MediaURL      string    `json:"media_url"`
	MediaType     MediaKind `json:"media_type"`
	LikesCount    int       `json:"likes_count"`
	CommentsCount int       `json:"comments_count"`
	ViewsCount    int       `json:"views_count"`
	Tags          []string  `json:"tags"`
	Visibility    string    `json:"visibility"`
	Category      string    `json:"category"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	User          *Author   `json:"user"`
}

// View serializes p. The author summary is present only when User was loaded.
func (p *Post) View() PostView {
	v := PostView{
		ID:            p.ID,
		UserID:        p.UserID,
		Content:       p.Content,
		RichContent:   p.RichContent,
		MediaURL:      p.MediaURL,
		MediaType:     p.MediaType,
		LikesCount:    p.LikesCount,
		CommentsCount: p.CommentsCount,
		ViewsCount:    p.ViewsCount,
		Tags:          p.TagList(),
		Visibility:    p.Visibility,
		Category:      p.Category,
		IsActive:      p.IsActive,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
	if p.User.ID != 0 {
		a := p.User.Summary()
		v.User = &a
	}
	return v
}

// TagList decodes the stored tag column.
func (p *Post) TagList() []string {
	return DecodeStringList(p.Tags)
}

// SetTags encodes tags into the stored column.
func (p *Post) SetTags(tags []string) {
	if len(tags) == 0 {
		p.Tags = "[]"
		return
	}
	b, _ := json.Marshal(tags)
	p.Tags = string(b)
}

// HasBody reports whether p carries non-blank content or rich content.
func (p *Post) HasBody() bool {
	return strings.TrimSpace(p.Content) != "" || strings.TrimSpace(p.RichContent) != ""
}

// NameCount is one row of an aggregate view such as categories or tags.
type NameCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}
