package models

import (
	"time"
)

type Status string

const (
	StatusPublished Status = "published"
	StatusDraft     Status = "draft"
)

// Valid 只允许 published 和 draft
func (s Status) Valid() bool {
	return s == StatusPublished || s == StatusDraft
}

type Post struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Slug        string    `gorm:"uniqueIndex;size:255;not null" json:"slug"`
	Description string    `gorm:"size:500" json:"description"`
	Text        string    `gorm:"type:text;not null" json:"text"`
	CategoryID  *uint     `gorm:"index" json:"category_id"`
	Category    *Category `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"category,omitempty"`
	Status      Status    `gorm:"size:10;default:'published';not null;index:idx_post_listing,priority:3" json:"status"`
	AuthorID    uint      `gorm:"not null;index" json:"author_id"`
	Author      User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	UpdaterID   *uint     `json:"updater_id"`
	Updater     *User     `gorm:"foreignKey:UpdaterID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"updater,omitempty"`
	Fixed       bool      `gorm:"default:false;index:idx_post_listing,priority:1" json:"fixed"` // 置顶
	CreatedAt   time.Time `gorm:"index:idx_post_listing,priority:2" json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// 非数据库字段，用于查询时填充
	CommentCount int `gorm:"-" json:"comment_count"`
	RatingSum    int `gorm:"-" json:"rating_sum"`
}

func (p *Post) PrimaryKey() uint { return p.ID }
func (p *Post) CurrentSlug() string { return p.Slug }
func (p *Post) SlugSource() string { return p.Title }
func (p *Post) SetSlug(s string) { p.Slug = s }
