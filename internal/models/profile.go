package models

import (
	"time"
)

// Profile 用户资料，注册时自动创建，slug 来自用户名
type Profile struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"not null;uniqueIndex" json:"user_id"`
	User      User       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"user"`
	Slug      string     `gorm:"uniqueIndex;size:255;not null" json:"slug"`
	Avatar    string     `json:"avatar"`
	Bio       string     `gorm:"size:500" json:"bio"`
	BirthDate *time.Time `gorm:"type:date" json:"birth_date"`
	Country   string     `gorm:"size:2" json:"country"` // ISO 3166-1 alpha-2
	City      string     `gorm:"size:100" json:"city"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (p *Profile) PrimaryKey() uint { return p.ID }
func (p *Profile) CurrentSlug() string { return p.Slug }
func (p *Profile) SetSlug(s string) { p.Slug = s }

// SlugSource 优先使用已加载的用户名
func (p *Profile) SlugSource() string {
	return p.User.Username
}
