package models

import (
	"time"
)

const DefaultCategoryDescription = "Нет описания"

type Category struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Slug        string    `gorm:"uniqueIndex;size:255;not null" json:"slug"`
	Description string    `gorm:"size:300;default:'Нет описания'" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (c *Category) PrimaryKey() uint { return c.ID }
func (c *Category) CurrentSlug() string { return c.Slug }
func (c *Category) SlugSource() string { return c.Title }
func (c *Category) SetSlug(s string) { c.Slug = s }
