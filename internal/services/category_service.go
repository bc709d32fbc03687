package services

import (
	"context"
	"fmt"
	"strings"

	"quill/internal/models"
	"quill/internal/slug"

	"gorm.io/gorm"
)

type CategoryService struct {
	db    *gorm.DB
	slugs *slug.Generator
}

func NewCategoryService(db *gorm.DB, slugs *slug.Generator) *CategoryService {
	return &CategoryService{db: db, slugs: slugs}
}

// Create 新建分类。调用方可以指定 slug，否则由标题生成。
func (s *CategoryService) Create(ctx context.Context, title, categorySlug, description string) (*models.Category, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if len([]rune(description)) > 300 {
		return nil, fmt.Errorf("%w: description is longer than 300 characters", ErrInvalidInput)
	}
	if strings.TrimSpace(description) == "" {
		description = models.DefaultCategoryDescription
	}

	category := &models.Category{
		Title:       title,
		Slug:        strings.TrimSpace(categorySlug),
		Description: description,
	}
	if err := s.slugs.Save(ctx, s.db, category); err != nil {
		return nil, fmt.Errorf("save category: %w", err)
	}
	return category, nil
}

func (s *CategoryService) List(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	err := s.db.WithContext(ctx).Order("title ASC").Find(&categories).Error
	return categories, err
}

func (s *CategoryService) Get(ctx context.Context, categorySlug string) (*models.Category, error) {
	var category models.Category
	if err := s.db.WithContext(ctx).Where("slug = ?", categorySlug).First(&category).Error; err != nil {
		return nil, notFound(err)
	}
	return &category, nil
}
