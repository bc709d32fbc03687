package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"quill/internal/models"
	"quill/internal/slug"

	"gorm.io/gorm"
)

type ProfileService struct {
	db    *gorm.DB
	slugs *slug.Generator
}

func NewProfileService(db *gorm.DB, slugs *slug.Generator) *ProfileService {
	return &ProfileService{db: db, slugs: slugs}
}

type ProfileInput struct {
	Bio       string
	BirthDate *time.Time
	Country   string
	City      string
}

// Ensure 保证用户拥有资料，首次创建时 slug 来自用户名
func (s *ProfileService) Ensure(ctx context.Context, user *models.User) (*models.Profile, error) {
	return s.ensure(ctx, s.db, user)
}

// ensure 在给定连接（可能是事务）上查找或创建资料
func (s *ProfileService) ensure(ctx context.Context, db *gorm.DB, user *models.User) (*models.Profile, error) {
	var profile models.Profile
	err := db.WithContext(ctx).Where("user_id = ?", user.ID).First(&profile).Error
	if err == nil {
		profile.User = *user
		return &profile, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	profile = models.Profile{UserID: user.ID, User: *user}
	if err := s.slugs.Save(ctx, db, &profile); err != nil {
		return nil, fmt.Errorf("save profile: %w", err)
	}
	return &profile, nil
}

func (s *ProfileService) Get(ctx context.Context, profileSlug string) (*models.Profile, error) {
	var profile models.Profile
	if err := s.db.WithContext(ctx).Preload("User").Where("slug = ?", profileSlug).First(&profile).Error; err != nil {
		return nil, notFound(err)
	}
	return &profile, nil
}

// Update 修改资料字段，slug 不变
func (s *ProfileService) Update(ctx context.Context, user *models.User, in ProfileInput) (*models.Profile, error) {
	if len([]rune(in.Bio)) > 500 {
		return nil, fmt.Errorf("%w: bio is longer than 500 characters", ErrInvalidInput)
	}
	country := strings.ToUpper(strings.TrimSpace(in.Country))
	if country != "" && len(country) != 2 {
		return nil, fmt.Errorf("%w: country must be a two-letter code", ErrInvalidInput)
	}
	if in.BirthDate != nil && in.BirthDate.After(time.Now()) {
		return nil, fmt.Errorf("%w: birth date is in the future", ErrInvalidInput)
	}

	profile, err := s.Ensure(ctx, user)
	if err != nil {
		return nil, err
	}
	profile.Bio = in.Bio
	profile.BirthDate = in.BirthDate
	profile.Country = country
	profile.City = strings.TrimSpace(in.City)

	if err := s.slugs.Save(ctx, s.db, profile); err != nil {
		return nil, fmt.Errorf("save profile: %w", err)
	}
	return profile, nil
}
