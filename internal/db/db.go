package db

import (
	"fmt"

	"quill/internal/models"
	"quill/internal/slug"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open 连接 postgres 并执行迁移
func Open(dsn string, log logrus.FieldLogger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	log.Info("Database connection established")

	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Info("Database migration completed")

	if err := Seed(db, log); err != nil {
		return nil, err
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Profile{},
		&models.Category{},
		&models.Post{},
		&models.Comment{},
		&models.Rating{},
	)
	if err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	return nil
}

// Seed 首次启动时创建预设分类
func Seed(db *gorm.DB, log logrus.FieldLogger) error {
	var count int64
	if err := db.Model(&models.Category{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		log.Debug("Categories already seeded, skipping")
		return nil
	}

	categories := []models.Category{
		{Title: "Программирование", Description: "Языки, инструменты и практики разработки"},
		{Title: "Новости", Description: "Новости из мира технологий"},
		{Title: "Разное", Description: models.DefaultCategoryDescription},
	}
	for i := range categories {
		categories[i].Slug = slug.Slugify(categories[i].Title)
		if err := db.Create(&categories[i]).Error; err != nil {
			log.WithError(err).WithField("category", categories[i].Title).Warn("Failed to create category")
		}
	}
	log.Info("Initial categories created successfully")
	return nil
}
