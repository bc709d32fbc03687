package services

import (
	"context"
	"errors"
	"fmt"

	"quill/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RatingService struct {
	db *gorm.DB
}

func NewRatingService(db *gorm.DB) *RatingService {
	return &RatingService{db: db}
}

// Toggle 第一次投票创建记录，再投相同的值撤销，投相反的值改票。返回文章评分总和。
func (s *RatingService) Toggle(ctx context.Context, postID, userID uint, value int, ip string) (int, error) {
	if value != models.RatingLike && value != models.RatingDislike {
		return 0, fmt.Errorf("%w: rating value must be 1 or -1", ErrInvalidInput)
	}

	var sum int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := postExists(tx, postID); err != nil {
			return err
		}

		var rating models.Rating
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("post_id = ? AND user_id = ?", postID, userID).
			First(&rating).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			rating = models.Rating{PostID: postID, UserID: userID, Value: value, IPAddress: ip}
			if err := tx.Omit(clause.Associations).Create(&rating).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		case rating.Value == value:
			if err := tx.Delete(&rating).Error; err != nil {
				return err
			}
		default:
			if err := tx.Model(&rating).Update("value", value).Error; err != nil {
				return err
			}
		}

		total, err := ratingSum(tx, postID)
		sum = total
		return err
	})
	return sum, err
}

func (s *RatingService) Sum(ctx context.Context, postID uint) (int, error) {
	return ratingSum(s.db.WithContext(ctx), postID)
}

func ratingSum(db *gorm.DB, postID uint) (int, error) {
	var sum int
	err := db.Model(&models.Rating{}).
		Select("COALESCE(SUM(value), 0)").
		Where("post_id = ?", postID).
		Scan(&sum).Error
	return sum, err
}
