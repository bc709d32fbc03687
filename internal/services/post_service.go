package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"quill/internal/models"
	"quill/internal/slug"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type PostService struct {
	db    *gorm.DB
	slugs *slug.Generator
	log   logrus.FieldLogger
}

func NewPostService(db *gorm.DB, slugs *slug.Generator, log logrus.FieldLogger) *PostService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &PostService{db: db, slugs: slugs, log: log}
}

type PostInput struct {
	Title       string
	Description string
	Text        string
	CategoryID  *uint
	Status      models.Status
	Fixed       bool
	// RegenerateSlug 为 true 时丢弃旧 slug，按当前标题重新生成
	RegenerateSlug bool
}

type ListPostsQuery struct {
	Page         int
	PerPage      int
	CategorySlug string
	AuthorID     uint
	// IncludeDrafts 只对作者本人的列表有意义
	IncludeDrafts bool
}

type PostPage struct {
	Posts      []models.Post `json:"posts"`
	Page       int           `json:"page"`
	TotalPages int           `json:"total_pages"`
	Total      int64         `json:"total"`
}

func (in *PostInput) validate() error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if len([]rune(in.Title)) > 255 {
		return fmt.Errorf("%w: title is longer than 255 characters", ErrInvalidInput)
	}
	if len([]rune(in.Description)) > 500 {
		return fmt.Errorf("%w: description is longer than 500 characters", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Text) == "" {
		return fmt.Errorf("%w: text is required", ErrInvalidInput)
	}
	if in.Status == "" {
		in.Status = models.StatusPublished
	}
	if !in.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, in.Status)
	}
	return nil
}

// Create 发布文章，slug 由标题生成
func (s *PostService) Create(ctx context.Context, authorID uint, in PostInput) (*models.Post, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, in.CategoryID); err != nil {
		return nil, err
	}

	post := &models.Post{
		Title:       in.Title,
		Description: in.Description,
		Text:        in.Text,
		CategoryID:  in.CategoryID,
		Status:      in.Status,
		Fixed:       in.Fixed,
		AuthorID:    authorID,
	}
	if err := s.slugs.Save(ctx, s.db, post); err != nil {
		return nil, fmt.Errorf("save post: %w", err)
	}

	s.log.WithFields(logrus.Fields{"post_id": post.ID, "slug": post.Slug}).Info("post created")
	return post, nil
}

// Update 修改文章。已有 slug 保持不变，除非调用方要求重新生成。
func (s *PostService) Update(ctx context.Context, editorID uint, postSlug string, in PostInput) (*models.Post, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	post, err := s.find(ctx, postSlug)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != editorID {
		// 别人的草稿当作不存在
		if post.Status != models.StatusPublished {
			return nil, ErrNotFound
		}
		return nil, ErrForbidden
	}
	if err := s.checkCategory(ctx, in.CategoryID); err != nil {
		return nil, err
	}

	post.Title = in.Title
	post.Description = in.Description
	post.Text = in.Text
	if !sameID(post.CategoryID, in.CategoryID) {
		post.Category = nil
	}
	post.CategoryID = in.CategoryID
	post.Status = in.Status
	post.Fixed = in.Fixed
	post.UpdaterID = &editorID
	if in.RegenerateSlug {
		post.SetSlug("")
	}

	if err := s.slugs.Save(ctx, s.db, post); err != nil {
		return nil, fmt.Errorf("save post: %w", err)
	}
	return post, nil
}

// Get 读取文章。草稿只有作者本人可见。
func (s *PostService) Get(ctx context.Context, postSlug string, viewerID uint) (*models.Post, error) {
	post, err := s.find(ctx, postSlug)
	if err != nil {
		return nil, err
	}
	if post.Status != models.StatusPublished && post.AuthorID != viewerID {
		return nil, ErrNotFound
	}
	if err := s.fillCounters(ctx, []*models.Post{post}); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *PostService) List(ctx context.Context, q ListPostsQuery) (*PostPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = 10
	}

	var categoryID uint
	if q.CategorySlug != "" {
		var category models.Category
		if err := s.db.WithContext(ctx).Where("slug = ?", q.CategorySlug).First(&category).Error; err != nil {
			return nil, notFound(err)
		}
		categoryID = category.ID
	}

	scope := func() *gorm.DB {
		db := s.db.WithContext(ctx).Model(&models.Post{})
		if !q.IncludeDrafts {
			db = db.Where("posts.status = ?", models.StatusPublished)
		}
		if q.AuthorID != 0 {
			db = db.Where("posts.author_id = ?", q.AuthorID)
		}
		if categoryID != 0 {
			db = db.Where("posts.category_id = ?", categoryID)
		}
		return db
	}

	var total int64
	if err := scope().Count(&total).Error; err != nil {
		return nil, err
	}

	var posts []models.Post
	err := scope().Preload("Author").Preload("Category").
		Order("posts.fixed DESC, posts.created_at DESC").
		Limit(q.PerPage).
		Offset((q.Page - 1) * q.PerPage).
		Find(&posts).Error
	if err != nil {
		return nil, err
	}

	ptrs := make([]*models.Post, len(posts))
	for i := range posts {
		ptrs[i] = &posts[i]
	}
	if err := s.fillCounters(ctx, ptrs); err != nil {
		return nil, err
	}

	totalPages := int((total + int64(q.PerPage) - 1) / int64(q.PerPage))
	if totalPages == 0 {
		totalPages = 1
	}
	return &PostPage{Posts: posts, Page: q.Page, TotalPages: totalPages, Total: total}, nil
}

// Search 在已发布文章的标题、摘要和正文中搜索
func (s *PostService) Search(ctx context.Context, query string, limit int) ([]models.Post, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.Post{}, nil
	}
	if limit <= 0 {
		limit = 50
	}

	pattern := "%" + strings.ToLower(query) + "%"
	var posts []models.Post
	err := s.db.WithContext(ctx).Preload("Author").Preload("Category").
		Where("status = ?", models.StatusPublished).
		Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ? OR LOWER(text) LIKE ?", pattern, pattern, pattern).
		Order("created_at DESC").
		Limit(limit).
		Find(&posts).Error
	return posts, err
}

// Delete 硬删除文章及其评论和评分
func (s *PostService) Delete(ctx context.Context, userID uint, postSlug string) (*models.Post, error) {
	post, err := s.find(ctx, postSlug)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != userID {
		return nil, ErrForbidden
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Rating{}).Error; err != nil {
			return err
		}
		return tx.Delete(post).Error
	})
	if err != nil {
		return nil, err
	}
	s.log.WithField("post_id", post.ID).Info("post deleted")
	return post, nil
}

// Owner 返回文章的 slug 和作者 ID
func (s *PostService) Owner(ctx context.Context, postID uint) (string, uint, error) {
	var post models.Post
	if err := s.db.WithContext(ctx).Select("id, slug, author_id").First(&post, postID).Error; err != nil {
		return "", 0, notFound(err)
	}
	return post.Slug, post.AuthorID, nil
}

func (s *PostService) find(ctx context.Context, postSlug string) (*models.Post, error) {
	var post models.Post
	err := s.db.WithContext(ctx).Preload("Author").Preload("Category").
		Where("slug = ?", postSlug).
		First(&post).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &post, nil
}

func (s *PostService) checkCategory(ctx context.Context, id *uint) error {
	if id == nil {
		return nil
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Category{}).Where("id = ?", *id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: category %d does not exist", ErrInvalidInput, *id)
	}
	return nil
}

// fillCounters 批量填充评论数和评分总和
func (s *PostService) fillCounters(ctx context.Context, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]uint, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}

	type row struct {
		PostID uint
		N      int
	}
	var comments, ratings []row
	db := s.db.WithContext(ctx)
	if err := db.Model(&models.Comment{}).
		Select("post_id, COUNT(*) AS n").
		Where("post_id IN ?", ids).
		Group("post_id").
		Scan(&comments).Error; err != nil {
		return err
	}
	if err := db.Model(&models.Rating{}).
		Select("post_id, COALESCE(SUM(value), 0) AS n").
		Where("post_id IN ?", ids).
		Group("post_id").
		Scan(&ratings).Error; err != nil {
		return err
	}

	commentMap := make(map[uint]int, len(comments))
	for _, r := range comments {
		commentMap[r.PostID] = r.N
	}
	ratingMap := make(map[uint]int, len(ratings))
	for _, r := range ratings {
		ratingMap[r.PostID] = r.N
	}
	for _, p := range posts {
		p.CommentCount = commentMap[p.ID]
		p.RatingSum = ratingMap[p.ID]
	}
	return nil
}

// IsNotFound 便于 handler 判断
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func sameID(a, b *uint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
