package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"quill/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommentService 维护每篇文章的评论森林。
//
// 一篇文章的所有评论共享同一个 tree_id，层级完全由 (lft, rgt, depth) 表示：
// 子树查询是一次区间包含查询，插入和删除在一个事务里平移区间。
// 同一文章的所有写操作先锁住文章行，从而串行化。
type CommentService struct {
	db  *gorm.DB
	log logrus.FieldLogger
	now func() time.Time
}

func NewCommentService(db *gorm.DB, log logrus.FieldLogger) *CommentService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &CommentService{db: db, log: log, now: time.Now}
}

// WithClock 替换时间来源（测试用）
func (s *CommentService) WithClock(now func() time.Time) *CommentService {
	s.now = now
	return s
}

type InsertCommentInput struct {
	PostID   uint
	AuthorID uint
	Content  string
	ParentID *uint
	Status   models.Status
}

// CommentThread 嵌套结构，用于渲染回复树
type CommentThread struct {
	models.Comment
	Replies []*CommentThread `json:"replies"`
}

// Insert 新增评论。新节点总是排在同级兄弟的最前面（按创建时间倒序），
// 其后的兄弟区间和所有祖先的右边界整体右移 2。
func (s *CommentService) Insert(ctx context.Context, in InsertCommentInput) (*models.Comment, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: comment is empty", ErrInvalidInput)
	}
	status := in.Status
	if status == "" {
		status = models.StatusPublished
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}

	var comment models.Comment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		post, err := lockPost(tx, in.PostID)
		if err != nil {
			return err
		}

		treeID, err := forestOf(tx, post.ID)
		if err != nil {
			return err
		}

		pos, depth := 1, 0
		if in.ParentID != nil {
			var parent models.Comment
			if err := tx.Where("id = ? AND post_id = ?", *in.ParentID, post.ID).First(&parent).Error; err != nil {
				return notFound(err)
			}
			if parent.TreeID != treeID || parent.Lft >= parent.Rgt {
				return s.violation(parent.PostID, "parent %d has bounds [%d,%d] in tree %d, expected tree %d",
					parent.ID, parent.Lft, parent.Rgt, parent.TreeID, treeID)
			}
			pos, depth = parent.Lft+1, parent.Depth+1
		}

		if err := shift(tx, treeID, pos, 2); err != nil {
			return err
		}

		now := s.now()
		comment = models.Comment{
			PostID:    post.ID,
			AuthorID:  in.AuthorID,
			Content:   content,
			Status:    status,
			ParentID:  in.ParentID,
			TreeID:    treeID,
			Lft:       pos,
			Rgt:       pos + 1,
			Depth:     depth,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return tx.Omit(clause.Associations).Create(&comment).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"post_id":    comment.PostID,
		"comment_id": comment.ID,
		"depth":      comment.Depth,
	}).Info("comment inserted")
	return &comment, nil
}

// Delete 删除节点及其整个子树，并把右侧的区间左移回收空位。返回删除的节点数。
func (s *CommentService) Delete(ctx context.Context, id uint) (int64, error) {
	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var node models.Comment
		if err := tx.First(&node, id).Error; err != nil {
			return notFound(err)
		}
		if _, err := lockPost(tx, node.PostID); err != nil {
			return err
		}
		// 拿到锁之前边界可能已被其他事务平移
		if err := tx.First(&node, id).Error; err != nil {
			return notFound(err)
		}

		width := node.Width()
		if width < 2 || width%2 != 0 {
			return s.violation(node.PostID, "comment %d has bounds [%d,%d]", node.ID, node.Lft, node.Rgt)
		}

		res := tx.Where("tree_id = ? AND lft BETWEEN ? AND ?", node.TreeID, node.Lft, node.Rgt).
			Delete(&models.Comment{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != int64(width/2) {
			return s.violation(node.PostID, "comment %d spans %d nodes but %d were removed",
				node.ID, width/2, res.RowsAffected)
		}

		if err := shift(tx, node.TreeID, node.Rgt+1, -width); err != nil {
			return err
		}
		removed = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.log.WithFields(logrus.Fields{"comment_id": id, "removed": removed}).Info("comment subtree deleted")
	return removed, nil
}

// Get 按 ID 读取单条评论
func (s *CommentService) Get(ctx context.Context, id uint) (*models.Comment, error) {
	var c models.Comment
	if err := s.db.WithContext(ctx).Joins("Author").First(&c, "comments.id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// Subtree 返回节点自身及全部后代，按 lft 升序（先序遍历，父节点在子节点之前）
func (s *CommentService) Subtree(ctx context.Context, id uint) ([]models.Comment, error) {
	db := s.db.WithContext(ctx)

	var node models.Comment
	if err := db.First(&node, id).Error; err != nil {
		return nil, notFound(err)
	}

	var nodes []models.Comment
	err := db.Joins("Author").
		Where("comments.tree_id = ? AND comments.lft BETWEEN ? AND ?", node.TreeID, node.Lft, node.Rgt).
		Order("comments.lft ASC").
		Find(&nodes).Error
	return nodes, err
}

// Ancestors 返回从根到父节点的路径（不含自身）
func (s *CommentService) Ancestors(ctx context.Context, id uint) ([]models.Comment, error) {
	db := s.db.WithContext(ctx)

	var node models.Comment
	if err := db.First(&node, id).Error; err != nil {
		return nil, notFound(err)
	}

	var path []models.Comment
	err := db.Where("tree_id = ? AND lft < ? AND rgt > ?", node.TreeID, node.Lft, node.Rgt).
		Order("lft ASC").
		Find(&path).Error
	return path, err
}

// FlatList 文章下的全部评论，按创建时间倒序，忽略层级
func (s *CommentService) FlatList(ctx context.Context, postID uint) ([]models.Comment, error) {
	db := s.db.WithContext(ctx)
	if err := postExists(db, postID); err != nil {
		return nil, err
	}

	var comments []models.Comment
	err := db.Joins("Author").
		Where("comments.post_id = ?", postID).
		Order("comments.created_at DESC, comments.id DESC").
		Find(&comments).Error
	return comments, err
}

// Forest 用一次先序查询构建文章的嵌套评论树
func (s *CommentService) Forest(ctx context.Context, postID uint) ([]*CommentThread, error) {
	db := s.db.WithContext(ctx)
	if err := postExists(db, postID); err != nil {
		return nil, err
	}

	var comments []models.Comment
	err := db.Joins("Author").
		Where("comments.post_id = ?", postID).
		Order("comments.lft ASC").
		Find(&comments).Error
	if err != nil {
		return nil, err
	}
	return buildThreads(comments), nil
}

// Count 文章的评论数
func (s *CommentService) Count(ctx context.Context, postID uint) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Comment{}).Where("post_id = ?", postID).Count(&n).Error
	return n, err
}

// Verify 检查文章评论树的全部嵌套集合不变量
func (s *CommentService) Verify(ctx context.Context, postID uint) error {
	var comments []models.Comment
	err := s.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("lft ASC").
		Find(&comments).Error
	if err != nil {
		return err
	}
	if err := CheckNestedSet(comments); err != nil {
		return fmt.Errorf("post %d: %w", postID, err)
	}
	return nil
}

// CheckNestedSet 校验按 lft 升序排列的同一棵树的节点：
// 区间合法且两两不交叉、边界连续覆盖 1..2n、depth 与 parent 一致、兄弟按创建时间倒序。
func CheckNestedSet(nodes []models.Comment) error {
	seen := make(map[int]bool, 2*len(nodes))
	var stack []*models.Comment
	// 每个父节点（nil 为根层）最近一个子节点
	lastChild := make(map[uint]*models.Comment)
	var lastRoot *models.Comment

	for i := range nodes {
		n := &nodes[i]
		if n.Lft >= n.Rgt {
			return fmt.Errorf("%w: comment %d has lft %d >= rgt %d", ErrInvariantViolation, n.ID, n.Lft, n.Rgt)
		}
		if i > 0 && n.TreeID != nodes[0].TreeID {
			return fmt.Errorf("%w: comment %d in tree %d, expected %d", ErrInvariantViolation, n.ID, n.TreeID, nodes[0].TreeID)
		}
		for _, b := range []int{n.Lft, n.Rgt} {
			if seen[b] {
				return fmt.Errorf("%w: bound %d used twice", ErrInvariantViolation, b)
			}
			seen[b] = true
		}

		for len(stack) > 0 && stack[len(stack)-1].Rgt < n.Lft {
			stack = stack[:len(stack)-1]
		}

		if len(stack) == 0 {
			if n.ParentID != nil {
				return fmt.Errorf("%w: comment %d sits at root level but has parent %d", ErrInvariantViolation, n.ID, *n.ParentID)
			}
			if lastRoot != nil && n.CreatedAt.After(lastRoot.CreatedAt) {
				return fmt.Errorf("%w: root %d is newer than preceding root %d", ErrInvariantViolation, n.ID, lastRoot.ID)
			}
			lastRoot = n
		} else {
			top := stack[len(stack)-1]
			if n.Rgt >= top.Rgt {
				return fmt.Errorf("%w: comment %d [%d,%d] overlaps %d [%d,%d]",
					ErrInvariantViolation, n.ID, n.Lft, n.Rgt, top.ID, top.Lft, top.Rgt)
			}
			if n.ParentID == nil || *n.ParentID != top.ID {
				return fmt.Errorf("%w: comment %d nested in %d but parent is %v", ErrInvariantViolation, n.ID, top.ID, n.ParentID)
			}
			if prev := lastChild[top.ID]; prev != nil && n.CreatedAt.After(prev.CreatedAt) {
				return fmt.Errorf("%w: reply %d is newer than preceding sibling %d", ErrInvariantViolation, n.ID, prev.ID)
			}
			lastChild[top.ID] = n
		}

		if n.Depth != len(stack) {
			return fmt.Errorf("%w: comment %d has depth %d, expected %d", ErrInvariantViolation, n.ID, n.Depth, len(stack))
		}
		stack = append(stack, n)
	}

	for b := 1; b <= 2*len(nodes); b++ {
		if !seen[b] {
			return fmt.Errorf("%w: bound %d is missing", ErrInvariantViolation, b)
		}
	}
	return nil
}

func buildThreads(preorder []models.Comment) []*CommentThread {
	var roots []*CommentThread
	var stack []*CommentThread
	for i := range preorder {
		t := &CommentThread{Comment: preorder[i], Replies: []*CommentThread{}}
		for len(stack) > 0 && stack[len(stack)-1].Rgt < t.Lft {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			roots = append(roots, t)
		} else {
			parent := stack[len(stack)-1]
			parent.Replies = append(parent.Replies, t)
		}
		stack = append(stack, t)
	}
	return roots
}

func (s *CommentService) violation(postID uint, format string, args ...interface{}) error {
	err := fmt.Errorf("%w: "+format, append([]interface{}{ErrInvariantViolation}, args...)...)
	s.log.WithField("post_id", postID).WithError(err).Error("comment tree corrupted, rolling back")
	return err
}

// lockPost 锁住文章行，串行化同一棵评论树上的写操作
func lockPost(tx *gorm.DB, postID uint) (*models.Post, error) {
	var post models.Post
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		First(&post, postID).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &post, nil
}

// forestOf 返回文章已有评论的 tree_id；第一条评论时以文章 ID 作为新 tree_id
func forestOf(tx *gorm.DB, postID uint) (uint, error) {
	var existing models.Comment
	err := tx.Select("tree_id").Where("post_id = ?", postID).Take(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return postID, nil
	}
	if err != nil {
		return 0, err
	}
	return existing.TreeID, nil
}

// shift 把 tree 中所有 >= from 的左右边界平移 delta
func shift(tx *gorm.DB, treeID uint, from, delta int) error {
	if err := tx.Model(&models.Comment{}).
		Where("tree_id = ? AND lft >= ?", treeID, from).
		UpdateColumn("lft", gorm.Expr("lft + ?", delta)).Error; err != nil {
		return fmt.Errorf("shift lft: %w", err)
	}
	if err := tx.Model(&models.Comment{}).
		Where("tree_id = ? AND rgt >= ?", treeID, from).
		UpdateColumn("rgt", gorm.Expr("rgt + ?", delta)).Error; err != nil {
		return fmt.Errorf("shift rgt: %w", err)
	}
	return nil
}

func postExists(db *gorm.DB, postID uint) error {
	var n int64
	if err := db.Model(&models.Post{}).Where("id = ?", postID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
