package models

import (
	"time"
)

// Comment 评论节点。层级关系由嵌套集合 (tree_id, lft, rgt, depth) 表示，
// ParentID 只用于记录直接父节点。
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;index" json:"post_id"`
	Post      Post      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	AuthorID  uint      `gorm:"not null;index" json:"author_id"`
	Author    User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Status    Status    `gorm:"size:10;default:'published';not null" json:"status"`
	ParentID  *uint     `gorm:"index" json:"parent_id"` // nil for root comments
	Parent    *Comment  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	TreeID    uint      `gorm:"not null;index:idx_comment_tree,priority:1" json:"tree_id"`
	Lft       int       `gorm:"not null;index:idx_comment_tree,priority:2" json:"lft"`
	Rgt       int       `gorm:"not null" json:"rgt"`
	Depth     int       `gorm:"not null;default:0" json:"depth"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsRoot 没有父节点的评论
func (c *Comment) IsRoot() bool {
	return c.ParentID == nil
}

// Width 节点区间宽度，等于 2 * 子树节点数
func (c *Comment) Width() int {
	return c.Rgt - c.Lft + 1
}

// Contains 判断 other 是否位于当前节点的子树中（不含自身）
func (c *Comment) Contains(other *Comment) bool {
	return c.TreeID == other.TreeID && c.Lft < other.Lft && other.Rgt < c.Rgt
}
