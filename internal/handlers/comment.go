package handlers

import (
	"net/http"

	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/services"
	"quill/internal/utils"

	"github.com/gin-gonic/gin"
)

type CommentHandler struct {
	*Deps
}

func NewCommentHandler(d *Deps) *CommentHandler {
	return &CommentHandler{Deps: d}
}

type commentRequest struct {
	Content  string        `json:"content" binding:"required"`
	ParentID *uint         `json:"parent_id"`
	Status   models.Status `json:"status" binding:"omitempty,oneof=published draft"`
}

// CommentView 评论及其渲染后的 HTML
type CommentView struct {
	models.Comment
	ContentHTML string         `json:"content_html"`
	Replies     []*CommentView `json:"replies,omitempty"`
}

func renderComment(c models.Comment) *CommentView {
	v := &CommentView{Comment: c}
	// 草稿只保留结构，不输出内容
	if c.Status == models.StatusPublished {
		v.ContentHTML = utils.RenderMarkdown(c.Content)
	} else {
		v.Content = ""
	}
	return v
}

func renderComments(comments []models.Comment) []*CommentView {
	views := make([]*CommentView, len(comments))
	for i := range comments {
		views[i] = renderComment(comments[i])
	}
	return views
}

func renderThreads(threads []*services.CommentThread) []*CommentView {
	views := make([]*CommentView, 0, len(threads))
	for _, t := range threads {
		v := renderComment(t.Comment)
		v.Replies = renderThreads(t.Replies)
		views = append(views, v)
	}
	return views
}

// List ?view=tree 返回嵌套结构，默认返回按时间倒序的平铺列表
func (h *CommentHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	post, err := h.Posts.Get(ctx, c.Param("slug"), currentUserID(c))
	if err != nil {
		RenderError(c, h.Log, err)
		return
	}

	if c.Query("view") == "tree" {
		threads, err := h.Comments.Forest(ctx, post.ID)
		if err != nil {
			RenderError(c, h.Log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"view": "tree", "comments": renderThreads(threads)})
		return
	}

	comments, err := h.Comments.FlatList(ctx, post.ID)
	if err != nil {
		RenderError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"view": "flat", "comments": renderComments(comments)})
}

// Subtree 节点及其全部回复，先序排列
func (h *CommentHandler) Subtree(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	comment, err := h.Comments.Get(ctx, id)
	if err != nil {
		RenderError(c, h.Log, err)
		return
	}
	// 与文章详情相同的可见性：别人的草稿当作不存在
	postSlug, _, err := h.Posts.Owner(ctx, comment.PostID)
	if err != nil {
		RenderError(c, h.Log, err)
		return
	}
	if _, err := h.Posts.Get(ctx, postSlug, currentUserID(c)); err != nil {
		RenderError(c, h.Log, err)
		return
	}

	nodes, err := h.Comments.Subtree(ctx, id)
	if err != nil {
		RenderError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": renderComments(nodes)})
}

func (h *CommentHandler) Create(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	user := middleware.CurrentUser(c)
	post, err := h.Posts.Get(ctx, c.Param("slug"), user.ID)
	if err != nil {
		RenderError(c, h.Log, err)
		return
	}

	comment, err := h.Comments.Insert(ctx, services.InsertCommentInput{
		PostID:   post.ID,
		AuthorID: user.ID,
		Content:  req.Content,
		ParentID: req.ParentID,
		Status:   req.Status,
	})
	if err != nil {
		RenderError(c, h.Log, err)
		return
	}

	// 主动失效详情页缓存
	h.Cache.Delete(detailCacheKey(post.Slug))

	comment.Author = *user
	c.JSON(http.StatusCreated, renderComment(*comment))
}

// Delete 评论作者或文章作者可以删除，回复一并删除
func (h *CommentHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	user := middleware.CurrentUser(c)
	comment, err := h.Comments.Get(ctx, id)
	if err != nil {
		RenderError(c, h.Log, err)
		return
	}
	postSlug, postAuthorID, err := h.Posts.Owner(ctx, comment.PostID)
	if err != nil {
		RenderError(c, h.Log, err)
		return
	}
	if comment.AuthorID != user.ID && postAuthorID != user.ID {
		RenderError(c, h.Log, services.ErrForbidden)
		return
	}

	removed, err := h.Comments.Delete(ctx, id)
	if err != nil {
		RenderError(c, h.Log, err)
		return
	}

	h.Cache.Delete(detailCacheKey(postSlug))
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}
