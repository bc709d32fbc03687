package router

import (
	"quill/internal/handlers"
	"quill/internal/middleware"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, d *handlers.Deps) {
	authHandler := handlers.NewAuthHandler(d)
	postHandler := handlers.NewPostHandler(d)
	commentHandler := handlers.NewCommentHandler(d)
	categoryHandler := handlers.NewCategoryHandler(d)
	profileHandler := handlers.NewProfileHandler(d)
	ratingHandler := handlers.NewRatingHandler(d)

	// 公共路由
	r.POST("/signup", authHandler.Register)
	r.POST("/login", authHandler.Login)
	r.GET("/logout", authHandler.Logout)

	r.GET("/posts", postHandler.List)                      // 已发布文章列表
	r.GET("/posts/:slug", postHandler.Detail)              // 文章详情（含评论树）
	r.GET("/search", postHandler.Search)                   // 搜索
	r.GET("/categories", categoryHandler.List)             // 所有分类
	r.GET("/categories/:slug", categoryHandler.Detail)     // 分类下的文章
	r.GET("/profiles/:slug", profileHandler.Show)          // 用户主页
	r.GET("/posts/:slug/comments", commentHandler.List)    // ?view=flat|tree
	r.GET("/comments/:id/subtree", commentHandler.Subtree) // 子树

	// 受保护路由
	authorized := r.Group("/")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.GET("/me", authHandler.Me)
		authorized.GET("/me/posts", postHandler.Mine)

		authorized.POST("/posts", postHandler.Create)
		authorized.PUT("/posts/:slug", postHandler.Update)
		authorized.DELETE("/posts/:slug", postHandler.Delete)

		authorized.POST("/categories", categoryHandler.Create)
		authorized.PUT("/profile", profileHandler.Update)

		authorized.POST("/posts/:slug/comments", commentHandler.Create)
		authorized.DELETE("/comments/:id", commentHandler.Delete)

		authorized.POST("/posts/:slug/rating", ratingHandler.Rate)
	}
}
