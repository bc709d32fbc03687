package main

import (
	"quill/internal/config"
	"quill/internal/db"
	"quill/internal/handlers"
	"quill/internal/logger"
	"quill/internal/middleware"
	"quill/internal/router"
	"quill/internal/services"
	"quill/internal/slug"
	"quill/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	gin.SetMode(cfg.GinMode)

	database, err := db.Open(cfg.DatabaseURL, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}

	slugs := slug.NewGenerator(cfg.SlugAttempts, log)
	profiles := services.NewProfileService(database, slugs)
	authService := services.NewAuthService(database, profiles, log)

	cache, err := utils.NewCache(cfg.CacheSize, cfg.CacheTTL)
	if err != nil {
		log.WithError(err).Fatal("Failed to create cache")
	}

	deps := &handlers.Deps{
		Auth:       authService,
		Posts:      services.NewPostService(database, slugs, log),
		Categories: services.NewCategoryService(database, slugs),
		Profiles:   profiles,
		Comments:   services.NewCommentService(database, log),
		Ratings:    services.NewRatingService(database),
		Cache:      cache,
		Log:        log,
		PageSize:   cfg.PageSize,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(log))

	if cfg.SessionSecret == "secret_key_change_me" {
		log.Warn("SESSION_SECRET is not set, using the insecure default")
	}
	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{Path: "/", MaxAge: 86400 * 30, HttpOnly: true})
	r.Use(sessions.Sessions("quill_session", store))
	r.Use(middleware.LoadUser(authService))

	router.RegisterRoutes(r, deps)

	log.WithField("port", cfg.Port).Info("Server starting")
	if err := r.Run(":" + cfg.Port); err != nil {
		log.WithError(err).Fatal("Server stopped")
	}
}
