package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/clouddisk-server/internal/auth"
	"github.com/clouddisk-server/internal/cache"
	"github.com/clouddisk-server/internal/config"
	"github.com/clouddisk-server/internal/disk"
	"github.com/clouddisk-server/internal/middleware"
	"github.com/clouddisk-server/internal/share"
	"github.com/clouddisk-server/internal/store"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Setup logger
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if cfg.Logging.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	// Open database and run migrations
	db, err := store.Open(cfg)
	if err != nil {
		logger.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.Migrate(ctx); err != nil {
		cancel()
		logger.Fatalf("Failed to run migrations: %v", err)
	}
	cancel()
	logger.Infof("Connected to %s database", cfg.Database.Type)

	// Token blacklist backend
	tokens, err := cache.New(&cfg.Cache)
	if err != nil {
		logger.Fatalf("Failed to create token store: %v", err)
	}
	defer tokens.Close()

	// Ensure storage root exists
	if err := os.MkdirAll(cfg.Storage.Root, 0o755); err != nil {
		logger.Fatalf("Failed to create storage root: %v", err)
	}

	// Initialize services
	locks := disk.NewUserLocks()
	resolver := disk.NewResolver(cfg.Storage.Root, db, db)
	diskService := disk.NewService(db, db, resolver, locks, logger)
	shareService := share.NewService(db, db, db, resolver, locks, logger)
	authService := auth.NewService(db, diskService, tokens, cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry, logger)

	// Setup Gin
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.CORSMiddleware())

	// Health check
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	// Public auth routes
	router.POST("/api/register", handleRegister(authService))
	router.POST("/api/login", handleLogin(authService))

	// Public share access
	router.GET("/api/share/:token", handleGetShare(shareService))
	router.GET("/api/share/:token/download/:file_id", handleDownloadShared(shareService))

	// Public avatar images
	router.GET("/api/avatars/*path", handleGetAvatar(authService))

	// Authenticated routes
	api := router.Group("/api")
	api.Use(middleware.AuthMiddleware(authService))
	{
		api.POST("/logout", handleLogout(authService))

		api.GET("/profile", handleGetProfile(authService, db))
		api.PUT("/profile", handleUpdateProfile(authService))
		api.POST("/profile/avatar", handleUploadAvatar(authService))

		api.POST("/upload", handleUpload(diskService, cfg.Storage.MaxUploadSize))
		api.GET("/files", handleListFiles(db))
		api.GET("/files/:id/download", handleDownload(diskService))
		api.PUT("/files/:id/move", handleMoveFile(diskService))
		api.PUT("/files/:id/rename", handleRenameFile(diskService))
		api.POST("/files/:id/share", handleShareFile(shareService))
		api.DELETE("/files/:id", handleDeleteFile(diskService))
		api.POST("/files/sync", handleSync(diskService))

		api.GET("/folders", handleListFolders(db))
		api.POST("/folders", handleCreateFolder(diskService))
		api.PUT("/folders/:id/rename", handleRenameFolder(diskService))
		api.POST("/folders/:id/share", handleShareFolder(shareService))
		api.DELETE("/folders/:id", handleDeleteFolder(diskService))

		api.POST("/share/:token/save", handleSaveShared(shareService))
	}

	// Setup HTTP server
	addr := cfg.Server.Addr()
	srv := &http.Server{
		Addr:           addr,
		Handler:        router,
		ReadTimeout:    15 * time.Minute,
		WriteTimeout:   15 * time.Minute,
		MaxHeaderBytes: 1 << 20,
	}

	// Graceful shutdown
	go func() {
		logger.Infof("Starting server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}
