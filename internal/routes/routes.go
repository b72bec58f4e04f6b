package routes

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/aquaspa/internal/config"
	"github.com/example/aquaspa/internal/handlers"
	"github.com/example/aquaspa/internal/middleware"
	"github.com/example/aquaspa/internal/services"
)

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config) {
	imageService := services.NewImageService(cfg.ImageAPIBase, cfg.ImageAPIKey, cfg.ImageAPISecret)
	sectionStore := services.NewSectionStore(db)
	footerService := services.NewFooterService(db, sectionStore, imageService)

	authHandler := handlers.NewAuthHandler(db, cfg)
	footerHandler := handlers.NewFooterHandler(footerService)

	authorize := middleware.AuthMiddleware(cfg)

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)

	footer := api.Group("/footer")
	footerHandler.RegisterFooterRoutes(footer, authorize)
}
