package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"bookexchange/api"
	"bookexchange/config"
	"bookexchange/db"
	"bookexchange/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Book Exchange API
// @version         1.0.0

// @description     REST backend for a peer-to-peer book exchange. Owners list
// @description     books and upload cover images; Seekers browse and filter
// @description     listings. State lives in a single JSON file that is rewritten
// @description     after every mutation.
// @description
// @description     There is no real authentication: login returns a mock token,
// @description     and the mutating book endpoints identify the caller through
// @description     the unverified x-user-id header.

// @host      localhost:3001
// @BasePath  /
func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("CRITICAL: Failed to load configuration: %v", err)
	}

	// The uploads directory must exist before the first cover arrives.
	if err := os.MkdirAll(cfg.UploadsDir, 0755); err != nil {
		log.Fatalf("CRITICAL: Failed to create uploads directory '%s': %v", cfg.UploadsDir, err)
	}

	// --- Database ---
	database, err := db.NewDatabase(cfg)
	if err != nil {
		log.Fatalf("CRITICAL: Failed to initialize database: %v", err)
	}

	// --- Gin Router Setup ---
	router := gin.Default()

	// Open CORS, matching a frontend served from a different origin.
	router.Use(cors.Default())

	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Book Exchange Backend API is running!")
	})

	// User Routes
	userGroup := router.Group("/api/users")
	{
		// POST /api/users/register
		userGroup.POST("/register", func(c *gin.Context) {
			api.RegisterHandler(c, database, cfg)
		})
		// POST /api/users/login
		userGroup.POST("/login", func(c *gin.Context) {
			api.LoginHandler(c, database, cfg)
		})
	}

	// Book Routes. The identity middleware only extracts the x-user-id
	// header; each handler enforces its own ownership rules.
	bookGroup := router.Group("/api/books")
	bookGroup.Use(utils.IdentityMiddleware())
	{
		// GET /api/books
		bookGroup.GET("", func(c *gin.Context) {
			api.ListBooksHandler(c, database, cfg)
		})
		// POST /api/books
		bookGroup.POST("", func(c *gin.Context) {
			api.CreateBookHandler(c, database, cfg)
		})
		// GET /api/books/{id}
		bookGroup.GET("/:id", func(c *gin.Context) {
			api.GetBookHandler(c, database, cfg)
		})
		// PUT /api/books/{id}
		bookGroup.PUT("/:id", func(c *gin.Context) {
			api.UpdateBookHandler(c, database, cfg)
		})
		// PATCH /api/books/{id}/status
		bookGroup.PATCH("/:id/status", func(c *gin.Context) {
			api.UpdateBookStatusHandler(c, database, cfg)
		})
		// DELETE /api/books/{id}
		bookGroup.DELETE("/:id", func(c *gin.Context) {
			api.DeleteBookHandler(c, database, cfg)
		})
		// POST /api/books/{id}/cover
		bookGroup.POST("/:id/cover", func(c *gin.Context) {
			api.UploadCoverHandler(c, database, cfg)
		})
	}

	// Stored cover images are served straight from the uploads directory.
	router.Static("/uploads", cfg.UploadsDir)

	// --- Swagger Route ---
	// Serve the static swagger.json from the docs directory and point the UI at it.
	router.StaticFS("/docs", http.Dir("docs"))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/docs/swagger.json")))

	// --- Start Server ---
	listenAddr := fmt.Sprintf("%s:%s", cfg.ListenAddress, cfg.ListenPort)
	log.Printf("INFO: Starting server on %s", listenAddr)

	server := &http.Server{
		Addr:    listenAddr,
		Handler: router,
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("CRITICAL: Server failed to start: %v", err)
	}
}
