package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/underleaf-dev/underleaf/db"
	"github.com/underleaf-dev/underleaf/internal/auth"
	"github.com/underleaf-dev/underleaf/internal/router"
	"github.com/underleaf-dev/underleaf/internal/scheduler"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment")
	}

	if err := auth.InitJWTSecret(); err != nil {
		log.Fatalf("Failed to initialize auth: %v", err)
	}

	dsn := os.Getenv("DATABASE_URL")

	if dsn == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	if err := db.ConnectDatabase(dsn); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.MigrateDatabase(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	if err := scheduler.Initialize(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer scheduler.Shutdown()

	sessionSecret := os.Getenv("SESSION_SECRET")

	if sessionSecret == "" {
		log.Fatal("SESSION_SECRET is not set")
	}

	r := router.NewRouter(sessionSecret)

	var port string

	if port = os.Getenv("PORT"); port == "" {
		port = "3000"
		log.Println("PORT not set, defaulting to 3000")
	}

	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
