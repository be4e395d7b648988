package main

import (
	"fmt"
	"log"

	"deadliner/internal/auth"
	"deadliner/internal/canvas"
	"deadliner/internal/database"
	"deadliner/internal/handlers"
	"deadliner/internal/jobs"
	"deadliner/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize database
	if err := database.InitDB(); err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	db := database.GetDB()

	// Initialize the delayed job runner
	runner, err := jobs.NewMachineryRunner()
	if err != nil {
		log.Fatal("Failed to initialize job runner:", err)
	}

	reminderService := services.NewReminderService(db, runner)
	canvasClient := canvas.NewClient()
	handler := handlers.New(db, reminderService, canvasClient)

	// Initialize Gin router
	router := gin.Default()

	// Configure trusted proxies
	router.SetTrustedProxies([]string{"127.0.0.1"})

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost", "http://localhost:8080", "http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	// Basic routes
	router.GET("/", handler.HomeHandler)
	router.GET("/health", handler.HealthHandler)

	// Auth routes (no auth required)
	router.POST("/accounts", handler.CreateAccount)
	router.POST("/auth/login", handler.Login)
	router.POST("/auth/refresh", handler.RefreshToken)

	// Protected routes (auth required)
	protected := router.Group("")
	protected.Use(auth.AuthMiddleware())
	{
		protected.POST("/auth/logout", handler.Logout)
		protected.GET("/auth/me", handler.GetCurrentUser)

		protected.POST("/save/token", handler.SaveToken)
		protected.GET("/upcoming/assignments", handler.UpcomingAssignments)
		protected.GET("/active/reminders", handler.ActiveReminders)
		protected.POST("/schedule/notification", handler.ScheduleNotification)
		protected.DELETE("/delete/reminder", handler.DeleteReminder)
	}

	// Start the server
	fmt.Println("Server starting on port 8080...")
	if err := router.Run(":8080"); err != nil {
		log.Fatal(err)
	}
}
