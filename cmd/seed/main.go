package main

import (
	"log"
	"os"

	"fieldops-notify-be/internal/model"
	"fieldops-notify-be/pkg/database"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Seeds a handful of field technicians and supervisors with stored
// preferences, for local development against a fresh database.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	color.Cyan("Seeding demo users...")

	users := []model.User{
		{
			ID:       uuid.MustParse("6f1e1c1a-0000-4000-8000-000000000001"),
			FullName: "Ana Petrova",
			Email:    "ana.petrova@example.com",
			Phone:    "+15550100001",
			Role:     "technician",
		},
		{
			ID:       uuid.MustParse("6f1e1c1a-0000-4000-8000-000000000002"),
			FullName: "Jordan Lee",
			Email:    "jordan.lee@example.com",
			Phone:    "+15550100002",
			Role:     "technician",
		},
		{
			ID:       uuid.MustParse("6f1e1c1a-0000-4000-8000-000000000003"),
			FullName: "Sam Okafor",
			Email:    "sam.okafor@example.com",
			Role:     "supervisor",
		},
	}

	for _, u := range users {
		var existing model.User
		if err := db.Where("id = ?", u.ID).First(&existing).Error; err == nil {
			color.Yellow("User %s already exists, skipping...", u.Email)
			continue
		}

		if err := db.Create(&u).Error; err != nil {
			color.Red("Error creating user %s: %v", u.Email, err)
			continue
		}
		color.Green("Created user: %s (%s)", u.FullName, u.Role)
	}

	color.Cyan("Seeding stored preferences for the first technician...")

	prefs := model.DefaultPreferences(users[0].ID)
	var existing model.NotificationPreferences
	if err := db.Where("user_id = ?", users[0].ID).First(&existing).Error; err == nil {
		color.Yellow("Preferences already stored, skipping...")
	} else if err := db.Create(prefs).Error; err != nil {
		color.Red("Error storing preferences: %v", err)
	} else {
		color.Green("Stored preferences for %s", users[0].Email)
	}

	color.Cyan("Seeding completed!")
}
