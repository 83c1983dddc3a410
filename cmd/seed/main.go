// Command main runs the database seeder for Prok.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"prok/internal/config"
	"prok/internal/database"
	"prok/internal/seed"

	"gorm.io/gorm"
)

func main() {
	numUsers := flag.Int("users", 25, "Number of users to create")
	numPosts := flag.Int("posts", 150, "Number of posts to create")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	dryRun := flag.Bool("dry-run", false, "Generate data without writing it")
	maxDays := flag.Int("days", 90, "Spread post timestamps over this many days")
	inactive := flag.Int("inactive", 0, "Deactivate this many of the seeded accounts")
	randomSeed := flag.Int64("seed", 0, "Random seed for reproducible data (0 = time based)")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")
	log.Printf("Target: %d users, %d posts, clean=%v, dry-run=%v\n", *numUsers, *numPosts, *shouldClean, *dryRun)

	var db *gorm.DB
	if !*dryRun {
		cfg, err := config.LoadConfig()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		db, err = database.Connect(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	s := seed.NewSeeder(db, seed.Options{
		NumUsers:    *numUsers,
		NumPosts:    *numPosts,
		ShouldClean: *shouldClean,
		DryRun:      *dryRun,
		MaxDays:     *maxDays,
		RandomSeed:  *randomSeed,
		NumInactive: *inactive,
	})
	res, err := s.Run(ctx)
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Printf("✨ All done! Created %d users and %d posts.\n", len(res.Users), len(res.Posts))
	log.Printf("📧 All test users have the password: %s\n", seed.DemoPassword)
}
