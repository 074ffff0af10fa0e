// Command seed fills the database with demo content.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/seed"
)

func main() {
	numAuthors := flag.Int("authors", 5, "Number of fake authors to create")
	numReaders := flag.Int("readers", 20, "Number of fake readers to create")
	numPosts := flag.Int("posts", 60, "Number of posts to create")
	publishedPct := flag.Int("published", 80, "Percentage of posts that are published")
	fixturesPath := flag.String("fixtures", "", "YAML fixtures file (defaults to the embedded set)")
	randSeed := flag.Int64("seed", 0, "Random seed for reproducible data (0 = random)")
	shouldClean := flag.Bool("clean", false, "Delete existing content and accounts first")
	fast := flag.Bool("fast", true, "Use a cheap bcrypt cost for seeded passwords")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	var fixtures []byte
	if *fixturesPath != "" {
		fixtures, err = os.ReadFile(*fixturesPath)
		if err != nil {
			log.Fatalf("Failed to read fixtures: %v", err)
		}
	}

	ctx := context.Background()
	s := seed.NewSeeder(db, seed.Options{
		NumAuthors:   *numAuthors,
		NumReaders:   *numReaders,
		NumPosts:     *numPosts,
		PublishedPct: *publishedPct,
		Seed:         *randSeed,
		SkipBcrypt:   *fast,
		Fixtures:     fixtures,
	})

	if *shouldClean {
		if err := s.ClearAll(ctx); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	res, err := s.Run(ctx)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Seeded %d users, %d categories, %d tags, %d posts", res.Users, res.Categories, res.Tags, res.Posts)
	log.Printf("All seeded accounts use the password %q", seed.DefaultPassword)
}
