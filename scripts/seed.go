// Seed script for creating demo data in a Mnemo database.
// Run with: go run ./scripts/seed.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/mnemo-dev/mnemo/internal/domain"
	"github.com/mnemo-dev/mnemo/internal/store"
)

func main() {
	envFile := os.Getenv("MNEMO_ENV")
	if envFile == "" {
		envFile = ".env"
	}
	_ = godotenv.Load(envFile)

	dbPath := os.Getenv("MNEMO_DB_PATH")
	if dbPath == "" {
		dbPath = "mnemo.db"
	}

	ctx := context.Background()

	db, err := store.Open(dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	fmt.Printf("Opened database at %s\n", dbPath)

	memories := store.NewMemoryStore(db)
	relations := store.NewRelationStore(db)

	seeds := []domain.Memory{
		{
			Title:   "Never commit secrets",
			Content: "Never commit credentials or API keys; use the .env.secret sidecar.",
			Kind:    domain.KindConstitutional,
			Tier:    domain.TierConstitutional,
			Scope:   "demo",
		},
		{
			Title:          "Build command",
			Content:        "The demo project builds with make build and tests with make test.",
			Kind:           domain.KindProcedural,
			Tier:           domain.TierImportant,
			Scope:          "demo",
			TriggerPhrases: []string{"build", "make"},
		},
		{
			Title:          "User prefers table-driven tests",
			Content:        "The user prefers table-driven tests for all new Go code.",
			Kind:           domain.KindSemantic,
			Tier:           domain.TierNormal,
			Scope:          "demo",
			TriggerPhrases: []string{"tests", "style"},
		},
		{
			Title:     "Fixed flaky websocket test",
			Content:   "The websocket reconnect test was flaky because of a missing read deadline.",
			Kind:      domain.KindEpisodic,
			Tier:      domain.TierNormal,
			Scope:     "demo",
			CreatedAt: time.Now().Add(-20 * 24 * time.Hour),
		},
		{
			Title:   "Scratch note",
			Content: "Temporary note from today's debugging session.",
			Kind:    domain.KindTemporary,
			Tier:    domain.TierTemporary,
			Scope:   "demo",
		},
	}

	for i := range seeds {
		if err := memories.Create(ctx, &seeds[i]); err != nil {
			log.Fatalf("Failed to create memory %q: %v", seeds[i].Title, err)
		}
		fmt.Printf("Created %-9s %s\n", seeds[i].Kind, seeds[i].Title)
	}

	// Relate the test-style preference to the flaky-test episode.
	if err := relations.Link(ctx, seeds[2].ID, seeds[3].ID); err != nil {
		log.Fatalf("Failed to link memories: %v", err)
	}

	stats, err := memories.Stats(ctx)
	if err != nil {
		log.Fatalf("Failed to read stats: %v", err)
	}
	fmt.Printf("\nSeed complete: %d memories\n", stats.Total)
}
