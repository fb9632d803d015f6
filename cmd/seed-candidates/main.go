package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/medcert/eacmc-backend/internal/config"
	"github.com/medcert/eacmc-backend/internal/database"
	"github.com/medcert/eacmc-backend/internal/logger"
	"github.com/medcert/eacmc-backend/internal/model"
	"github.com/medcert/eacmc-backend/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// Seeds test candidates for load and integration testing. Candidate
// numbers are EAC-xxxxx, all with the same password.
func main() {
	var count int
	var password string
	flag.IntVar(&count, "count", 50, "Number of candidates to seed")
	flag.StringVar(&password, "password", "candidate123", "Password for every seeded candidate")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	candidateRepo := repository.NewCandidateRepository(pool)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	fmt.Printf("=== Seeding %d Candidates ===\n", count)

	successCount := 0
	for i := 1; i <= count; i++ {
		candidate := &model.Candidate{
			CandidateNumber: fmt.Sprintf("EAC-%05d", i),
			Name:            fmt.Sprintf("Test Candidate %d", i),
			Email:           fmt.Sprintf("candidate%d@example.org", i),
			PasswordHash:    string(hash),
		}

		if err := candidateRepo.Create(ctx, candidate); err != nil {
			fmt.Printf("Error creating candidate %s: %v\n", candidate.CandidateNumber, err)
			continue
		}
		successCount++
		if i%10 == 0 {
			fmt.Printf("Created %d candidates...\n", i)
		}
	}

	fmt.Printf("\nSeed completed! Successfully added %d/%d candidates.\n", successCount, count)
}
