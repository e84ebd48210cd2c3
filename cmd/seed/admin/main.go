package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/trainlink/trainlink/internal/config"
	"github.com/trainlink/trainlink/internal/domain"
	"github.com/trainlink/trainlink/internal/repository"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"
)

// Bootstraps the first admin account. Idempotent: exits cleanly if the
// email is already registered.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	name := os.Getenv("ADMIN_NAME")
	if email == "" || password == "" {
		log.Fatal("ADMIN_EMAIL and ADMIN_PASSWORD are required")
	}
	if name == "" {
		name = "Administrator"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoDB.URI))
	if err != nil {
		log.Fatalf("Failed to connect to Mongo: %v", err)
	}
	defer client.Disconnect(ctx)

	db := client.Database(cfg.MongoDB.Database)
	userRepo := repository.NewMongoUserRepository(db)

	if existing, err := userRepo.GetByEmail(ctx, email); err == nil {
		log.Printf("Admin %s already exists (id %s), nothing to do", email, existing.ID)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	admin := &domain.User{
		Name:      name,
		Email:     email,
		Password:  string(hashed),
		Role:      domain.RoleAdmin,
		Validated: true,
	}
	if err := userRepo.Create(ctx, admin); err != nil {
		log.Fatalf("Failed to create admin: %v", err)
	}

	log.Printf("✓ Admin %s created (id %s)", email, admin.ID)
}
