package main

import (
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/bspcp/membership-backend/internal/config"
	"github.com/bspcp/membership-backend/internal/database"
	"github.com/bspcp/membership-backend/internal/models"
	"github.com/bspcp/membership-backend/pkg/validator"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	email := flag.String("email", "", "admin email address")
	name := flag.String("name", "", "admin full name")
	password := flag.String("password", "", "initial password")
	flag.Parse()

	if *email == "" || *name == "" || *password == "" {
		log.Fatal("Usage: createadmin -email admin@bspcp.org.bw -name \"Full Name\" -password <password>")
	}

	if err := validator.NewPasswordValidator().Validate(*password); err != nil {
		log.Fatalf("Password rejected: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	repo := database.NewAdminUserRepository(db)

	if _, err := repo.GetByEmail(*email); err == nil {
		log.Fatalf("An admin with email %s already exists", *email)
	} else if err != database.ErrNotFound {
		log.Fatalf("Failed to check existing admin: %v", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), cfg.Security.BcryptCost)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	admin := &models.AdminUser{
		Email:        strings.ToLower(strings.TrimSpace(*email)),
		PasswordHash: string(hash),
		FullName:     *name,
		IsActive:     true,
	}
	if err := repo.Create(admin); err != nil {
		log.Fatalf("Failed to create admin: %v", err)
	}

	fmt.Println("Admin account created")
	fmt.Printf("  ID:    %s\n", admin.ID)
	fmt.Printf("  Email: %s\n", admin.Email)
	fmt.Printf("  Name:  %s\n", admin.FullName)
}
