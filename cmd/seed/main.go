// seed inserts the role catalog and a bootstrap SUPER_ADMIN account for
// local development and first deployment. Idempotent: roles upsert by name
// and the admin insert is skipped when the identifier already exists.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"citizen-services/auth-service/internal/config"
	"citizen-services/auth-service/internal/db"
	"citizen-services/auth-service/internal/platform/rbac"
	"citizen-services/auth-service/internal/security"
	userdomain "citizen-services/auth-service/internal/user/domain"
	userrepo "citizen-services/auth-service/internal/user/repository"
)

const (
	adminIdentifier = "0000000000"
	adminDOB        = "1970-01-01"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	adminPassword := os.Getenv("SEED_ADMIN_PASSWORD")
	if adminPassword == "" {
		log.Fatal("SEED_ADMIN_PASSWORD is required to create the bootstrap admin")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()

	// Role catalog from the closed RBAC enumeration.
	for _, role := range rbac.Hierarchy {
		perms := rbac.Permissions(role)
		_, err := conn.ExecContext(ctx, `
			INSERT INTO roles (id, name, permissions)
			VALUES ($1, $2, $3::text[])
			ON CONFLICT (name) DO UPDATE SET permissions = EXCLUDED.permissions`,
			uuid.NewString(), string(role), pgTextArray(perms))
		if err != nil {
			log.Fatalf("seed role %s: %v", role, err)
		}
	}
	log.Printf("seeded %d roles", len(rbac.Hierarchy))

	users := userrepo.NewPostgresRepository(conn)
	existing, err := users.FindActiveByIdentifier(ctx, adminIdentifier)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Println("bootstrap admin already exists, skipping")
		return
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	hash, err := hasher.Hash([]byte(adminPassword))
	if err != nil {
		log.Fatalf("hash: %v", err)
	}
	dob, err := time.Parse("2006-01-02", adminDOB)
	if err != nil {
		log.Fatalf("dob: %v", err)
	}

	now := time.Now().UTC()
	admin := &userdomain.User{
		ID:             uuid.NewString(),
		Identifier:     adminIdentifier,
		IdentifierType: "nid",
		PasswordHash:   hash,
		DateOfBirth:    dob,
		Status:         userdomain.StatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := users.Create(ctx, admin); err != nil {
		log.Fatalf("create admin: %v", err)
	}
	if err := users.AssignRole(ctx, admin.ID, string(rbac.RoleSuperAdmin)); err != nil {
		log.Fatalf("assign role: %v", err)
	}
	log.Printf("bootstrap admin created (identifier %s)", adminIdentifier)
}

// pgTextArray renders a Postgres text[] literal. Permission strings are from
// the closed RBAC table and contain no quotes or backslashes.
func pgTextArray(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return "{" + strings.Join(quoted, ",") + "}"
}
