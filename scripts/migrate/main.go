package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/edulink/lms-api/pkg/config"
	"github.com/edulink/lms-api/pkg/database"
)

// Applies the database schema and optionally seeds the first admin account.
// Statements are idempotent, so the tool can run on every deploy.

var statements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		name TEXT NOT NULL,
		contact_no TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL CHECK (role IN ('ADMIN', 'TEACHER', 'STUDENT')),
		status TEXT NOT NULL CHECK (status IN ('PENDING', 'APPROVED', 'REJECTED')),
		roll_no TEXT,
		class_id UUID,
		profile_pic TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS classes (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS class_teachers (
		class_id UUID NOT NULL REFERENCES classes(id),
		teacher_id UUID NOT NULL REFERENCES users(id),
		created_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (class_id, teacher_id)
	)`,
	`CREATE TABLE IF NOT EXISTS subjects (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		class_id UUID NOT NULL REFERENCES classes(id),
		teacher_id UUID NOT NULL REFERENCES users(id),
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS materials (
		id UUID PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL CHECK (type IN ('notes', 'video', 'audio', 'document')),
		file_url TEXT NOT NULL,
		subject_id UUID NOT NULL REFERENCES subjects(id),
		created_by UUID NOT NULL REFERENCES users(id),
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS communications (
		id UUID PRIMARY KEY,
		sender_id UUID NOT NULL REFERENCES users(id),
		recipient_id UUID REFERENCES users(id),
		class_id UUID REFERENCES classes(id),
		subject_id UUID REFERENCES subjects(id),
		message TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('unread', 'read')),
		parent_id UUID REFERENCES communications(id),
		created_at TIMESTAMPTZ NOT NULL,
		CHECK (recipient_id IS NOT NULL OR class_id IS NOT NULL)
	)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id UUID PRIMARY KEY,
		user_id UUID,
		action TEXT NOT NULL,
		resource TEXT NOT NULL,
		resource_id TEXT,
		new_values JSONB,
		ip_address TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`ALTER TABLE users DROP CONSTRAINT IF EXISTS users_class_id_fkey`,
	`ALTER TABLE users ADD CONSTRAINT users_class_id_fkey FOREIGN KEY (class_id) REFERENCES classes(id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS subjects_class_name_idx ON subjects (class_id, LOWER(name))`,
	`CREATE INDEX IF NOT EXISTS users_class_status_idx ON users (class_id, status) WHERE role = 'STUDENT'`,
	`CREATE INDEX IF NOT EXISTS communications_recipient_idx ON communications (recipient_id, status)`,
	`CREATE INDEX IF NOT EXISTS communications_parent_idx ON communications (parent_id)`,
	`CREATE INDEX IF NOT EXISTS materials_subject_idx ON materials (subject_id)`,
}

func main() {
	adminEmail := flag.String("admin-email", "", "seed an admin account with this email")
	adminPassword := flag.String("admin-password", "", "password for the seeded admin")
	adminName := flag.String("admin-name", "Administrator", "display name for the seeded admin")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer db.Close()

	for i, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			log.Fatalf("statement %d failed: %v", i+1, err)
		}
	}
	fmt.Println("schema up to date")

	if *adminEmail == "" {
		return
	}
	if *adminPassword == "" {
		log.Fatal("-admin-password is required when seeding an admin")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*adminPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	now := time.Now().UTC()
	const seed = `INSERT INTO users (id, email, password_hash, name, contact_no, role, status, profile_pic, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, $3, '', 'ADMIN', 'APPROVED', '', $4, $4)
		ON CONFLICT (email) DO NOTHING`
	res, err := db.Exec(seed, *adminEmail, string(hash), *adminName, now)
	if err != nil {
		log.Fatalf("failed to seed admin: %v", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		fmt.Println("admin already exists, skipped")
		return
	}
	fmt.Printf("admin %s created\n", *adminEmail)
}
