package db

import (
	"context"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	// necessary import to wire up the postgres driver
	_ "github.com/lib/pq"

	"assistbackend/db/migrations"
)

func NewConnection(databaseURL string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// RunMigrations applies the embedded migrations to the given schema.
// It uses its own single-connection pool so that search_path holds for every statement goose runs.
func RunMigrations(ctx context.Context, databaseURL, schema string) error {
	log.Printf("📋 Starting to run database migrations on schema: %s", schema)

	db, err := NewConnection(databaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, schema)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", schema, err)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf(`SET search_path TO %s`, schema)); err != nil {
		return fmt.Errorf("failed to set search path: %w", err)
	}

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db.DB, "."); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Printf("📋 Completed successfully - migrations applied")
	return nil
}
