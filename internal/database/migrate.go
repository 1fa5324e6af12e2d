package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

const migrationsDir = "migrations"

func ensureDatabase(databaseURL string, log *slog.Logger) error {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return fmt.Errorf("parse database url: %w", err)
	}
	dbName := strings.TrimPrefix(u.Path, "/")
	if dbName == "" {
		return fmt.Errorf("database name is empty in url")
	}
	u.Path = "/postgres"
	db, err := sql.Open("postgres", u.String())
	if err != nil {
		return fmt.Errorf("open admin connection: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping admin connection: %w", err)
	}
	var exists bool
	err = db.QueryRow("SELECT true FROM pg_database WHERE datname = $1", dbName).Scan(&exists)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("check database existence: %w", err)
	}
	if exists {
		return nil
	}
	if _, err = db.Exec("CREATE DATABASE " + pq.QuoteIdentifier(dbName)); err != nil {
		return fmt.Errorf("create database %q: %w", dbName, err)
	}
	log.Info("database created", slog.String("name", dbName))
	return nil
}

// MigrateUp creates the database if needed and applies every pending
// migration.
func MigrateUp(databaseURL string, log *slog.Logger) error {
	if err := ensureDatabase(databaseURL, log); err != nil {
		return fmt.Errorf("ensure database: %w", err)
	}
	return withGoose(databaseURL, func(db *sql.DB) error {
		if err := goose.Up(db, migrationsDir); err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
		v, err := goose.GetDBVersion(db)
		if err == nil {
			log.Info("migrate: up ok", slog.Int64("version", v))
		}
		return nil
	})
}

// MigrateDown rolls back the latest migration.
func MigrateDown(databaseURL string, log *slog.Logger) error {
	return withGoose(databaseURL, func(db *sql.DB) error {
		if err := goose.Down(db, migrationsDir); err != nil {
			return fmt.Errorf("migrate down: %w", err)
		}
		log.Info("migrate: down ok")
		return nil
	})
}

func withGoose(databaseURL string, fn func(db *sql.DB) error) error {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return fn(db)
}
