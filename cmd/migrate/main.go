// Package main provides a CLI tool for database migrations.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	var (
		dbHost     = flag.String("db-host", getEnv("DB_HOST", "localhost"), "Database host")
		dbPort     = flag.String("db-port", getEnv("DB_PORT", "5432"), "Database port")
		dbUser     = flag.String("db-user", getEnv("DB_USER", "postgres"), "Database user")
		dbPassword = flag.String("db-password", getEnv("DB_PASSWORD", ""), "Database password")
		dbName     = flag.String("db-name", getEnv("DB_NAME", "notifyhub"), "Database name")
		dbSSLMode  = flag.String("db-sslmode", getEnv("DB_SSLMODE", "disable"), "Database SSL mode")
		migrPath   = flag.String("path", getEnv("MIGRATIONS_PATH", "migrations"), "Path to migrations directory")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <command> [args]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Database migration tool for the notification backend\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  up           Apply all pending migrations\n")
		fmt.Fprintf(os.Stderr, "  down N       Roll back N migrations\n")
		fmt.Fprintf(os.Stderr, "  version      Print current migration version\n")
		fmt.Fprintf(os.Stderr, "  force V      Set version V without running migrations\n")
		fmt.Fprintf(os.Stderr, "  drop         Drop all tables (use with extreme caution)\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		os.Exit(1)
	}

	dbURL := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		*dbUser, *dbPassword, *dbHost, *dbPort, *dbName, *dbSSLMode)

	m, err := migrate.New("file://"+*migrPath, dbURL)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	defer m.Close()

	if err := runCommand(m, args[0], args[1:]); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

// runCommand executes the specified migration command
func runCommand(m *migrate.Migrate, cmd string, args []string) error {
	switch cmd {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
		log.Println("Migrations applied")
		return nil
	case "down":
		steps := 1
		if len(args) > 0 {
			if _, err := fmt.Sscanf(args[0], "%d", &steps); err != nil {
				return fmt.Errorf("invalid number of steps: %s", args[0])
			}
		}
		if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
		log.Printf("Rolled back %d migration(s)", steps)
		return nil
	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			if errors.Is(err, migrate.ErrNilVersion) {
				log.Println("No migrations applied")
				return nil
			}
			return err
		}
		log.Printf("Version: %d (dirty: %v)", version, dirty)
		return nil
	case "force":
		if len(args) < 1 {
			return fmt.Errorf("force requires a version number")
		}
		var version int
		if _, err := fmt.Sscanf(args[0], "%d", &version); err != nil {
			return fmt.Errorf("invalid version: %s", args[0])
		}
		return m.Force(version)
	case "drop":
		return m.Drop()
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
