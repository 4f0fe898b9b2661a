package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/wednesdev-id/semindo-grow-hub-sub004/internal/config"
)

const versionTimeFormat = "20060102150405"

const migrationDir = "migrations"

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{Use: "migrate"}
	rootCmd.AddCommand(
		createMigrationCommand(),
		upCommand(),
		downCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}

func createMigrationCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create [name]",
		Short: "create sql migration pair",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			version := time.Now().Format(versionTimeFormat)
			up := fmt.Sprintf("%s/%s_%s.up.sql", migrationDir, version, args[0])
			down := fmt.Sprintf("%s/%s_%s.down.sql", migrationDir, version, args[0])

			if err := os.WriteFile(up, []byte{}, 0644); err != nil {
				panic(err)
			}
			if err := os.WriteFile(down, []byte{}, 0644); err != nil {
				panic(err)
			}

			fmt.Println("Created SQL up script:", up)
			fmt.Println("Created SQL down script:", down)
		},
	}
}

func upCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "migrate all the way up",
		Run: func(cmd *cobra.Command, args []string) {
			m := mustMigrator()
			err := m.Up()
			if err == migrate.ErrNoChange {
				fmt.Println("No change in migration")
				return
			}
			if err != nil {
				panic(err)
			}
			fmt.Println("Migrated up")
		},
	}
}

func downCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "roll back one step",
		Run: func(cmd *cobra.Command, args []string) {
			m := mustMigrator()
			err := m.Steps(-1)
			if err == migrate.ErrNoChange {
				fmt.Println("No change in migration")
				return
			}
			if err != nil {
				panic(err)
			}
			fmt.Println("Rolled back one step")
		},
	}
}

func mustMigrator() *migrate.Migrate {
	cfg := config.Load()
	m, err := migrate.New(
		fmt.Sprintf("file://%s", migrationDir),
		pgx5URL(cfg.PostgresDSN),
	)
	if err != nil {
		panic(err)
	}
	return m
}

// pgx5URL menyesuaikan scheme DSN dengan registrasi driver pgx/v5.
func pgx5URL(dsn string) string {
	if rest, ok := strings.CutPrefix(dsn, "postgres://"); ok {
		return "pgx5://" + rest
	}
	return dsn
}
