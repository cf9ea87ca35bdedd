// Command add-user creates or replaces an account in the SQLite identity
// store. The password is read from the terminal without echo.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"

	"spendboard/internal/auth"
	"spendboard/internal/cli"
	"spendboard/internal/config"
	"spendboard/internal/storage"
)

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()

	dbPath := flag.String("db", cfg.SQLiteDBPath, "path to the SQLite identity store")
	username := flag.String("username", "", "account name (prompted when empty)")
	flag.Parse()

	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat)

	if *username == "" {
		name, err := cli.ReadLine(bufio.NewReader(os.Stdin), os.Stderr, "Username: ")
		if err != nil {
			fmt.Fprintln(os.Stderr, "read username:", err)
			os.Exit(1)
		}
		*username = name
	}
	password, err := cli.ReadNewPassword(os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(*dbPath)
	if err != nil {
		logger.Error("Failed to open identity store", "path", *dbPath, "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	svc := auth.NewService(repo, 0, logger)
	if err := svc.Register(context.Background(), *username, password); err != nil {
		logger.Error("Failed to add user", "username", *username, "error", err)
		repo.Close()
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "User %q saved to %s\n", *username, *dbPath)
}
