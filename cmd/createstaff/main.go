// Command createstaff creates a staff account, or promotes an existing one.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/jcob-sikorski/mech-mashup/internal/config"
	"github.com/jcob-sikorski/mech-mashup/internal/database"
	"github.com/jcob-sikorski/mech-mashup/internal/repositories"
	"github.com/jcob-sikorski/mech-mashup/internal/services"
)

// readPassword is swapped out in tests so they never touch the terminal.
var readPassword = term.ReadPassword

type options struct {
	username string
	email    string
	password string
	promote  bool
}

func main() {
	var opts options
	configPath := flag.String("config", "", "path to a YAML config file (defaults to CONFIG_PATH)")
	flag.StringVar(&opts.username, "username", "", "username of the staff account (required)")
	flag.StringVar(&opts.email, "email", "", "email address")
	flag.StringVar(&opts.password, "password", "", "password; prompted for when omitted")
	flag.BoolVar(&opts.promote, "promote", false, "grant staff status to an existing account instead of creating one")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found")
	}

	dbCfg, err := config.LoadDatabaseConfig(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load database configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := database.ConnectDB(ctx, *dbCfg)
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, db); err != nil {
		logrus.Fatalf("Failed to run migrations: %v", err)
	}

	userService := services.NewUserService(repositories.NewPostgresAccountRepository(db))
	if err := run(ctx, opts, userService, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "createstaff:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, users services.UserService, w io.Writer) error {
	if opts.username == "" {
		return errors.New("-username is required")
	}

	if opts.promote {
		account, err := users.PromoteStaff(ctx, opts.username)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Account %q (id %d) is now staff.\n", account.Username, account.ID)
		return nil
	}

	password := opts.password
	if password == "" {
		var err error
		if password, err = promptPassword(w); err != nil {
			return err
		}
	}

	account, err := users.CreateStaff(ctx, opts.username, opts.email, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Staff account %q created with id %d.\n", account.Username, account.ID)
	return nil
}

func promptPassword(w io.Writer) (string, error) {
	fmt.Fprint(w, "Password: ")
	first, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	fmt.Fprint(w, "Password (again): ")
	second, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}
