package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/zhaobenny/voltbill/cli/internal/config"
	"github.com/zhaobenny/voltbill/internal/accounts"
	"github.com/zhaobenny/voltbill/internal/auth"
	"github.com/zhaobenny/voltbill/internal/database"
	"golang.org/x/time/rate"
)

const maxLoginAttempts = 3

var stdin = bufio.NewReader(os.Stdin)

// prompt reads one line from stdin
func prompt(label string) string {
	fmt.Fprint(os.Stderr, label)
	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return ""
	}
	return strings.TrimRight(line, "\r\n")
}

// validateCredentials rejects values the credential log cannot hold
func validateCredentials(username, password string) error {
	if strings.ContainsAny(username, ":\r\n") {
		return errors.New("username may not contain ':' or line breaks")
	}
	if strings.ContainsAny(password, "\r\n") {
		return errors.New("password may not contain line breaks")
	}
	return nil
}

func runRegister(args []string) {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	var username, password string
	fs.StringVar(&username, "username", "", "Account name (case-sensitive)")
	fs.StringVar(&password, "password", "", "Password (prompted when omitted)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: voltbill register --username <name> [--password <password>]

Options:
`)
		fs.PrintDefaults()
	}
	fs.Parse(args)

	username = strings.TrimSpace(username)
	if username == "" {
		fs.Usage()
		os.Exit(1)
	}
	if password == "" {
		password = prompt("Password: ")
		if confirm := prompt("Confirm password: "); confirm != password {
			fail("passwords do not match")
		}
	}
	if password == "" {
		fail("password is required")
	}
	if err := validateCredentials(username, password); err != nil {
		fail("%v", err)
	}

	a := newApp()
	store, closeStore := a.openAccounts(true)
	defer closeStore()

	ok, err := store.Register(username, password)
	if err != nil && !errors.Is(err, accounts.ErrSave) {
		// Only the random source or key derivation can get here
		a.log.WithError(err).Fatal("failed to hash password")
	}
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: username %q is already taken\n", username)
		closeStore()
		os.Exit(1)
	}
	if err != nil {
		a.log.WithError(err).Warn("account created but not yet saved")
	}
	fmt.Printf("Account %s created.\n", username)
}

func runLogin(args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	var username, password string
	fs.StringVar(&username, "username", "", "Account name")
	fs.StringVar(&password, "password", "", "Password (prompted when omitted)")
	fs.Parse(args)

	if username == "" {
		username = strings.TrimSpace(prompt("Username: "))
	}
	if username == "" {
		fail("username is required")
	}

	a := newApp()
	store, closeStore := a.openAccounts(false)
	defer closeStore()

	// The throttle lives only as long as this process. It spaces the password
	// prompts of a single login run and does not limit separate runs.
	throttle := accounts.NewThrottle(rate.Every(time.Second), 1)
	attempts := maxLoginAttempts
	if password != "" {
		attempts = 1
	}

	authenticated := false
	for i := 0; i < attempts && !authenticated; i++ {
		if err := throttle.Wait(context.Background(), username); err != nil {
			fail("%v", err)
		}
		pw := password
		if pw == "" {
			pw = prompt("Password: ")
		}
		authenticated = store.Authenticate(username, pw)
		if !authenticated {
			a.log.WithField("username", username).Info("login failed")
			fmt.Fprintln(os.Stderr, "Invalid username or password.")
		}
	}
	if !authenticated {
		os.Exit(1)
	}

	sessions, closeSessions := a.openSessions()
	defer closeSessions()

	if a.cfg.SessionToken != "" {
		if err := sessions.End(a.cfg.SessionToken); err != nil {
			a.log.WithError(err).Debug("previous session not ended")
		}
	}

	token, expiry, err := sessions.Start(username)
	if err != nil {
		fail("%v", err)
	}
	a.cfg.SessionToken = token
	if err := config.Save(a.cfg); err != nil {
		fail("saving session: %v", err)
	}

	fmt.Printf("Logged in as %s until %s.\n", username, expiry.Local().Format("2006-01-02 15:04"))
}

func runLogout(args []string) {
	fs := flag.NewFlagSet("logout", flag.ExitOnError)
	fs.Parse(args)

	a := newApp()
	if a.cfg.SessionToken == "" {
		fmt.Println("Not logged in.")
		return
	}

	sessions, closeSessions := a.openSessions()
	defer closeSessions()
	if err := sessions.End(a.cfg.SessionToken); err != nil {
		a.log.WithError(err).Warn("failed to end session")
	}

	a.cfg.SessionToken = ""
	if err := config.Save(a.cfg); err != nil {
		fail("saving config: %v", err)
	}
	fmt.Println("Logged out.")
}

func runWhoami(args []string) {
	fs := flag.NewFlagSet("whoami", flag.ExitOnError)
	var checkMirror bool
	fs.BoolVar(&checkMirror, "mirror", false, "Also report whether the account is in the mirror database")
	fs.Parse(args)

	a := newApp()
	username := a.currentUser()
	fmt.Println(username)
	if !checkMirror {
		return
	}
	if a.cfg.Mirror.Driver == "" {
		fmt.Println("Mirror: disabled")
		return
	}

	db, err := database.Open(a.cfg.Mirror.Driver, a.cfg.Mirror.DSN)
	if err != nil {
		fail("%v", err)
	}
	defer db.Close()
	status, err := mirrorStatus(db, username)
	if err != nil {
		db.Close()
		fail("%v", err)
	}
	fmt.Printf("Mirror: %s\n", status)
}

// mirrorStatus describes how username is held in the mirror
func mirrorStatus(db *database.DB, username string) (string, error) {
	if err := db.Migrate(); err != nil {
		return "", err
	}
	value, err := db.GetCredential(username)
	if err != nil {
		return "", err
	}
	switch {
	case value == "":
		return "not mirrored", nil
	case accounts.IsHashed(value):
		return "mirrored", nil
	default:
		return "mirrored with a plaintext password, run 'voltbill migrate'", nil
	}
}

func runMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	var driver, dsn string
	fs.StringVar(&driver, "driver", "", "Mirror driver: sqlite3 or postgres (default from config)")
	fs.StringVar(&dsn, "dsn", "", "Mirror data source name (default from config)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: voltbill migrate [options]

Copies every account from the credential log into the users table of the
mirror database. Plaintext passwords are hashed on the way.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  voltbill migrate --driver sqlite3 --dsn ./mirror.db
  voltbill migrate --driver postgres --dsn "postgres://billing@localhost/billing?sslmode=disable"
`)
	}
	fs.Parse(args)

	a := newApp()
	if driver == "" {
		driver = a.cfg.Mirror.Driver
	}
	if dsn == "" {
		dsn = a.cfg.Mirror.DSN
	}
	if driver == "" || dsn == "" {
		fail("no mirror configured. Pass --driver and --dsn or run 'voltbill config --mirror-driver ... --mirror-dsn ...'")
	}

	store, closeStore := a.openAccounts(false)
	defer closeStore()

	db, err := database.Open(driver, dsn)
	if err != nil {
		fail("%v", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		fail("%v", err)
	}

	n, err := database.MigrateCredentials(db, store.Entries(), auth.DefaultHasher)
	if err != nil {
		fail("%v", err)
	}
	a.log.WithField("records", n).Info("migration complete")
	fmt.Printf("Migration complete. Records upserted: %d\n", n)
}

func runConfig(args []string) {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	var (
		dataDir      string
		mirrorDriver string
		mirrorDSN    string
		logLevel     string
		lifetime     string
		show         bool
	)
	fs.StringVar(&dataDir, "data-dir", "", "Directory holding the data files")
	fs.StringVar(&mirrorDriver, "mirror-driver", "", "Credential mirror driver: sqlite3, postgres or none")
	fs.StringVar(&mirrorDSN, "mirror-dsn", "", "Credential mirror data source name")
	fs.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.StringVar(&lifetime, "session-lifetime", "", "How long a login lasts (e.g. 12h)")
	fs.BoolVar(&show, "show", false, "Show current configuration")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: voltbill config [options]

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  voltbill config --data-dir /var/lib/voltbill
  voltbill config --mirror-driver sqlite3 --mirror-dsn /var/lib/voltbill/mirror.db
  voltbill config --show
`)
	}

	fs.Parse(args)

	cfg, err := config.Load()
	if err != nil {
		fail("loading config: %v", err)
	}

	if show {
		dir, _ := cfg.Dir()
		accountsPath, _ := cfg.AccountsPath()
		billsPath, _ := cfg.BillsPath()
		statePath, _ := cfg.StatePath()
		fmt.Printf("Data directory: %s\n", dir)
		fmt.Printf("Accounts file: %s\n", accountsPath)
		fmt.Printf("Bills file: %s\n", billsPath)
		fmt.Printf("State database: %s\n", statePath)
		fmt.Printf("Log level: %s\n", cfg.Level())
		fmt.Printf("Session lifetime: %s\n", cfg.Lifetime())
		if cfg.Mirror.Driver != "" {
			fmt.Printf("Mirror: %s\n", cfg.Mirror.Driver)
		} else {
			fmt.Println("Mirror: disabled")
		}
		return
	}

	if dataDir == "" && mirrorDriver == "" && mirrorDSN == "" && logLevel == "" && lifetime == "" {
		fs.Usage()
		return
	}

	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	switch mirrorDriver {
	case "":
	case "none":
		cfg.Mirror = config.Mirror{}
	case database.DriverSQLite, database.DriverPostgres:
		cfg.Mirror.Driver = mirrorDriver
	default:
		fail("unsupported mirror driver %q", mirrorDriver)
	}
	if mirrorDSN != "" {
		cfg.Mirror.DSN = mirrorDSN
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if lifetime != "" {
		if _, err := time.ParseDuration(lifetime); err != nil {
			fail("invalid session lifetime %q", lifetime)
		}
		cfg.SessionLifetime = lifetime
	}

	if err := config.Save(cfg); err != nil {
		fail("saving config: %v", err)
	}
	fmt.Println("Configuration saved.")
}
