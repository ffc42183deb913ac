package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/zhaobenny/voltbill/cli/internal/config"
	"github.com/zhaobenny/voltbill/internal/accounts"
	"github.com/zhaobenny/voltbill/internal/auth"
	"github.com/zhaobenny/voltbill/internal/bills"
	"github.com/zhaobenny/voltbill/internal/database"
)

const version = "1.0.0"

func usage() {
	fmt.Fprintf(os.Stderr, `voltbill - tiered electricity billing

Usage: voltbill <command> [options]

Commands:
  calc       Show the bill for a number of units without recording it
  register   Create an account
  login      Log in and keep the session for later commands
  logout     End the current session
  whoami     Show the logged in user
  bill       Calculate and record the bill for a period
  history    Show your billing history
  export     Write a summary of your billing history to a file
  meter      Look up who a meter is registered to
  migrate    Copy every account into the relational mirror
  config     Show or change settings
  version    Show version

Run 'voltbill <command> -h' for command options.

Examples:
  voltbill calc --units 250
  voltbill register --username alice
  voltbill login --username alice
  voltbill bill --year 2025 --month 3 --units 420 --meter MTR-1001
  voltbill history --year 2025
  voltbill export --out alice.txt
`)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	command, args := os.Args[1], os.Args[2:]
	switch command {
	case "calc":
		runCalc(args)
	case "register":
		runRegister(args)
	case "login":
		runLogin(args)
	case "logout":
		runLogout(args)
	case "whoami":
		runWhoami(args)
	case "bill":
		runBill(args)
	case "history":
		runHistory(args)
	case "export":
		runExport(args)
	case "meter":
		runMeter(args)
	case "migrate":
		runMigrate(args)
	case "config":
		runConfig(args)
	case "version", "--version", "-v":
		fmt.Printf("voltbill version %s\n", version)
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		usage()
		os.Exit(1)
	}
}

// fail prints an error and exits
func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// app carries what every command needs
type app struct {
	cfg *config.Config
	log *logrus.Logger
}

func newApp() *app {
	cfg, err := config.Load()
	if err != nil {
		fail("loading config: %v", err)
	}
	return &app{cfg: cfg, log: newLogger(cfg.Level())}
}

func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		log.WithField("log_level", level).Warn("unknown log level, using warn")
		lvl = logrus.WarnLevel
	}
	log.SetLevel(lvl)
	return log
}

// dataPath resolves a data file and makes sure its directory exists
func (a *app) dataPath(resolve func() (string, error)) string {
	path, err := resolve()
	if err != nil {
		fail("resolving data directory: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		fail("creating data directory: %v", err)
	}
	return path
}

// openAccounts opens the credential log, mirroring new registrations when
// a mirror is configured. The returned func closes everything.
func (a *app) openAccounts(withMirror bool) (*accounts.Store, func()) {
	opts := []accounts.Option{accounts.WithLogger(a.log)}
	if d := a.cfg.DefaultAccount; d.Username != "" {
		if err := validateCredentials(d.Username, d.Password); err != nil {
			fail("default_account in config: %v", err)
		}
		opts = append(opts, accounts.WithDefaultAccount(d.Username, d.Password))
	}

	var mirror *database.Mirror
	if withMirror && a.cfg.Mirror.Driver != "" {
		mirror = database.NewMirror(a.cfg.Mirror.Driver, a.cfg.Mirror.DSN, a.log)
		opts = append(opts, accounts.WithReplicator(mirror))
	}

	path := a.dataPath(a.cfg.AccountsPath)
	store, err := accounts.Open(path, opts...)
	if err != nil {
		// The store is still usable; later saves will try again
		a.log.WithError(err).WithField("path", path).Warn("credential log not loaded")
	}

	return store, func() {
		if err := store.Close(); err != nil {
			a.log.WithError(err).Error("failed to flush credential log")
		}
		if mirror != nil {
			mirror.Close()
		}
	}
}

func (a *app) openBills() (*bills.Store, func()) {
	path := a.dataPath(a.cfg.BillsPath)
	store, err := bills.Open(path, bills.WithLogger(a.log))
	if err != nil {
		a.log.WithError(err).WithField("path", path).Warn("billing log not loaded")
	}
	return store, func() {
		if err := store.Close(); err != nil {
			fail("billing log could not be saved: %v", err)
		}
	}
}

func (a *app) openSessions() (*auth.Sessions, func()) {
	db, err := database.Open(database.DriverSQLite, a.dataPath(a.cfg.StatePath))
	if err != nil {
		fail("opening state database: %v", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		fail("preparing state database: %v", err)
	}
	return auth.NewSessions(db.DB, a.cfg.Lifetime()), func() { db.Close() }
}

// currentUser returns the logged in user or exits
func (a *app) currentUser() string {
	if a.cfg.SessionToken == "" {
		fail("not logged in. Run 'voltbill login' first.")
	}
	sessions, closeSessions := a.openSessions()
	defer closeSessions()

	username, err := sessions.Username(a.cfg.SessionToken)
	if err != nil {
		fail("%v", err)
	}
	if username == "" {
		fail("session expired. Run 'voltbill login' again.")
	}
	return username
}
