// Pairpush - Junos Pair Configuration Tool
//
// Pushes a set-format configuration document to the two devices of a
// redundant group, gated on connectivity, pending-change and overlap checks,
// and compares the committed configuration of the pair.
//
// Usage:
//
//	pairpush <operation> -g <group> [-c <file>] [flags]
//
// Operations:
//
//	check              - Load and commit-check, never commit
//	commit             - Load and commit
//	commit-confirmed   - Load and commit with automatic rollback window
//	rollback           - Delete every set line of the document
//	compare            - Diff the committed configuration of both devices
//
// Examples:
//
//	pairpush check -g core -c changes.set
//	pairpush commit -g core -c changes.set --backup
//	pairpush commit-confirmed -g core -c changes.set --confirm 10
//	pairpush rollback -g core -c changes.set -p
//	pairpush compare -g core --similarity normalized
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"os/user"
	"syscall"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"github.com/pairpush/pairpush/pkg/audit"
	"github.com/pairpush/pairpush/pkg/backup"
	"github.com/pairpush/pairpush/pkg/device/junos"
	"github.com/pairpush/pairpush/pkg/inventory"
	"github.com/pairpush/pairpush/pkg/pairpush"
	"github.com/pairpush/pairpush/pkg/report"
	"github.com/pairpush/pairpush/pkg/runlock"
	"github.com/pairpush/pairpush/pkg/settings"
	"github.com/pairpush/pairpush/pkg/util"
)

const (
	defaultBackupDir = "~/.pairpush/backups"
	defaultAuditLog  = "~/.pairpush/audit.log"
	defaultLockDir   = "~/.pairpush/locks"
)

var (
	// Global flags
	inventoryPath string
	verbose       bool
	logJSON       bool
	jsonOutput    bool
	timeoutSecs   int

	// Global state
	userSettings *settings.Settings
)

// errFailed signals a run whose verdict was already reported as failed.
var errFailed = errors.New("operation failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "pairpush",
	Short:             "Junos Pair Configuration Tool",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	Long: `Pairpush applies set-format configuration to both devices of a redundant
Junos pair and reports a single verdict.

Every mutating run first checks that both devices are reachable, that
neither has uncommitted changes, and how much of the document is already
present. Use --dry-run to preview.

  pairpush <operation> -g <group> -c <file> [flags]`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Set log level: quiet by default, verbose on -v
		if verbose {
			util.SetLogLevel("debug")
		} else {
			util.SetLogLevel("warn")
		}
		if logJSON {
			util.SetJSONFormat()
		}

		var err error
		userSettings, err = settings.Load()
		if err != nil {
			util.Warnf("Could not load settings: %v", err)
			userSettings = &settings.Settings{}
		}
		if inventoryPath == "" {
			inventoryPath = userSettings.GetInventory(inventory.DefaultPath)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&inventoryPath, "inventory", "i", "", "Configuration store (yaml, toml or ini)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Log in JSON format")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON")
	rootCmd.PersistentFlags().IntVar(&timeoutSecs, "timeout", 60, "Per-device session timeout in seconds")

	rootCmd.AddCommand(
		checkCmd, commitCmd, commitConfirmedCmd, rollbackCmd, compareCmd,
		validateCmd, auditCmd, backupCmd, settingsCmd, versionCmd,
	)
}

// loadStore loads the configuration store and resolves the password.
func loadStore() (*inventory.Store, error) {
	store, err := inventory.Load(inventoryPath)
	if err != nil {
		return nil, err
	}
	if err := store.ResolvePassword(os.Stdin, os.Stderr); err != nil {
		return nil, err
	}
	return store, nil
}

// pick returns the first non-empty value.
func pick(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// auditPath resolves the audit log: settings, then store, then default.
// The store is optional here; audit list works without one.
func auditPath(store *inventory.Store) string {
	storeValue := ""
	if store != nil {
		storeValue = store.AuditLog
	}
	path := pick(userSettings.AuditLog, storeValue, defaultAuditLog)
	if expanded, err := homedir.Expand(path); err == nil {
		path = expanded
	}
	return path
}

func backupDir(store *inventory.Store) string {
	storeValue := ""
	if store != nil {
		storeValue = store.BackupDir
	}
	return pick(userSettings.BackupDir, storeValue, defaultBackupDir)
}

// tryStore loads the store without prompting, for commands that only need
// paths from it.
func tryStore() *inventory.Store {
	store, err := inventory.Load(inventoryPath)
	if err != nil {
		util.Debugf("store not loaded: %v", err)
		return nil
	}
	return store
}

func currentUser() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "unknown"
}

// newTool wires a Tool from the store. The returned cleanup closes the audit
// log and any lock client.
func newTool(store *inventory.Store) (*pairpush.Tool, func(), error) {
	var closers []func() error

	backups, err := backup.NewManager(backupDir(store))
	if err != nil {
		return nil, nil, fmt.Errorf("backup directory: %w", err)
	}

	tool := &pairpush.Tool{
		Store: store,
		Dialer: &junos.Dialer{
			Port:         store.Transport.Port,
			ProbePort:    store.Transport.ProbePort,
			ProbeTimeout: store.Transport.ProbeTimeoutDuration(),
			KnownHosts:   store.Transport.KnownHosts,
		},
		Sink:    report.NewConsole(os.Stdout, jsonOutput),
		Backups: backups,
		Timeout: time.Duration(timeoutSecs) * time.Second,
		User:    currentUser(),
	}

	auditLogger, err := audit.NewFileLogger(auditPath(store), audit.DefaultRotation)
	if err != nil {
		util.Warnf("Could not initialize audit logging: %v", err)
	} else {
		audit.SetDefaultLogger(auditLogger)
		tool.Audit = auditLogger
		closers = append(closers, auditLogger.Close)
	}

	if addr := store.Lock.RedisAddr; addr != "" {
		rl := runlock.NewRedisLocker(addr, store.Lock.RedisDB, store.Lock.TTLDuration())
		tool.Locker = rl
		closers = append(closers, rl.Close)
	} else {
		fl, err := runlock.NewFileLocker(pick(store.Lock.Dir, defaultLockDir))
		if err != nil {
			return nil, nil, fmt.Errorf("lock directory: %w", err)
		}
		tool.Locker = fl
	}

	cleanup := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				util.Debugf("cleanup: %v", err)
			}
		}
	}
	return tool, cleanup, nil
}
