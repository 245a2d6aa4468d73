package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pairpush/pairpush/pkg/pairpush"
)

// pushFlags are shared by the four document operations.
type pushFlags struct {
	group      string
	configFile string
	dryRun     bool
	parallel   bool
	backup     bool
	delay      float64
	confirm    int
}

var pushOpts pushFlags

var checkCmd = newPushCmd(pairpush.OpCheck, "Load and commit-check configuration on both devices",
	`Load the document into the candidate of each device and run a commit check.
Nothing is committed; the candidate is discarded when the device lock is
released.`)

var commitCmd = newPushCmd(pairpush.OpCommit, "Load and commit configuration on both devices",
	`Load the document into the candidate of each device and commit it.
A document whose lines all exist on both devices is a no-op.`)

var commitConfirmedCmd = newPushCmd(pairpush.OpCommitConfirmed, "Commit with an automatic rollback window",
	`Load and commit with commit confirmed. Each device rolls back on its own
unless the commit is confirmed within --confirm minutes.`)

var rollbackCmd = newPushCmd(pairpush.OpRollback, "Delete the document's set lines from both devices",
	`Convert every "set" line of the document to "delete" and commit the result.
Lines that are not "set" are skipped. Pending candidate changes do not block
a rollback.`)

func newPushCmd(op pairpush.Operation, short, long string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   string(op) + " -g <group> -c <file>",
		Short: short,
		Long:  long,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPush(cmd, op)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&pushOpts.group, "group", "g", "", "Device group (default from settings)")
	flags.StringVarP(&pushOpts.configFile, "config", "c", "", "Set-format configuration file")
	flags.BoolVarP(&pushOpts.dryRun, "dry-run", "d", false, "Show what would be done without contacting devices")
	flags.BoolVarP(&pushOpts.parallel, "parallel", "p", false, "Push to both devices concurrently")
	flags.BoolVar(&pushOpts.backup, "backup", false, "Save each device's committed configuration first")
	flags.Float64Var(&pushOpts.delay, "delay", 1, "Seconds between devices in sequential mode")
	if op == pairpush.OpCommitConfirmed {
		flags.IntVar(&pushOpts.confirm, "confirm", 5, "Minutes before an unconfirmed commit rolls back")
	}
	cmd.MarkFlagRequired("config")
	return cmd
}

func resolveGroup(flag string) (string, error) {
	group := pick(flag, userSettings.DefaultGroup)
	if group == "" {
		return "", fmt.Errorf("no group specified: use -g or 'pairpush settings set default_group <name>'")
	}
	return group, nil
}

// delayFlag maps --delay to Request.Delay, where zero selects the default.
func delayFlag(seconds float64) time.Duration {
	if seconds <= 0 {
		return -1
	}
	return time.Duration(seconds * float64(time.Second))
}

func runPush(cmd *cobra.Command, op pairpush.Operation) error {
	group, err := resolveGroup(pushOpts.group)
	if err != nil {
		return err
	}
	store, err := loadStore()
	if err != nil {
		return err
	}
	tool, cleanup, err := newTool(store)
	if err != nil {
		return err
	}
	defer cleanup()

	v, err := tool.Execute(cmd.Context(), pairpush.Request{
		Group:          group,
		Operation:      op,
		ConfigFile:     pushOpts.configFile,
		DryRun:         pushOpts.dryRun,
		Parallel:       pushOpts.parallel,
		Backup:         pushOpts.backup,
		Delay:          delayFlag(pushOpts.delay),
		ConfirmMinutes: pushOpts.confirm,
	})
	if err != nil {
		return err
	}
	if !v.Success {
		return errFailed
	}
	return nil
}
