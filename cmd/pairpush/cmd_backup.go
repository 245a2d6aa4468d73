package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pairpush/pairpush/pkg/backup"
	"github.com/pairpush/pairpush/pkg/cli"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage configuration backups",
	Long: `Manage the committed-configuration backups taken by --backup.

Backups are stored as <device>_<YYYYmmdd_HHMMSS>.conf in the backup
directory (settings, then store, then ~/.pairpush/backups).

Examples:
  pairpush backup list
  pairpush backup list --device 10.0.0.1
  pairpush backup prune --keep 5`,
}

var (
	backupDevice string
	backupKeep   int
)

func backupManager() (*backup.Manager, error) {
	return backup.NewManager(backupDir(tryStore()))
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backups, oldest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := backupManager()
		if err != nil {
			return err
		}
		files, err := m.List(backupDevice)
		if err != nil {
			return fmt.Errorf("listing backups: %w", err)
		}

		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(files)
		}
		if len(files) == 0 {
			fmt.Printf("No backups found in %s\n", m.Dir)
			return nil
		}

		t := cli.NewTable("DEVICE", "TAKEN", "SIZE", "PATH")
		for _, f := range files {
			t.Row(f.Device, f.Taken.Format("2006-01-02 15:04:05"), fmt.Sprint(f.Size), f.Path)
		}
		t.Flush()
		return nil
	},
}

var backupPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove all but the newest backups of each device",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := backupManager()
		if err != nil {
			return err
		}
		removed, err := m.Prune(backupDevice, backupKeep)
		if err != nil {
			return fmt.Errorf("pruning backups: %w", err)
		}
		for _, p := range removed {
			fmt.Printf("removed %s\n", p)
		}
		fmt.Printf("%d backups removed\n", len(removed))
		return nil
	},
}

func init() {
	backupCmd.PersistentFlags().StringVar(&backupDevice, "device", "", "Only this device")
	backupPruneCmd.Flags().IntVar(&backupKeep, "keep", backup.DefaultKeep, "Backups to keep per device")

	backupCmd.AddCommand(backupListCmd, backupPruneCmd)
}
