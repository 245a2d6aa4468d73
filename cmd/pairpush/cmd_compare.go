package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pairpush/pairpush/pkg/diff"
	"github.com/pairpush/pairpush/pkg/pairpush"
)

var (
	compareGroup     string
	compareDryRun    bool
	compareStrategy  string
	compareThreshold float64
)

var compareCmd = &cobra.Command{
	Use:   "compare -g <group>",
	Short: "Compare the committed configuration of both devices",
	Long: `Read the committed configuration of both devices in set format and report
lines common to both, near-identical pairs with their differences
highlighted, and lines unique to each device.

Lines matching the store's ignore patterns are excluded before comparing.

Similarity strategies:
  ratio       edit-distance ratio of at least --threshold (default)
  normalized  equal once addresses, numbers and names are replaced by placeholders

Examples:
  pairpush compare -g core
  pairpush compare -g core --similarity normalized
  pairpush compare -g core --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		strategy, err := diff.ParseStrategy(compareStrategy)
		if err != nil {
			return err
		}
		if err := checkThreshold(compareThreshold); err != nil {
			return err
		}
		group, err := resolveGroup(compareGroup)
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

		_, err = tool.Compare(cmd.Context(), pairpush.Request{
			Group:     group,
			Operation: pairpush.OpCompare,
			DryRun:    compareDryRun,
			Strategy:  strategy,
			Threshold: compareThreshold,
		})
		return err
	},
}

// checkThreshold rejects ratios that would pair every line or none.
func checkThreshold(v float64) error {
	if !(v > 0 && v < 1) {
		return fmt.Errorf("--threshold must be greater than 0 and less than 1, got %v", v)
	}
	return nil
}

func init() {
	compareCmd.Flags().StringVarP(&compareGroup, "group", "g", "", "Device group (default from settings)")
	compareCmd.Flags().BoolVarP(&compareDryRun, "dry-run", "d", false, "Show what would be compared without contacting devices")
	compareCmd.Flags().StringVar(&compareStrategy, "similarity", string(diff.StrategyRatio), "Similarity strategy: ratio or normalized")
	compareCmd.Flags().Float64Var(&compareThreshold, "threshold", diff.DefaultThreshold, "Minimum ratio for a similar pair")
}
