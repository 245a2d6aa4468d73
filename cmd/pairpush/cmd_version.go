package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pairpush/pairpush/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pairpush %s\n", version.Info())
	},
}
