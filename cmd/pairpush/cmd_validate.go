package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/pairpush/pairpush/pkg/cli"
	"github.com/pairpush/pairpush/pkg/setconf"
	"github.com/pairpush/pairpush/pkg/util"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a configuration file offline",
	Long: `Decode, clean and validate a set-format configuration file without
contacting any device, then print its statistics.

Examples:
  pairpush validate changes.set
  pairpush validate changes.set --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, v, err := setconf.LoadFile(args[0])
		if err != nil {
			var verr *util.ValidationError
			if errors.As(err, &verr) && !jsonOutput {
				for _, w := range verr.Warnings {
					fmt.Printf("%s %s\n", cli.Yellow("warning:"), w)
				}
			}
			return err
		}
		st := setconf.Stats(doc)

		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(struct {
				File     string             `json:"file"`
				Stats    setconf.Statistics `json:"stats"`
				Warnings []string           `json:"warnings,omitempty"`
			}{args[0], st, v.Warnings})
		}

		fmt.Printf("%s %s\n\n", cli.Green("Valid:"), args[0])
		t := cli.NewTable("VERB", "LINES")
		verbs := make([]string, 0, len(st.ByVerb))
		for verb := range st.ByVerb {
			verbs = append(verbs, verb)
		}
		sort.Strings(verbs)
		for _, verb := range verbs {
			t.Row(verb, fmt.Sprint(st.ByVerb[verb]))
		}
		t.Row("total", fmt.Sprint(st.Total))
		t.Flush()

		if len(st.Hierarchies) > 0 {
			fmt.Println()
			fmt.Println("Hierarchies:")
			for _, h := range st.Hierarchies {
				fmt.Printf("  %s\n", h)
			}
		}
		for _, w := range v.Warnings {
			fmt.Printf("%s %s\n", cli.Yellow("warning:"), w)
		}
		return nil
	},
}
