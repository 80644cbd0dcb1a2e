package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/governd/internal/policy"
)

// checkCmd validates a policy rules file without starting the daemon.
var checkCmd = &cobra.Command{
	Use:   "check <rules.yaml>",
	Short: "Validate a policy rules file",
	Long: `Parse and compile a policy rules file, reporting the first error
found. Exits zero when the file is valid.

Examples:
  governd check /etc/governd/rules.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		rules, err := policy.ParseRules(data)
		if err != nil {
			return fmt.Errorf("invalid rules file: %w", err)
		}

		cmd.Printf("%s: ok (%d blocked, %d dangerous, %d allowed paths, %d denied paths)\n",
			args[0],
			len(rules.BlockedCommands),
			len(rules.DangerousCommands),
			len(rules.AllowedPaths),
			len(rules.DeniedPaths))
		return nil
	},
}
