package cmd

import (
	"github.com/spf13/cobra"
)

var denyCmd = &cobra.Command{
	Use:   "deny <domain>",
	Short: "Deny a pending egress domain on the running sandbox",
	Long: `Deny renders a negative verdict for a domain currently awaiting human
review, unblocking any proxy connection waiting on it with a rejection, and
session-denies the domain so it is rejected without another prompt for the
remainder of the run.

Example:
  crabpot deny suspicious-exfil.example.com`,
	Args: cobra.ExactArgs(1),
	RunE: runDeny,
}

func init() {
	rootCmd.AddCommand(denyCmd)
}

func runDeny(cmd *cobra.Command, args []string) error {
	return postVerdict(args[0], "deny", false)
}
