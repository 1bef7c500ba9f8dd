package cmd

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/crabpot-sandbox/crabpot/internal/config"
)

var approvePermanent bool

var approveCmd = &cobra.Command{
	Use:   "approve <domain>",
	Short: "Approve a pending egress domain on the running sandbox",
	Long: `Approve renders a positive verdict for a domain currently awaiting
human review, unblocking any proxy connection waiting on it.

By default the approval only lasts for the remainder of the running
session. Pass --permanent to also add the domain to the durable allowlist.

Examples:
  crabpot approve api.anthropic.com
  crabpot approve --permanent pypi.org`,
	Args: cobra.ExactArgs(1),
	RunE: runApprove,
}

func init() {
	approveCmd.Flags().BoolVar(&approvePermanent, "permanent", false, "also add the domain to the durable allowlist")
	rootCmd.AddCommand(approveCmd)
}

func runApprove(cmd *cobra.Command, args []string) error {
	return postVerdict(args[0], "approve", approvePermanent)
}

// postVerdict calls the running crabpot process's approval API.
func postVerdict(domain, action string, permanent bool) error {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	body := "{}"
	if permanent {
		body = `{"permanent": true}`
	}

	url := fmt.Sprintf("http://%s/approvals/%s/%s", cfg.Admin.Addr, domain, action)
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to reach crabpot approval API at %s (is \"crabpot start\" running?): %w", cfg.Admin.Addr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("approval API returned %s", resp.Status)
	}

	verdict := map[string]string{"approve": "approved", "deny": "denied"}[action]
	fmt.Printf("%s: %s\n", domain, verdict)
	return nil
}
