package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/crabpot-sandbox/crabpot/internal/config"
)

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List egress domains currently awaiting human review",
	Long: `Pending queries the running crabpot process's approval API and prints
every domain that proxy connections are currently blocked on, waiting for
"crabpot approve" or "crabpot deny".`,
	RunE: runPending,
}

func init() {
	rootCmd.AddCommand(pendingCmd)
}

type pendingResponse struct {
	Domains []string `json:"domains"`
}

func runPending(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	url := fmt.Sprintf("http://%s/approvals", cfg.Admin.Addr)
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("failed to reach crabpot approval API at %s (is \"crabpot start\" running?): %w", cfg.Admin.Addr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("approval API returned %s", resp.Status)
	}

	var body pendingResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("failed to decode approval API response: %w", err)
	}

	if len(body.Domains) == 0 {
		fmt.Println("no domains pending approval")
		return nil
	}
	for _, domain := range body.Domains {
		fmt.Println(domain)
	}
	return nil
}
