// Package cmd provides the CLI commands for CrabPot.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/crabpot-sandbox/crabpot/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "crabpot",
	Short: "CrabPot - sandbox supervisor for untrusted agent containers",
	Long: `CrabPot wraps an untrusted agent workload in a sandboxed container and
supervises its egress: every outbound connection crosses an HTTP/HTTPS
forward proxy, is checked against a domain allowlist policy, and can be
escalated to a human for a PENDING decision. A multi-channel security
monitor watches the container's resource usage, process tree, and logs,
and can auto-pause it on a CRITICAL finding.

Quick start:
  1. Create a config file: crabpot.yaml
  2. Run: crabpot start

Configuration:
  Config is loaded from crabpot.yaml in the current directory,
  $HOME/.crabpot/, or /etc/crabpot/.

  Environment variables can override config values with the CRABPOT_ prefix.
  Example: CRABPOT_PROXY_ADDR=127.0.0.1:8899

Commands:
  start     Start the sandbox, proxy, gate, and monitor
  approve   Approve a pending egress domain
  deny      Deny a pending egress domain
  version   Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./crabpot.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
