// Command crabpot supervises a sandboxed agent container: an egress
// HTTP/HTTPS proxy, a domain allowlist policy engine, a human-approval
// action gate, and a multi-channel security monitor.
package main

import "github.com/crabpot-sandbox/crabpot/cmd/crabpot/cmd"

func main() {
	cmd.Execute()
}
