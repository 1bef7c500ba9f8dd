package policystore

import (
	"os"
	"path/filepath"
	"runtime"
)

// defaultPolicyFilename is the policy file name searched for in each
// standard location.
const defaultPolicyFilename = "policy.txt"

// ResolvePath searches standard locations for a CrabPot policy file,
// generalizing the config loader's cwd -> ~/.crabpot -> /etc/crabpot search
// order to the allowlist file. If none exists yet, it returns the
// first-preference path (cwd) so callers can create it there.
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}

	for _, dir := range searchDirs() {
		candidate := filepath.Join(dir, defaultPolicyFilename)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return filepath.Join(searchDirs()[0], defaultPolicyFilename)
}

func searchDirs() []string {
	home, _ := os.UserHomeDir()
	dirs := []string{
		".",
		filepath.Join(home, ".crabpot"),
	}
	if runtime.GOOS == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			dirs = append(dirs, filepath.Join(pd, "crabpot"))
		}
	} else {
		dirs = append(dirs, "/etc/crabpot")
	}
	return dirs
}
