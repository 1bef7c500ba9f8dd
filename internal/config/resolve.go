package config

import (
	"github.com/crabpot-sandbox/crabpot/internal/domain/monitor"
)

// ResolveProfile merges this config's security preset and overrides into
// the effective SecurityProfile/ResourceProfile pair the monitor and the
// runtime's compose rendering use.
func (c *Config) ResolveProfile() (monitor.SecurityProfile, monitor.ResourceProfile, error) {
	overrides := monitor.SecurityOverrides(c.Security.Overrides)

	resourceOverrides := monitor.ResourceOverrides{}
	if c.Security.CPULimit != "" {
		v := c.Security.CPULimit
		resourceOverrides.CPULimit = &v
	}
	if c.Security.MemoryLimit != "" {
		v := c.Security.MemoryLimit
		resourceOverrides.MemoryLimit = &v
	}
	if c.Security.PIDsLimit != 0 {
		v := c.Security.PIDsLimit
		resourceOverrides.PIDsLimit = &v
	}

	return monitor.ResolveProfile(c.Security.Preset, overrides, resourceOverrides)
}
