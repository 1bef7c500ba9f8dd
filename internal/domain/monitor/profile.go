package monitor

import "fmt"

// SecurityProfile is the set of boolean feature flags that decide which
// hardening measures and watcher channels are active for a sandbox.
type SecurityProfile struct {
	ReadOnlyRootfs      bool
	DropAllCaps         bool
	SeccompProfile      bool
	NoNewPrivileges     bool
	ResourceLimits      bool
	PIDLimit            bool
	EgressProxy         bool
	SecretScanner       bool
	ProcessWatchdog     bool
	LogScanner          bool
	NetworkAuditor      bool
	HardenedImage       bool
	AutoPauseOnCritical bool
}

// ResourceProfile is the resource constraint values applied to the sandbox
// container.
type ResourceProfile struct {
	CPULimit    string
	MemoryLimit string
	PIDsLimit   int
}

// presets maps a named preset to its (SecurityProfile, ResourceProfile)
// pair. Values ported verbatim from the reference implementation's three
// presets: minimal, standard, paranoid.
var presets = map[string]struct {
	Security SecurityProfile
	Resource ResourceProfile
}{
	"minimal": {
		Security: SecurityProfile{},
		Resource: ResourceProfile{CPULimit: "4", MemoryLimit: "4g", PIDsLimit: 500},
	},
	"standard": {
		Security: SecurityProfile{
			ReadOnlyRootfs:      true,
			DropAllCaps:         true,
			SeccompProfile:      true,
			NoNewPrivileges:     true,
			ResourceLimits:      true,
			PIDLimit:            true,
			EgressProxy:         true,
			SecretScanner:       true,
			LogScanner:          true,
			AutoPauseOnCritical: true,
		},
		Resource: ResourceProfile{CPULimit: "2", MemoryLimit: "2g", PIDsLimit: 200},
	},
	"paranoid": {
		Security: SecurityProfile{
			ReadOnlyRootfs:      true,
			DropAllCaps:         true,
			SeccompProfile:      true,
			NoNewPrivileges:     true,
			ResourceLimits:      true,
			PIDLimit:            true,
			EgressProxy:         true,
			SecretScanner:       true,
			ProcessWatchdog:     true,
			LogScanner:          true,
			NetworkAuditor:      true,
			HardenedImage:       true,
			AutoPauseOnCritical: true,
		},
		Resource: ResourceProfile{CPULimit: "1", MemoryLimit: "1g", PIDsLimit: 100},
	},
}

// ValidPresetNames lists the recognised preset names, for CLI flag help and
// validation error messages.
var ValidPresetNames = []string{"minimal", "standard", "paranoid"}

// SecurityOverrides maps SecurityProfile field names (matching the Go field
// names above) to the override value; a field absent from the map inherits
// the preset's value.
type SecurityOverrides map[string]bool

// ResourceOverrides maps ResourceProfile field names to override values.
type ResourceOverrides struct {
	CPULimit    *string
	MemoryLimit *string
	PIDsLimit   *int
}

// ResolveProfile merges a named preset with caller-supplied overrides,
// returning the effective profile pair. An unrecognised preset name is an
// error; unrecognised override keys are an error too, since a typo'd flag
// silently falling back to the preset default would be worse than failing
// fast.
func ResolveProfile(presetName string, overrides SecurityOverrides, resourceOverrides ResourceOverrides) (SecurityProfile, ResourceProfile, error) {
	base, ok := presets[presetName]
	if !ok {
		return SecurityProfile{}, ResourceProfile{}, fmt.Errorf("unknown preset %q, valid presets: %v", presetName, ValidPresetNames)
	}

	security := base.Security
	for key, value := range overrides {
		if err := applySecurityOverride(&security, key, value); err != nil {
			return SecurityProfile{}, ResourceProfile{}, err
		}
	}

	resource := base.Resource
	if resourceOverrides.CPULimit != nil {
		resource.CPULimit = *resourceOverrides.CPULimit
	}
	if resourceOverrides.MemoryLimit != nil {
		resource.MemoryLimit = *resourceOverrides.MemoryLimit
	}
	if resourceOverrides.PIDsLimit != nil {
		resource.PIDsLimit = *resourceOverrides.PIDsLimit
	}

	return security, resource, nil
}

func applySecurityOverride(p *SecurityProfile, key string, value bool) error {
	switch key {
	case "ReadOnlyRootfs":
		p.ReadOnlyRootfs = value
	case "DropAllCaps":
		p.DropAllCaps = value
	case "SeccompProfile":
		p.SeccompProfile = value
	case "NoNewPrivileges":
		p.NoNewPrivileges = value
	case "ResourceLimits":
		p.ResourceLimits = value
	case "PIDLimit":
		p.PIDLimit = value
	case "EgressProxy":
		p.EgressProxy = value
	case "SecretScanner":
		p.SecretScanner = value
	case "ProcessWatchdog":
		p.ProcessWatchdog = value
	case "LogScanner":
		p.LogScanner = value
	case "NetworkAuditor":
		p.NetworkAuditor = value
	case "HardenedImage":
		p.HardenedImage = value
	case "AutoPauseOnCritical":
		p.AutoPauseOnCritical = value
	default:
		return fmt.Errorf("unknown security override %q", key)
	}
	return nil
}
