package utils

import (
	"github.com/hashicorp/go-version"
)

// VersionConfig holds current version requirements
type VersionConfig struct {
	CurrentStable string
	MinSupported  string
	Deprecated    string
}

var DefaultVersionConfig = VersionConfig{
	CurrentStable: "0.8.0", // Latest stable version
	MinSupported:  "0.7.3", // Minimum supported version
	Deprecated:    "0.7.2", // Versions below this are deprecated
}

// CheckVersionStatus determines if a node version needs upgrading. Only the
// release core is compared, so build suffixes like "-trynet.2025..." do not
// count as older.
func CheckVersionStatus(nodeVersion string, config *VersionConfig) (status string, needsUpgrade bool, severity string) {
	if config == nil {
		config = &DefaultVersionConfig
	}

	nodeVer, err := version.NewVersion(VersionDisplayName(nodeVersion))
	if err != nil {
		return "unknown", false, "info"
	}
	core := nodeVer.Core()

	current, errC := version.NewVersion(config.CurrentStable)
	minSupported, errM := version.NewVersion(config.MinSupported)
	deprecated, errD := version.NewVersion(config.Deprecated)
	if errC != nil || errM != nil || errD != nil {
		return "unknown", false, "info"
	}

	// Check if deprecated (critical)
	if core.LessThan(deprecated) {
		return "deprecated", true, "critical"
	}

	// Check if below minimum supported (warning)
	if core.LessThan(minSupported) {
		return "outdated", true, "warning"
	}

	// Check if not on latest stable (info)
	if core.LessThan(current) {
		return "outdated", true, "info"
	}

	return "current", false, "none"
}
