package version

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// CheckSchemaCompatibility checks whether a config file's schema version is
// compatible with the engine version. Returns nil if compatible.
//
// Compatibility rules:
//   - If either version is "main" (development build), the check is skipped
//   - Major versions must match exactly
//   - The config's minor version must not be newer than the engine's
//   - Patch versions can differ freely
func CheckSchemaCompatibility(engineVersion, schemaVersion string) error {
	engineVersion = strings.TrimPrefix(engineVersion, "v")
	schemaVersion = strings.TrimPrefix(schemaVersion, "v")

	// Skip version check for "main" (development builds)
	if engineVersion == "main" || schemaVersion == "main" {
		return nil
	}

	engineSemver, err := semver.NewVersion(engineVersion)
	if err != nil {
		return fmt.Errorf("invalid engine version '%s': %w", engineVersion, err)
	}

	schemaSemver, err := semver.NewVersion(schemaVersion)
	if err != nil {
		return fmt.Errorf("invalid schema version '%s': %w", schemaVersion, err)
	}

	if engineSemver.Major() != schemaSemver.Major() {
		return fmt.Errorf("major version mismatch: engine is %d.x.x but config requires %d.x.x",
			engineSemver.Major(), schemaSemver.Major())
	}

	if schemaSemver.Minor() > engineSemver.Minor() {
		return fmt.Errorf("config schema %d.%d.x is newer than engine %d.%d.x",
			schemaSemver.Major(), schemaSemver.Minor(),
			engineSemver.Major(), engineSemver.Minor())
	}

	return nil
}
