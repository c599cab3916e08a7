package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckSchemaCompatibility(t *testing.T) {
	tests := []struct {
		name          string
		engineVersion string
		schemaVersion string
		expectError   bool
		errorContains string
	}{
		{
			name:          "exact match",
			engineVersion: "1.2.0",
			schemaVersion: "1.2.0",
			expectError:   false,
		},
		{
			name:          "patch versions differ",
			engineVersion: "1.2.1",
			schemaVersion: "1.2.5",
			expectError:   false,
		},
		{
			name:          "older schema minor accepted",
			engineVersion: "1.3.0",
			schemaVersion: "1.1.0",
			expectError:   false,
		},
		{
			name:          "newer schema minor rejected",
			engineVersion: "1.2.0",
			schemaVersion: "1.3.0",
			expectError:   true,
			errorContains: "newer than engine",
		},
		{
			name:          "major version differs",
			engineVersion: "2.0.0",
			schemaVersion: "1.2.0",
			expectError:   true,
			errorContains: "major version mismatch",
		},
		{
			name:          "engine is main",
			engineVersion: "main",
			schemaVersion: "1.2.0",
			expectError:   false,
		},
		{
			name:          "schema is main",
			engineVersion: "1.2.0",
			schemaVersion: "main",
			expectError:   false,
		},
		{
			name:          "v prefix on both",
			engineVersion: "v1.2.0",
			schemaVersion: "v1.2.0",
			expectError:   false,
		},
		{
			name:          "prerelease version",
			engineVersion: "1.2.0-alpha",
			schemaVersion: "1.2.0",
			expectError:   false,
		},
		{
			name:          "invalid engine version",
			engineVersion: "not-a-version",
			schemaVersion: "1.2.0",
			expectError:   true,
			errorContains: "invalid engine version",
		},
		{
			name:          "invalid schema version",
			engineVersion: "1.2.0",
			schemaVersion: "not-a-version",
			expectError:   true,
			errorContains: "invalid schema version",
		},
		{
			name:          "empty schema version",
			engineVersion: "1.2.0",
			schemaVersion: "",
			expectError:   true,
			errorContains: "invalid schema version",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckSchemaCompatibility(tt.engineVersion, tt.schemaVersion)

			if tt.expectError {
				require.Error(t, err)
				if tt.errorContains != "" {
					assert.Contains(t, err.Error(), tt.errorContains)
				}
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestGetVersion(t *testing.T) {
	v := GetVersion()
	assert.Equal(t, Version, v)
}
