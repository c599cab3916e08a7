package config

import (
	"encoding/json"
	"os"
	"reflect"
	"strings"

	validator "github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/rxtech-lab/argo-indicator/internal/types"
	"github.com/rxtech-lab/argo-indicator/internal/version"
	"github.com/rxtech-lab/argo-indicator/pkg/errors"
)

// EngineConfig is the top-level configuration consumed by the engine. It
// carries the variant catalog plus sink and ring buffer tuning.
type EngineConfig struct {
	SchemaVersion string `yaml:"schema_version" json:"schema_version" jsonschema:"title=Schema Version,description=Config schema version checked against the engine version" validate:"required"`

	// DataPath points at the batch dataset (parquet or csv glob).
	DataPath string `yaml:"data_path" json:"data_path,omitempty" jsonschema:"title=Data Path"`
	// OutputPath is where computed point series are persisted.
	OutputPath string `yaml:"output_path" json:"output_path" jsonschema:"title=Output Path" validate:"required"`

	// RingMargin is the safety margin in seconds added on top of the largest
	// configured window when sizing the live ring buffer.
	RingMargin float64 `yaml:"ring_margin" json:"ring_margin,omitempty" jsonschema:"title=Ring Buffer Margin,default=60"`
	// FlushSize bounds the sink's write buffer; the orchestrator blocks on
	// flush once the buffer is full.
	FlushSize int `yaml:"flush_size" json:"flush_size,omitempty" jsonschema:"title=Sink Flush Size,default=256"`

	Feed     FeedConfig `yaml:"feed" json:"feed,omitempty" jsonschema:"title=Live Feed"`
	Variants []Variant  `yaml:"variants" json:"variants" validate:"min=1,dive"`
}

// FeedConfig selects the live tick ingestion source.
type FeedConfig struct {
	// Provider is one of "binance" or "ws".
	Provider string `yaml:"provider" json:"provider,omitempty" jsonschema:"title=Provider,enum=binance,enum=ws"`
	// URL is the websocket endpoint for the generic ws provider.
	URL string `yaml:"url" json:"url,omitempty" jsonschema:"title=Feed URL"`
}

// Defaults applied when optional fields are left zero.
const (
	DefaultRingMargin = 60.0
	DefaultFlushSize  = 256
)

// Load reads and validates an engine config from a YAML file.
func Load(path string) (*EngineConfig, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, "failed to read config file", err)
	}

	return Parse(content)
}

// Parse parses and validates an engine config from YAML bytes.
func Parse(content []byte) (*EngineConfig, error) {
	var cfg EngineConfig
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, "failed to parse config", err)
	}

	if cfg.RingMargin <= 0 {
		cfg.RingMargin = DefaultRingMargin
	}

	if cfg.FlushSize <= 0 {
		cfg.FlushSize = DefaultFlushSize
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the config structurally and verifies schema compatibility.
func (c *EngineConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, "invalid engine config", err)
	}

	if err := version.CheckSchemaCompatibility(version.Version, c.SchemaVersion); err != nil {
		return errors.Wrap(errors.ErrCodeSchemaVersion, "incompatible config schema", err)
	}

	for i := range c.Variants {
		if err := c.Variants[i].Validate(); err != nil {
			return err
		}
	}

	return nil
}

// VariantByID looks up a variant from the catalog.
func (c *EngineConfig) VariantByID(id string) (*Variant, error) {
	for i := range c.Variants {
		if c.Variants[i].ID == id {
			return &c.Variants[i], nil
		}
	}

	return nil, errors.Newf(errors.ErrCodeUnknownVariant, "variant %q not found in config", id)
}

// MaxLookback returns the largest leading window offset across all variants.
func (c *EngineConfig) MaxLookback() float64 {
	max := 0.0

	for i := range c.Variants {
		if lb := c.Variants[i].MaxLookback(); lb > max {
			max = lb
		}
	}

	return max
}

// GenerateSchema generates a JSON schema for the EngineConfig.
func (c *EngineConfig) GenerateSchema() (*jsonschema.Schema, error) {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if strings.Contains(t.String(), "types.Category") {
				enum := make([]any, 0, len(types.AllCategories))
				for _, cat := range types.AllCategories {
					enum = append(enum, string(cat))
				}

				return &jsonschema.Schema{
					Type: "string",
					Enum: enum,
				}
			}

			return nil
		},
	}

	schema := reflector.Reflect(c)

	schema.Title = "indicator-engine-config"
	schema.Description = "Configuration schema for the indicator computation engine"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema, nil
}

// GenerateSchemaJSON generates a JSON schema string for the EngineConfig.
func (c *EngineConfig) GenerateSchemaJSON() (string, error) {
	schema, err := c.GenerateSchema()
	if err != nil {
		return "", err
	}

	schemaBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}

	return string(schemaBytes), nil
}
