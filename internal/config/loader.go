package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed campaign.schema.json
var campaignSchema string

const schemaURL = "campaign.schema.json"

var compiledSchema = jsonschema.MustCompileString(schemaURL, campaignSchema)

// LoadConfig loads, defaults and validates a campaign file.
//
// The file format is determined by extension:
//   - .yaml, .yml -> YAML
//   - .json -> JSON
func LoadConfig(path string) (*CampaignConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config, err := ParseConfig(data, path)
	if err != nil {
		return nil, err
	}

	ApplyDefaults(config)
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// ParseConfig checks configuration data against the campaign schema and decodes it.
//
// The format is determined by the file extension in path, or defaults to YAML
// if the path is empty or has an unknown extension.
func ParseConfig(data []byte, path string) (*CampaignConfig, error) {
	var config CampaignConfig

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if err := checkSchema(data, json.Unmarshal); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		if err := checkSchema(data, yaml.Unmarshal); err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	return &config, nil
}

// checkSchema decodes data into generic values and validates them against the
// embedded schema. YAML values are converted to their JSON form first.
func checkSchema(data []byte, unmarshal func([]byte, interface{}) error) error {
	var doc interface{}
	if err := unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	var instance interface{}
	if err := json.Unmarshal(raw, &instance); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	err = compiledSchema.Validate(instance)
	if err == nil {
		return nil
	}

	var validationErr *jsonschema.ValidationError
	if !errors.As(err, &validationErr) {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	errs := &ValidationErrors{}
	collectSchemaErrors(validationErr, errs)
	sort.SliceStable(errs.Errors, func(i, j int) bool {
		return errs.Errors[i].Field < errs.Errors[j].Field
	})
	return errs
}

// collectSchemaErrors keeps the leaves of the validation error tree.
func collectSchemaErrors(err *jsonschema.ValidationError, errs *ValidationErrors) {
	if len(err.Causes) == 0 {
		errs.Add(instanceField(err.InstanceLocation), err.Message)
		return
	}
	for _, cause := range err.Causes {
		collectSchemaErrors(cause, errs)
	}
}

// instanceField turns a JSON pointer (/scenarios/browse/minions) into a
// dotted field path (scenarios.browse.minions).
func instanceField(pointer string) string {
	pointer = strings.TrimPrefix(pointer, "/")
	if pointer == "" {
		return ""
	}

	parts := strings.Split(pointer, "/")
	for i, part := range parts {
		part = strings.ReplaceAll(part, "~1", "/")
		parts[i] = strings.ReplaceAll(part, "~0", "~")
	}
	return strings.Join(parts, ".")
}
