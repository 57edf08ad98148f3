// Package policy loads and validates the governance profile: the risk
// scoring weights and the auto-freeze trigger rules. Profiles are YAML
// documents validated against an embedded JSON schema and carry a semantic
// schema_version so incompatible documents are rejected before use.
package policy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/dealforge/governor/pkg/contracts"
	"github.com/dealforge/governor/pkg/risk"

	_ "embed"
)

//go:embed profile_schema.json
var profileSchema string

//go:embed default_profile.yaml
var defaultProfile []byte

// schemaConstraint pins the profile document format this build understands.
const schemaConstraint = "^1.0.0"

// TriggerRule is one auto-freeze rule. The expression is a CEL predicate
// over the variables `deal` and `risk`; when it evaluates to true the deal
// is frozen with the rule's reason code.
type TriggerRule struct {
	Name       string `yaml:"name" json:"name"`
	Reason     string `yaml:"reason" json:"reason"`
	Expression string `yaml:"expression" json:"expression"`
}

// GovernanceProfile is the operator-editable policy document.
type GovernanceProfile struct {
	SchemaVersion string        `yaml:"schema_version" json:"schema_version"`
	Name          string        `yaml:"name" json:"name"`
	Risk          risk.Policy   `yaml:"risk" json:"risk"`
	Triggers      []TriggerRule `yaml:"triggers,omitempty" json:"triggers,omitempty"`
}

// Load reads and validates a profile from disk.
func Load(path string) (*GovernanceProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", path, err)
	}
	return Parse(data)
}

// Default returns the shipped baseline profile. It goes through the same
// validation path as operator profiles so the embedded document can never
// drift from the schema unnoticed.
func Default() (*GovernanceProfile, error) {
	return Parse(defaultProfile)
}

// Parse validates a YAML profile document and returns it.
func Parse(data []byte) (*GovernanceProfile, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}

	// The schema validator speaks JSON values, so round-trip the YAML
	// document through encoding/json before validating.
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("canonicalize profile: %w", err)
	}
	var jsonDoc any
	if err := json.Unmarshal(raw, &jsonDoc); err != nil {
		return nil, fmt.Errorf("canonicalize profile: %w", err)
	}
	if err := compiledSchema().Validate(jsonDoc); err != nil {
		return nil, contracts.NewValidation(fmt.Sprintf("profile rejected by schema: %v", err))
	}

	var profile GovernanceProfile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&profile); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}

	if err := checkSchemaVersion(profile.SchemaVersion); err != nil {
		return nil, err
	}
	for i, rule := range profile.Triggers {
		if _, err := contracts.ParseReasonCode(rule.Reason); err != nil {
			return nil, contracts.NewValidation(
				fmt.Sprintf("trigger %d (%s): %v", i, rule.Name, err))
		}
	}

	if len(profile.Risk.Strengths) == 0 {
		profile.Risk = risk.DefaultPolicy()
	}
	return &profile, nil
}

func checkSchemaVersion(v string) error {
	version, err := semver.NewVersion(v)
	if err != nil {
		return contracts.NewValidation(fmt.Sprintf("invalid schema_version %q: %v", v, err))
	}
	constraint, err := semver.NewConstraint(schemaConstraint)
	if err != nil {
		return fmt.Errorf("schema constraint: %w", err)
	}
	if !constraint.Check(version) {
		return contracts.NewValidation(
			fmt.Sprintf("schema_version %s is outside the supported range %s", v, schemaConstraint))
	}
	return nil
}

func compiledSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	const url = "https://governor.schemas.local/profile.schema.json"
	if err := c.AddResource(url, bytes.NewReader([]byte(profileSchema))); err != nil {
		panic(fmt.Sprintf("embedded profile schema unreadable: %v", err))
	}
	schema, err := c.Compile(url)
	if err != nil {
		panic(fmt.Sprintf("embedded profile schema invalid: %v", err))
	}
	return schema
}
