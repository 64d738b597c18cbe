package config

import (
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/praxos-io/warden/pkg/maturity"
)

// minProfileVersion is the oldest profile schema this build accepts.
var minProfileVersion = semver.MustParse("1.0.0")

// PolicyProfile is a deployment-specific governance policy document.
// It can add action types to the built-in catalog or tighten the
// complexity of existing ones.
type PolicyProfile struct {
	Version string         `yaml:"version"`
	Name    string         `yaml:"name"`
	Actions map[string]int `yaml:"actions"`
}

// LoadProfile parses and validates a policy profile YAML file.
func LoadProfile(path string) (*PolicyProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load policy profile %q: %w", path, err)
	}

	var p PolicyProfile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse policy profile %q: %w", path, err)
	}
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("policy profile %q: %w", path, err)
	}
	return &p, nil
}

func (p *PolicyProfile) validate() error {
	if p.Version == "" {
		return fmt.Errorf("missing version")
	}
	v, err := semver.NewVersion(p.Version)
	if err != nil {
		return fmt.Errorf("invalid version %q: %w", p.Version, err)
	}
	if v.LessThan(minProfileVersion) {
		return fmt.Errorf("version %s older than minimum %s", v, minProfileVersion)
	}
	for name, c := range p.Actions {
		if c < 1 || c > 4 {
			return fmt.Errorf("action %q: complexity %d out of range 1-4", name, c)
		}
	}
	return nil
}

// Policy builds the maturity policy tables from the profile, overlaid
// on the built-in action catalog.
func (p *PolicyProfile) Policy() *maturity.Policy {
	return maturity.NewPolicyWithActions(p.Actions)
}
