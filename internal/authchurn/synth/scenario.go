package synth

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Workload patterns.
const (
	// PatternStable spreads logins over a fixed set of entities.
	PatternStable = "stable"
	// PatternChurn mints a new entity for every login.
	PatternChurn = "churn"
	// PatternChatty sends every login from one entity.
	PatternChatty = "chatty"
)

// Scenario describes a synthetic audit log, parsed from YAML.
type Scenario struct {
	Seed  uint64 `yaml:"seed"`
	Start string `yaml:"start"`
	// StepMillis separates consecutive logins.
	StepMillis int `yaml:"step_ms"`
	// PrefixRatio is the share of lines wrapped in a container runtime prefix.
	PrefixRatio float64 `yaml:"prefix_ratio"`
	// EmitRequests writes the request record in front of every response.
	EmitRequests *bool `yaml:"emit_requests"`
	// MalformedLines are interleaved lines that are not audit JSON.
	MalformedLines int `yaml:"malformed_lines"`
	// NoiseRecords are audit records for non-login paths.
	NoiseRecords int `yaml:"noise_records"`

	Mounts []MountSpec `yaml:"mounts"`
}

type MountSpec struct {
	Path      string         `yaml:"path"`
	Accessor  string         `yaml:"accessor"`
	Type      string         `yaml:"type"`
	Workloads []WorkloadSpec `yaml:"workloads"`
}

type WorkloadSpec struct {
	Namespace      string `yaml:"namespace"`
	ServiceAccount string `yaml:"service_account"`
	Pattern        string `yaml:"pattern"`
	Entities       int    `yaml:"entities"`
	Logins         int    `yaml:"logins"`
	Failures       int    `yaml:"failures"`
}

// ReadScenario parses a YAML scenario file.
func ReadScenario(path string) (Scenario, error) {
	var sc Scenario
	data, err := os.ReadFile(path)
	if err != nil {
		return sc, err
	}
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return sc, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	return sc, nil
}

// DefaultScenario mixes one healthy, one churning and one chatty workload
// across two mounts.
func DefaultScenario() Scenario {
	return Scenario{
		Seed:           42,
		PrefixRatio:    0.25,
		MalformedLines: 5,
		NoiseRecords:   20,
		Mounts: []MountSpec{
			{
				Path: "kubernetes",
				Type: "kubernetes",
				Workloads: []WorkloadSpec{
					{Namespace: "payments", ServiceAccount: "api", Pattern: PatternStable, Entities: 3, Logins: 30},
					{Namespace: "batch", ServiceAccount: "worker", Pattern: PatternChurn, Logins: 120, Failures: 4},
				},
			},
			{
				Path: "openshift-prod",
				Type: "openshift",
				Workloads: []WorkloadSpec{
					{Namespace: "monitoring", ServiceAccount: "exporter", Pattern: PatternChatty, Logins: 250},
				},
			},
		},
	}
}

func (sc *Scenario) emitRequests() bool {
	return sc.EmitRequests == nil || *sc.EmitRequests
}

func (sc *Scenario) startTime() (time.Time, error) {
	if sc.Start == "" {
		return time.Date(2025, 10, 7, 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse(time.RFC3339, sc.Start)
	if err != nil {
		return time.Time{}, fmt.Errorf("scenario start: %w", err)
	}
	return t.UTC(), nil
}

// Validate reports the first structural problem in the scenario.
func (sc *Scenario) Validate() error {
	if len(sc.Mounts) == 0 {
		return fmt.Errorf("scenario has no mounts")
	}
	if sc.PrefixRatio < 0 || sc.PrefixRatio > 1 {
		return fmt.Errorf("prefix_ratio must be within [0,1], got %v", sc.PrefixRatio)
	}
	for i, m := range sc.Mounts {
		if m.Path == "" {
			return fmt.Errorf("mount %d has no path", i)
		}
		for j, w := range m.Workloads {
			switch w.Pattern {
			case PatternStable:
				if w.Entities < 1 {
					return fmt.Errorf("mount %s workload %d: stable pattern needs entities >= 1", m.Path, j)
				}
			case PatternChurn, PatternChatty:
			default:
				return fmt.Errorf("mount %s workload %d: unknown pattern %q", m.Path, j, w.Pattern)
			}
			if w.Logins < 0 || w.Failures < 0 {
				return fmt.Errorf("mount %s workload %d: negative counts", m.Path, j)
			}
		}
	}
	return nil
}
