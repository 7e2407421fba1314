package diagnostics

import (
	"errors"
	"fmt"

	"github.com/vaibhaw-/AuthChurn/internal/authchurn/config"
)

// ErrInvalidThresholds is returned by New for out-of-range thresholds.
var ErrInvalidThresholds = errors.New("invalid thresholds")

// Thresholds are the anomaly cut-offs. They are fixed for an engine's lifetime.
type Thresholds struct {
	// ChattyEntityLogins flags an entity with at least this many logins.
	ChattyEntityLogins int64 `json:"chatty_entity_logins"`
	// ChurnEntities flags a workload label with at least this many entities.
	ChurnEntities int `json:"churn_entities"`
	// SingletonRatio flags a label whose share of single-login entities is
	// at least this value. Must be within [0,1].
	SingletonRatio float64 `json:"singleton_ratio"`
	// P95Logins flags a label whose p95 logins per entity is at least this.
	P95Logins int64 `json:"p95_logins"`
	// TopN caps every ranked list; 0 disables the cap.
	TopN int `json:"top_n"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		ChattyEntityLogins: 200,
		ChurnEntities:      50,
		SingletonRatio:     0.80,
		P95Logins:          10,
		TopN:               15,
	}
}

// FromConfig converts the thresholds section of the configuration.
func FromConfig(c config.ThresholdsCfg) Thresholds {
	return Thresholds{
		ChattyEntityLogins: int64(c.ChattyEntityLogins),
		ChurnEntities:      c.ChurnEntities,
		SingletonRatio:     c.SingletonRatio,
		P95Logins:          int64(c.P95Logins),
		TopN:               c.TopN,
	}
}

func (t Thresholds) Validate() error {
	var errs []error
	if t.SingletonRatio < 0 || t.SingletonRatio > 1 {
		errs = append(errs, fmt.Errorf("singleton ratio %v outside [0,1]", t.SingletonRatio))
	}
	if t.ChattyEntityLogins < 0 {
		errs = append(errs, fmt.Errorf("chatty entity threshold %d is negative", t.ChattyEntityLogins))
	}
	if t.ChurnEntities < 0 {
		errs = append(errs, fmt.Errorf("churn threshold %d is negative", t.ChurnEntities))
	}
	if t.P95Logins < 0 {
		errs = append(errs, fmt.Errorf("p95 threshold %d is negative", t.P95Logins))
	}
	if t.TopN < 0 {
		errs = append(errs, fmt.Errorf("top-n %d is negative", t.TopN))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidThresholds, errors.Join(errs...))
	}
	return nil
}
