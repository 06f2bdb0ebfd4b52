package service

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rescan/internal/config"
	"github.com/rescan/internal/types"
)

// PointsPolicy decides how many points a scan is worth
type PointsPolicy struct {
	Recyclable    int64 `yaml:"recyclable" json:"recyclable"`
	NonRecyclable int64 `yaml:"non_recyclable" json:"nonRecyclable"`
}

// DefaultPointsPolicy awards 100 points for recyclable items and 10 otherwise
func DefaultPointsPolicy() PointsPolicy {
	return PointsPolicy{Recyclable: 100, NonRecyclable: 10}
}

// LoadPointsPolicy builds the policy from config, letting an optional YAML
// file override individual values
func LoadPointsPolicy(cfg *config.LedgerConfig) (PointsPolicy, error) {
	policy := PointsPolicy{
		Recyclable:    cfg.PointsRecyclable,
		NonRecyclable: cfg.PointsNonRecyclable,
	}

	if cfg.PointsPolicyFile != "" {
		data, err := os.ReadFile(cfg.PointsPolicyFile)
		if err != nil {
			return PointsPolicy{}, fmt.Errorf("failed to read points policy: %w", err)
		}
		var override struct {
			Recyclable    *int64 `yaml:"recyclable"`
			NonRecyclable *int64 `yaml:"non_recyclable"`
		}
		if err := yaml.Unmarshal(data, &override); err != nil {
			return PointsPolicy{}, fmt.Errorf("failed to parse points policy: %w", err)
		}
		if override.Recyclable != nil {
			policy.Recyclable = *override.Recyclable
		}
		if override.NonRecyclable != nil {
			policy.NonRecyclable = *override.NonRecyclable
		}
	}

	if err := policy.Validate(); err != nil {
		return PointsPolicy{}, err
	}
	return policy, nil
}

// Validate rejects negative awards
func (p PointsPolicy) Validate() error {
	if p.Recyclable < 0 || p.NonRecyclable < 0 {
		return fmt.Errorf("points policy awards must not be negative: %+v", p)
	}
	return nil
}

// Award returns the points for a classified item
func (p PointsPolicy) Award(result *types.MaterialResult) int64 {
	if result.IsRecyclable {
		return p.Recyclable
	}
	return p.NonRecyclable
}
