package models

import (
	"fmt"
	"strings"
)

// Conditions holds optional acceptance thresholds for the plans of a property
type Conditions struct {
	PointRate *int `yaml:"point_rate" json:"point_rate,omitempty"`
	StayTime  *int `yaml:"stay_time" json:"stay_time,omitempty"`
	Credit    *int `yaml:"credit" json:"credit,omitempty"`
}

// IsEmpty reports whether no threshold is set
func (c Conditions) IsEmpty() bool {
	return c.PointRate == nil && c.StayTime == nil && c.Credit == nil
}

// Merge returns c overlaid with every threshold set in override
func (c Conditions) Merge(override Conditions) Conditions {
	merged := c
	if override.PointRate != nil {
		merged.PointRate = override.PointRate
	}
	if override.StayTime != nil {
		merged.StayTime = override.StayTime
	}
	if override.Credit != nil {
		merged.Credit = override.Credit
	}
	return merged
}

func (c Conditions) String() string {
	var parts []string
	if c.PointRate != nil {
		parts = append(parts, fmt.Sprintf("point_rate>=%d", *c.PointRate))
	}
	if c.StayTime != nil {
		parts = append(parts, fmt.Sprintf("stay_time>=%d", *c.StayTime))
	}
	if c.Credit != nil {
		parts = append(parts, fmt.Sprintf("credit>=%d", *c.Credit))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, " or ")
}
