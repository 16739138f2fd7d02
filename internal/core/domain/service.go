package domain

import (
	"fmt"
	"maps"
	"slices"
)

// UpdateOrder decides whether new replicas start before old ones stop.
type UpdateOrder int

const (
	// StopFirst removes stale replicas before starting new ones.
	StopFirst UpdateOrder = iota
	// StartFirst starts new replicas before removing stale ones.
	StartFirst
)

func (o UpdateOrder) String() string {
	switch o {
	case StartFirst:
		return "start-first"
	case StopFirst:
		return "stop-first"
	default:
		return fmt.Sprintf("UpdateOrder(%d)", int(o))
	}
}

func (o UpdateOrder) MarshalText() ([]byte, error) {
	switch o {
	case StartFirst, StopFirst:
		return []byte(o.String()), nil
	default:
		return nil, fmt.Errorf("invalid update order %d", int(o))
	}
}

func (o *UpdateOrder) UnmarshalText(text []byte) error {
	switch string(text) {
	case "start-first":
		*o = StartFirst
	case "stop-first", "":
		*o = StopFirst
	default:
		return fmt.Errorf("invalid update order %q: expected start-first or stop-first", text)
	}
	return nil
}

// ContainerTemplate is what the engine needs to start one replica.
type ContainerTemplate struct {
	Image       string            `json:"image"`
	Command     []string          `json:"command,omitempty"`
	Environment map[string]string `json:"environment,omitempty"`
}

// DesiredServiceDefinition is the declared target for one service.
type DesiredServiceDefinition struct {
	ReplicaCount      int               `json:"replicas"`
	ServiceConfigHash string            `json:"config_hash"`
	UpdateOrder       UpdateOrder       `json:"update_order"`
	Template          ContainerTemplate `json:"template"`
}

// DesiredServices maps service names to their definitions. A service
// missing from the map has zero desired replicas.
type DesiredServices map[string]DesiredServiceDefinition

// Names returns the service names in ascending order.
func (d DesiredServices) Names() []string {
	return slices.Sorted(maps.Keys(d))
}
