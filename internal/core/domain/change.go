package domain

import (
	"encoding/json"
	"fmt"
)

// ChangeKind tags a ServiceContainerChange.
type ChangeKind int

const (
	ChangeAdd ChangeKind = iota + 1
	ChangeKeep
	ChangeRemove
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdd:
		return "add"
	case ChangeKeep:
		return "keep"
	case ChangeRemove:
		return "remove"
	default:
		return fmt.Sprintf("ChangeKind(%d)", int(k))
	}
}

func (k ChangeKind) MarshalText() ([]byte, error) {
	switch k {
	case ChangeAdd, ChangeKeep, ChangeRemove:
		return []byte(k.String()), nil
	default:
		return nil, fmt.Errorf("invalid change kind %d", int(k))
	}
}

func (k *ChangeKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "add":
		*k = ChangeAdd
	case "keep":
		*k = ChangeKeep
	case "remove":
		*k = ChangeRemove
	default:
		return fmt.Errorf("invalid change kind %q", text)
	}
	return nil
}

// ServiceContainerChange is one reconciliation action. ContainerID is
// empty for ChangeAdd since the engine assigns it when the container starts.
type ServiceContainerChange struct {
	Kind              ChangeKind `json:"kind"`
	ContainerID       string     `json:"container_id,omitempty"`
	ServiceName       string     `json:"service_name"`
	ServiceConfigHash string     `json:"service_config_hash"`
}

// Add starts one new container for service at hash.
func Add(service, hash string) ServiceContainerChange {
	return ServiceContainerChange{Kind: ChangeAdd, ServiceName: service, ServiceConfigHash: hash}
}

// Keep leaves c running.
func Keep(c ActualContainer) ServiceContainerChange {
	return ServiceContainerChange{
		Kind:              ChangeKeep,
		ContainerID:       c.ContainerID,
		ServiceName:       c.ServiceName,
		ServiceConfigHash: c.ServiceConfigHash,
	}
}

// Remove stops and removes c.
func Remove(c ActualContainer) ServiceContainerChange {
	return ServiceContainerChange{
		Kind:              ChangeRemove,
		ContainerID:       c.ContainerID,
		ServiceName:       c.ServiceName,
		ServiceConfigHash: c.ServiceConfigHash,
	}
}

func (c ServiceContainerChange) String() string {
	if c.Kind == ChangeAdd {
		return fmt.Sprintf("add %s (%s)", c.ServiceName, c.ServiceConfigHash)
	}
	return fmt.Sprintf("%s %s %s (%s)", c.Kind, c.ServiceName, c.ContainerID, c.ServiceConfigHash)
}

func marshalList[T any](items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	return json.Marshal(items)
}
