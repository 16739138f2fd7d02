package domain

import (
	"cmp"
	"iter"
	"slices"
	"strings"
)

// ActualContainer represents one running container managed by lighthouse.
type ActualContainer struct {
	ContainerID       string `json:"container_id"`
	ServiceConfigHash string `json:"service_config_hash"`
	ServiceName       string `json:"service_name"`
}

// Compare orders containers by (container ID, config hash, service name).
func (c ActualContainer) Compare(other ActualContainer) int {
	return cmp.Or(
		strings.Compare(c.ContainerID, other.ContainerID),
		strings.Compare(c.ServiceConfigHash, other.ServiceConfigHash),
		strings.Compare(c.ServiceName, other.ServiceName),
	)
}

// ActualContainers is the set of containers observed on the host, kept
// sorted so that iteration order never depends on map ordering.
// The zero value is an empty set.
type ActualContainers struct {
	items []ActualContainer
}

// NewActualContainers builds a set from the given containers, dropping duplicates.
func NewActualContainers(containers ...ActualContainer) ActualContainers {
	items := slices.Clone(containers)
	slices.SortFunc(items, ActualContainer.Compare)
	items = slices.Compact(items)
	return ActualContainers{items: items}
}

// Insert adds c to the set and reports whether it was not already present.
func (s *ActualContainers) Insert(c ActualContainer) bool {
	i, found := slices.BinarySearchFunc(s.items, c, ActualContainer.Compare)
	if found {
		return false
	}
	s.items = slices.Insert(s.items, i, c)
	return true
}

func (s ActualContainers) Len() int {
	return len(s.items)
}

// All iterates the set in its deterministic order.
func (s ActualContainers) All() iter.Seq[ActualContainer] {
	return slices.Values(s.items)
}

// ByService groups the set by service name. Each group keeps set order.
func (s ActualContainers) ByService() map[string][]ActualContainer {
	groups := make(map[string][]ActualContainer)
	for _, c := range s.items {
		groups[c.ServiceName] = append(groups[c.ServiceName], c)
	}
	return groups
}

// MarshalJSON renders the set as a plain JSON array.
func (s ActualContainers) MarshalJSON() ([]byte, error) {
	return marshalList(s.items)
}
