// Package reconcile computes the changes that converge the containers running
// on a host to a set of desired services.
//
// Reconcile is pure: it performs no I/O and never fails on well-typed input,
// so it is safe to call concurrently.
package reconcile

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/melih/lighthouse/internal/core/domain"
)

// Reconcile returns the ordered changes for desired against actual.
//
// Services are visited in ascending name order. For each service, current
// containers (matching the desired hash) are kept in ascending container ID
// order up to the replica count; surplus current containers and every stale
// container are removed, and the deficit is filled with adds. Keeps come
// first; adds precede removes for StartFirst services and follow them for
// StopFirst services.
func Reconcile(desired domain.DesiredServices, actual domain.ActualContainers) []domain.ServiceContainerChange {
	groups := actual.ByService()

	names := make(map[string]struct{}, len(desired)+len(groups))
	for name := range desired {
		names[name] = struct{}{}
	}
	for name := range groups {
		names[name] = struct{}{}
	}

	var changes []domain.ServiceContainerChange
	for _, name := range slices.Sorted(maps.Keys(names)) {
		definition, ok := desired[name]
		changes = append(changes, reconcileService(name, definition, ok, groups[name])...)
	}
	return changes
}

func reconcileService(name string, definition domain.DesiredServiceDefinition, declared bool, containers []domain.ActualContainer) []domain.ServiceContainerChange {
	var keeps, adds, removes []domain.ServiceContainerChange

	// containers are in set order, so current ones are seen by ascending ID.
	for _, c := range containers {
		if declared && c.ServiceConfigHash == definition.ServiceConfigHash && len(keeps) < definition.ReplicaCount {
			keeps = append(keeps, domain.Keep(c))
			continue
		}
		removes = append(removes, domain.Remove(c))
	}

	if declared {
		for range definition.ReplicaCount - len(keeps) {
			adds = append(adds, domain.Add(name, definition.ServiceConfigHash))
		}
	}

	changes := keeps
	if definition.UpdateOrder == domain.StartFirst {
		changes = append(changes, adds...)
		return append(changes, removes...)
	}
	changes = append(changes, removes...)
	return append(changes, adds...)
}

// Validate reports malformed input. Every error wraps domain.ErrInvalidInput.
func Validate(desired domain.DesiredServices, actual domain.ActualContainers) error {
	var errs []error
	for _, name := range desired.Names() {
		definition := desired[name]
		if name == "" {
			errs = append(errs, errors.New("service name is empty"))
		}
		if definition.ReplicaCount < 0 {
			errs = append(errs, fmt.Errorf("service %q: replica count %d is negative", name, definition.ReplicaCount))
		}
		if definition.ServiceConfigHash == "" {
			errs = append(errs, fmt.Errorf("service %q: config hash is empty", name))
		}
		if definition.UpdateOrder != domain.StartFirst && definition.UpdateOrder != domain.StopFirst {
			errs = append(errs, fmt.Errorf("service %q: %v is not a valid update order", name, definition.UpdateOrder))
		}
	}
	for c := range actual.All() {
		if c.ContainerID == "" {
			errs = append(errs, fmt.Errorf("container of service %q has no ID", c.ServiceName))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, errors.Join(errs...))
	}
	return nil
}

// Summary counts changes by kind.
type Summary struct {
	Added   int `json:"added"`
	Kept    int `json:"kept"`
	Removed int `json:"removed"`
}

// Summarize counts changes by kind.
func Summarize(changes []domain.ServiceContainerChange) Summary {
	var s Summary
	for _, c := range changes {
		switch c.Kind {
		case domain.ChangeAdd:
			s.Added++
		case domain.ChangeKeep:
			s.Kept++
		case domain.ChangeRemove:
			s.Removed++
		}
	}
	return s
}

// Converged reports whether changes contain nothing but keeps.
func Converged(changes []domain.ServiceContainerChange) bool {
	s := Summarize(changes)
	return s.Added == 0 && s.Removed == 0
}
