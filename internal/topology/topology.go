/*
This file is part of Fleet Rollout.

Copyright (C) 2025-2026 The Fleet Rollout Authors.
*/

// Package topology loads the zone stepping policy and the system
// component dependency graph used by the rolling upgrade jobs
package topology

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/sets"

	apiv1 "github.com/fleetrollout/fleet-rollout/api/v1"
)

var (
	// ErrUnknownDependency is raised when a component depends on a
	// component which is not declared
	ErrUnknownDependency = errors.New("unknown dependency")

	// ErrCycle is raised when the dependency graph is not acyclic
	ErrCycle = errors.New("dependency cycle")

	// ErrDuplicate is raised when a zone or a component is declared twice
	ErrDuplicate = errors.New("duplicate declaration")

	// ErrEmpty is raised when there are no zones or no components
	ErrEmpty = errors.New("empty topology")
)

// Topology is the ordered list of zone steps together with the system
// components deployed in every zone
type Topology struct {
	ZoneSteps  []apiv1.ZoneStep        `yaml:"zoneSteps"`
	Components []apiv1.SystemComponent `yaml:"components"`
}

// Load reads and validates a topology file
func Load(path string) (*Topology, error) {
	content, err := os.ReadFile(path) // #nosec
	if err != nil {
		return nil, fmt.Errorf("while reading topology: %w", err)
	}
	return Parse(content)
}

// Parse decodes and validates a YAML topology document
func Parse(content []byte) (*Topology, error) {
	var result Topology
	if err := yaml.Unmarshal(content, &result); err != nil {
		return nil, fmt.Errorf("while decoding topology: %w", err)
	}
	if err := result.Validate(); err != nil {
		return nil, err
	}
	return &result, nil
}

// Zones returns every zone, in step order
func (t *Topology) Zones() []apiv1.ZoneName {
	var result []apiv1.ZoneName
	for _, step := range t.ZoneSteps {
		result = append(result, step...)
	}
	return result
}

// Validate checks the topology, reporting every problem found
func (t *Topology) Validate() error {
	var errs []error

	if len(t.Zones()) == 0 {
		errs = append(errs, fmt.Errorf("%w: no zones declared", ErrEmpty))
	}
	if len(t.Components) == 0 {
		errs = append(errs, fmt.Errorf("%w: no components declared", ErrEmpty))
	}

	zones := sets.New[apiv1.ZoneName]()
	for _, zone := range t.Zones() {
		if zones.Has(zone) {
			errs = append(errs, fmt.Errorf("%w: zone %q", ErrDuplicate, zone))
		}
		zones.Insert(zone)
	}

	names := sets.New[string]()
	for _, component := range t.Components {
		if names.Has(component.Name) {
			errs = append(errs, fmt.Errorf("%w: component %q", ErrDuplicate, component.Name))
		}
		names.Insert(component.Name)
	}

	for _, component := range t.Components {
		for _, dependency := range component.Dependencies {
			if !names.Has(dependency) {
				errs = append(errs, fmt.Errorf("%w: %q depends on %q", ErrUnknownDependency,
					component.Name, dependency))
			}
		}
	}

	if cycle := t.findCycle(); cycle != "" {
		errs = append(errs, fmt.Errorf("%w: through %q", ErrCycle, cycle))
	}

	return utilerrors.NewAggregate(errs)
}

// findCycle returns the name of a component on a dependency cycle,
// or an empty string when the graph is acyclic
func (t *Topology) findCycle() string {
	dependencies := make(map[string][]string, len(t.Components))
	for _, component := range t.Components {
		dependencies[component.Name] = component.Dependencies
	}

	const (
		visiting = 1
		visited  = 2
	)
	state := make(map[string]int, len(dependencies))

	var visit func(name string) string
	visit = func(name string) string {
		switch state[name] {
		case visiting:
			return name
		case visited:
			return ""
		}
		state[name] = visiting
		for _, dependency := range dependencies[name] {
			if cycle := visit(dependency); cycle != "" {
				return cycle
			}
		}
		state[name] = visited
		return ""
	}

	for _, component := range t.Components {
		if cycle := visit(component.Name); cycle != "" {
			return cycle
		}
	}
	return ""
}
