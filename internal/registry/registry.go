// Package registry holds the simulated service fleet and its operation bindings.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dwsmith1983/faultline/pkg/types"
	"gopkg.in/yaml.v3"
)

// Registry maps services to their operations and bound fault kinds.
// It is populated during start-up and read-only afterwards.
type Registry struct {
	order    []string
	services map[string]*types.ServiceDescriptor
	bindings map[string]map[string]types.FaultKind
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		services: make(map[string]*types.ServiceDescriptor),
		bindings: make(map[string]map[string]types.FaultKind),
	}
}

// Default returns a registry holding the built-in four-service fleet.
func Default() *Registry {
	r := NewRegistry()
	for _, svc := range defaultFleet() {
		if err := r.Register(svc); err != nil {
			panic(fmt.Sprintf("registry: built-in fleet invalid: %v", err))
		}
	}
	return r
}

// fleetFile is the YAML layout of a fleet definition file.
type fleetFile struct {
	Services []types.ServiceDescriptor `yaml:"services"`
}

// LoadDir loads all YAML fleet files from a directory.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading fleet dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		path := filepath.Join(dir, name)
		if err := r.LoadFile(path); err != nil {
			return fmt.Errorf("loading fleet %s: %w", path, err)
		}
	}
	return nil
}

// LoadFile loads a single fleet YAML file.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	var ff fleetFile
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	for _, svc := range ff.Services {
		if err := r.Register(svc); err != nil {
			return err
		}
	}
	return nil
}

// Register adds a service. Names must be unique and every operation must be
// bound to a known fault kind.
func (r *Registry) Register(svc types.ServiceDescriptor) error {
	if err := validateService(svc); err != nil {
		return fmt.Errorf("validating service %q: %w", svc.Name, err)
	}
	if _, dup := r.services[svc.Name]; dup {
		return fmt.Errorf("service %q already registered", svc.Name)
	}

	cp := svc
	cp.Operations = append([]types.OperationDescriptor(nil), svc.Operations...)
	binding := make(map[string]types.FaultKind, len(cp.Operations))
	for _, op := range cp.Operations {
		binding[op.Name] = op.FaultKind
	}

	r.order = append(r.order, cp.Name)
	r.services[cp.Name] = &cp
	r.bindings[cp.Name] = binding
	return nil
}

func validateService(svc types.ServiceDescriptor) error {
	if strings.TrimSpace(svc.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if len(svc.Operations) == 0 {
		return fmt.Errorf("at least one operation is required")
	}
	seen := make(map[string]bool, len(svc.Operations))
	for i, op := range svc.Operations {
		if strings.TrimSpace(op.Name) == "" {
			return fmt.Errorf("operations[%d]: name is required", i)
		}
		if seen[op.Name] {
			return fmt.Errorf("operations[%d]: duplicate operation %q", i, op.Name)
		}
		seen[op.Name] = true
		if !op.FaultKind.Valid() {
			return fmt.Errorf("operations[%d]: unknown fault kind %q", i, op.FaultKind)
		}
	}
	return nil
}

// Get returns a copy of the named service.
func (r *Registry) Get(service string) (types.ServiceDescriptor, error) {
	svc, ok := r.services[service]
	if !ok {
		return types.ServiceDescriptor{}, &types.NotFoundError{Kind: "service", Name: service}
	}
	out := *svc
	out.Operations = append([]types.OperationDescriptor(nil), svc.Operations...)
	return out, nil
}

// Has reports whether the service is registered.
func (r *Registry) Has(service string) bool {
	_, ok := r.services[service]
	return ok
}

// Names returns service names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// ListServices returns every service in registration order.
func (r *Registry) ListServices() []types.ServiceDescriptor {
	out := make([]types.ServiceDescriptor, 0, len(r.order))
	for _, name := range r.order {
		svc, _ := r.Get(name)
		out = append(out, svc)
	}
	return out
}

// Operations returns the operations of a service in declaration order.
func (r *Registry) Operations(service string) ([]types.OperationDescriptor, error) {
	svc, err := r.Get(service)
	if err != nil {
		return nil, err
	}
	return svc.Operations, nil
}

// FaultKindFor returns the fault kind bound to an operation.
func (r *Registry) FaultKindFor(service, operation string) (types.FaultKind, error) {
	ops, ok := r.bindings[service]
	if !ok {
		return "", &types.NotFoundError{Kind: "service", Name: service}
	}
	kind, ok := ops[operation]
	if !ok {
		return "", &types.NotFoundError{Kind: "operation", Name: service + "." + operation}
	}
	return kind, nil
}

// Len returns the number of registered services.
func (r *Registry) Len() int { return len(r.order) }

// NameAt returns the i-th service name in registration order.
func (r *Registry) NameAt(i int) string { return r.order[i] }

// NumOperations returns how many operations a service has, 0 when unknown.
func (r *Registry) NumOperations(service string) int {
	if svc, ok := r.services[service]; ok {
		return len(svc.Operations)
	}
	return 0
}

// OperationAt returns the i-th operation of a service without copying the list.
func (r *Registry) OperationAt(service string, i int) (types.OperationDescriptor, bool) {
	svc, ok := r.services[service]
	if !ok || i < 0 || i >= len(svc.Operations) {
		return types.OperationDescriptor{}, false
	}
	return svc.Operations[i], true
}
