package engine

import (
	"errors"
	"time"

	"github.com/dwsmith1983/faultline/pkg/types"
	"github.com/oklog/ulid/v2"
)

// pickScheduled chooses a service uniformly among the enabled set (the whole
// fleet when none are enabled), then one of its operations uniformly.
func (e *Engine) pickScheduled(cfg *types.GenerationConfig) (string, types.OperationDescriptor, bool) {
	var service string
	if n := len(cfg.EnabledServices); n > 0 {
		service = cfg.EnabledServices[e.intN(n)]
	} else {
		n := e.registry.Len()
		if n == 0 {
			return "", types.OperationDescriptor{}, false
		}
		service = e.registry.NameAt(e.intN(n))
	}

	n := e.registry.NumOperations(service)
	if n == 0 {
		return "", types.OperationDescriptor{}, false
	}
	op, ok := e.registry.OperationAt(service, e.intN(n))
	return service, op, ok
}

type site struct {
	service string
	op      types.OperationDescriptor
}

// resolve validates a manual request and fills in the unset fields. It reads
// only the registry and the config snapshot, so a failure mutates nothing.
func (e *Engine) resolve(cfg *types.GenerationConfig, req types.TriggerRequest) (string, types.OperationDescriptor, error) {
	if req.Operation != "" && req.Service == "" {
		return "", types.OperationDescriptor{}, types.NewValidationError("operation", "requires service")
	}
	if req.FaultKind != "" && !req.FaultKind.Valid() {
		return "", types.OperationDescriptor{}, &types.NotFoundError{Kind: "fault kind", Name: string(req.FaultKind)}
	}

	if req.Service != "" {
		svc, err := e.registry.Get(req.Service)
		if err != nil {
			return "", types.OperationDescriptor{}, err
		}

		if req.Operation != "" {
			kind, err := e.registry.FaultKindFor(svc.Name, req.Operation)
			if err != nil {
				return "", types.OperationDescriptor{}, err
			}
			if req.FaultKind != "" && req.FaultKind != kind {
				return "", types.OperationDescriptor{}, types.NewValidationError("fault_kind",
					"%s.%s raises %s, not %s", svc.Name, req.Operation, kind, req.FaultKind)
			}
			return svc.Name, operation(svc, req.Operation, kind), nil
		}

		candidates := make([]types.OperationDescriptor, 0, len(svc.Operations))
		for _, op := range svc.Operations {
			if req.FaultKind == "" || op.FaultKind == req.FaultKind {
				candidates = append(candidates, op)
			}
		}
		if len(candidates) == 0 {
			return "", types.OperationDescriptor{}, types.NewValidationError("fault_kind",
				"no operation of %s raises %s", svc.Name, req.FaultKind)
		}
		return svc.Name, candidates[e.intN(len(candidates))], nil
	}

	if req.FaultKind == "" {
		service, op, ok := e.pickScheduled(cfg)
		if !ok {
			return "", types.OperationDescriptor{}, &types.NotFoundError{Kind: "service", Name: "any enabled"}
		}
		return service, op, nil
	}

	// Fault kind only: prefer the enabled set, fall back to the whole fleet.
	sites := e.sitesFor(req.FaultKind, cfg.ServiceEnabled)
	if len(sites) == 0 {
		sites = e.sitesFor(req.FaultKind, func(string) bool { return true })
	}
	if len(sites) == 0 {
		return "", types.OperationDescriptor{}, &types.NotFoundError{Kind: "operation raising", Name: string(req.FaultKind)}
	}
	s := sites[e.intN(len(sites))]
	return s.service, s.op, nil
}

// operation returns the descriptor for name, falling back to a bare one
// carrying kind when the service lists no such entry.
func operation(svc types.ServiceDescriptor, name string, kind types.FaultKind) types.OperationDescriptor {
	for _, op := range svc.Operations {
		if op.Name == name {
			return op
		}
	}
	return types.OperationDescriptor{Name: name, FaultKind: kind}
}

func (e *Engine) sitesFor(kind types.FaultKind, include func(string) bool) []site {
	var out []site
	for i := 0; i < e.registry.Len(); i++ {
		name := e.registry.NameAt(i)
		if !include(name) {
			continue
		}
		for j := 0; j < e.registry.NumOperations(name); j++ {
			op, _ := e.registry.OperationAt(name, j)
			if op.FaultKind == kind {
				out = append(out, site{service: name, op: op})
			}
		}
	}
	return out
}

func newID(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
}

func isNotFound(err error) bool {
	return errors.Is(err, types.ErrNotFound)
}
