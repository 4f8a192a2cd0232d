// Package dispatch maps each named operation on the domain model's surface
// to a resolved variant: command, query, or not-allowed. The table is built
// once by registration during setup and consulted by value on the hot path;
// there is no runtime type inspection.
package dispatch

import (
	"fmt"
	"sync"

	"github.com/INLOpen/prevaldb/core"
)

// HandlerFunc applies an operation to the model and returns its result.
// Command handlers mutate the model; query handlers must not.
type HandlerFunc func(model any, args any) (any, error)

// Operation is the resolved classification of a single member of the
// model's operation surface. Immutable once resolved.
type Operation struct {
	Name string
	Kind core.OperationKind
	// Type keys the authorizer's permission table. Defaults to Name.
	Type string
	// NewArgs returns a pointer to a zero argument value, used to decode
	// journaled payloads during replay. Nil for argument-less operations.
	NewArgs func() any

	Handler HandlerFunc
}

// DefaultPolicy decides how members registered without an explicit
// command/query declaration are classified.
type DefaultPolicy int

const (
	// DefaultQuery treats undeclared members as queries, the conservative
	// non-mutating assumption. This is the shipped default.
	DefaultQuery DefaultPolicy = iota
	// DefaultNotAllowed rejects undeclared members outright.
	DefaultNotAllowed
)

// Registry is the operation classification table.
type Registry struct {
	policy DefaultPolicy

	mu  sync.RWMutex
	ops map[string]*Operation
}

func NewRegistry(policy DefaultPolicy) *Registry {
	return &Registry{
		policy: policy,
		ops:    make(map[string]*Operation),
	}
}

// RegisterCommand declares a mutating operation. newArgs may be nil for
// argument-less commands; otherwise it must return a pointer the formatter
// can decode a journaled payload into.
func (r *Registry) RegisterCommand(name string, newArgs func() any, handler HandlerFunc) error {
	return r.register(&Operation{Name: name, Kind: core.OpCommand, NewArgs: newArgs, Handler: handler})
}

// RegisterQuery declares a read-only operation.
func (r *Registry) RegisterQuery(name string, handler HandlerFunc) error {
	return r.register(&Operation{Name: name, Kind: core.OpQuery, Handler: handler})
}

// Register declares an operation without an explicit kind. Its kind is
// resolved from the registry's default policy on first use.
func (r *Registry) Register(name string, handler HandlerFunc) error {
	kind := core.OpQuery
	if r.policy == DefaultNotAllowed {
		kind = core.OpNotAllowed
	}
	return r.register(&Operation{Name: name, Kind: kind, Handler: handler})
}

// MarkNotAllowed declares an operation permanently rejected. It overrides
// any other declaration for the member, past or future.
func (r *Registry) MarkNotAllowed(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops[name] = &Operation{Name: name, Kind: core.OpNotAllowed, Type: name}
}

// DeclareType overrides the authorization type key for a registered
// operation. Must be called during setup, before the operation is invoked.
func (r *Registry) DeclareType(name, operationType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	op, ok := r.ops[name]
	if !ok {
		return fmt.Errorf("declare type for %q: %w", name, core.ErrUnknownOperation)
	}
	op.Type = operationType
	return nil
}

func (r *Registry) register(op *Operation) error {
	if op.Name == "" {
		return fmt.Errorf("operation name must not be empty")
	}
	if op.Handler == nil {
		return fmt.Errorf("operation %q has no handler", op.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.ops[op.Name]; ok {
		// A not-allowed declaration universally wins; anything else is a
		// duplicate registration.
		if existing.Kind == core.OpNotAllowed {
			return nil
		}
		return fmt.Errorf("operation %q already registered as %s", op.Name, existing.Kind)
	}
	op.Type = op.Name
	r.ops[op.Name] = op
	return nil
}

// Resolve returns the classification for a named operation. The table is
// immutable after setup, so resolution is a single map lookup.
func (r *Registry) Resolve(name string) (*Operation, error) {
	r.mu.RLock()
	op, ok := r.ops[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownOperation, name)
	}
	return op, nil
}

// Names returns all registered operation names. Intended for diagnostics.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ops))
	for name := range r.ops {
		names = append(names, name)
	}
	return names
}
