// Package registry is the read-only function table the parser and passes
// consult by lowercase name. Each entry records the parameter contract, the
// vector size contract and the opcode the emitter will use.
//
// Entries carry the interpreter version that introduced them. A registry
// bound to a target version refuses functions the target cannot execute.
package registry

import (
	"fmt"
	"sort"
	"strings"

	semver "github.com/Masterminds/semver/v3"
)

// Function describes one callable.
type Function struct {
	ID                int
	Name              string
	MinParams         int
	MaxParams         int
	AcceptsVectorSize int // 0 accepts any size
	ReturnsVectorSize int // 0 returns the size of its input
	Op                Op
	Since             *semver.Version
}

func (f *Function) String() string {
	return f.Name
}

// IsPush reports whether f is one of the push variants.
func (f *Function) IsPush() bool {
	return f != nil && (f.Op == OpPush || f.Op == OpPushVector)
}

// IsPop reports whether f pops a previously pushed value.
func (f *Function) IsPop() bool {
	return f != nil && f.Op == OpPop
}

// Registry maps lowercase function names to their definitions.
type Registry struct {
	byName map[string]*Function
	byOp   map[Op]*Function
	target *semver.Version
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		byName: make(map[string]*Function),
		byOp:   make(map[Op]*Function),
	}
}

// Register adds f; the name is stored lowercase. since is a semantic version
// string ("" means 1.0.0).
func (r *Registry) Register(name string, op Op, minParams, maxParams, accepts, returns int, since string) error {
	if since == "" {
		since = "1.0.0"
	}
	v, err := semver.NewVersion(since)
	if err != nil {
		return fmt.Errorf("function %s: invalid version %q: %w", name, since, err)
	}

	key := strings.ToLower(name)
	if _, exists := r.byName[key]; exists {
		return fmt.Errorf("function %s registered twice", key)
	}
	if minParams > maxParams {
		return fmt.Errorf("function %s: min parameters %d exceed max %d", key, minParams, maxParams)
	}

	f := &Function{
		ID:                len(r.byName) + 1,
		Name:              key,
		MinParams:         minParams,
		MaxParams:         maxParams,
		AcceptsVectorSize: accepts,
		ReturnsVectorSize: returns,
		Op:                op,
		Since:             v,
	}
	r.byName[key] = f
	if _, ok := r.byOp[op]; !ok {
		r.byOp[op] = f
	}

	return nil
}

// WithTarget returns a copy of the registry that only resolves functions
// available in the given interpreter version. An empty version disables the
// gate.
func (r *Registry) WithTarget(version string) (*Registry, error) {
	out := &Registry{byName: r.byName, byOp: r.byOp}
	if version == "" {
		return out, nil
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return nil, fmt.Errorf("invalid target version %q: %w", version, err)
	}
	out.target = v
	return out, nil
}

// Target returns the version gate, nil when none is set.
func (r *Registry) Target() *semver.Version {
	return r.target
}

// Lookup returns the function registered under name, ignoring the version gate.
func (r *Registry) Lookup(name string) (*Function, bool) {
	f, ok := r.byName[strings.ToLower(name)]
	return f, ok
}

// Resolve returns the function registered under name if the target
// interpreter supports it.
func (r *Registry) Resolve(name string) (*Function, error) {
	f, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown function '%s'", name)
	}
	if r.target != nil && r.target.LessThan(f.Since) {
		return nil, fmt.Errorf("function '%s' requires interpreter %s, target is %s",
			f.Name, f.Since, r.target)
	}
	return f, nil
}

// ByOp returns the first function registered for op.
func (r *Registry) ByOp(op Op) *Function {
	return r.byOp[op]
}

// Names returns all registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func equalFold(a, b string) bool {
	return strings.EqualFold(a, b)
}
