// Package runtime executes compiled programs. The first execution builds
// output and leaves behind a tree of updating opcodes; later passes walk
// that tree, skipping every region whose inputs still validate and patching
// only what changed.
package runtime

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/chazu/reflow/pkg/dom"
	"github.com/chazu/reflow/pkg/reference"
	"github.com/chazu/reflow/pkg/tags"
)

// Manager integrates a host capability into rendering. A program invokes a
// manager by registered kind; the manager creates an instance, renders its
// output through the builder, and is asked to update when any argument
// invalidates.
type Manager interface {
	// Create instantiates the capability with resolved argument references
	// and renders its initial output through the builder.
	Create(env *Environment, kind string, args map[string]reference.Reference, b *dom.Builder) (any, error)

	// Update refreshes an instance after its tag invalidated.
	Update(instance any) error

	// Tag reports when the instance's output last changed.
	Tag(instance any) tags.Tag

	// Destructor returns the instance's teardown, or nil.
	Destructor(instance any) func()
}

// Environment holds the shared state of one render tree: its revision
// clock, truthiness policy, registered managers and logger. Environments
// are independent; two environments never share revisions.
type Environment struct {
	ID     string
	Clock  *tags.Clock
	Truthy reference.TruthyFunc
	Logger commonlog.Logger

	managers map[string]Manager
}

// Option configures an environment.
type Option func(*Environment)

// WithTruthy selects the truthiness policy for conditionals.
func WithTruthy(fn reference.TruthyFunc) Option {
	return func(e *Environment) { e.Truthy = fn }
}

// WithLogger replaces the environment's logger.
func WithLogger(log commonlog.Logger) Option {
	return func(e *Environment) { e.Logger = log }
}

// NewEnvironment returns an environment with a fresh clock, the default
// truthiness policy and no managers.
func NewEnvironment(opts ...Option) *Environment {
	env := &Environment{
		ID:       uuid.New().String(),
		Clock:    tags.NewClock(),
		Truthy:   reference.Truthy,
		Logger:   commonlog.GetLogger("reflow.runtime"),
		managers: make(map[string]Manager),
	}
	for _, opt := range opts {
		opt(env)
	}
	return env
}

// RegisterManager binds a manager to a kind. Registering a kind twice is a
// host wiring mistake and fails.
func (e *Environment) RegisterManager(kind string, m Manager) error {
	if _, ok := e.managers[kind]; ok {
		return fmt.Errorf("runtime: manager kind %q already registered", kind)
	}
	e.managers[kind] = m
	return nil
}

// Manager returns the manager registered for kind.
func (e *Environment) Manager(kind string) (Manager, error) {
	m, ok := e.managers[kind]
	if !ok {
		return nil, fmt.Errorf("runtime: no manager registered for kind %q", kind)
	}
	return m, nil
}
