package runtime

import (
	"github.com/chazu/reflow/pkg/program"
	"github.com/chazu/reflow/pkg/reference"
)

// Scope maps compiled slot numbers to references. Slot 0 is the render's
// root value; further slots are block parameters bound by list bodies.
// Scopes are copied, not chained: slot resolution happened at compile time,
// so lookup is a flat index.
type Scope struct {
	slots []reference.Reference
}

// NewScope returns a scope sized for a program's symbol table, with self
// bound at slot 0.
func NewScope(size int32, self reference.Reference) *Scope {
	s := &Scope{slots: make([]reference.Reference, size)}
	s.slots[program.SelfSlot] = self
	return s
}

// Get returns the reference bound at slot.
func (s *Scope) Get(slot int32) reference.Reference {
	return s.slots[slot]
}

// Set binds a reference at slot.
func (s *Scope) Set(slot int32, ref reference.Reference) {
	s.slots[slot] = ref
}

// Self returns the root value reference.
func (s *Scope) Self() reference.Reference {
	return s.slots[program.SelfSlot]
}

// Child returns an independent copy. Binding block parameters in the child
// leaves the parent untouched.
func (s *Scope) Child() *Scope {
	slots := make([]reference.Reference, len(s.slots))
	copy(slots, s.slots)
	return &Scope{slots: slots}
}
