// Package scope holds the per-activation symbol table: two tiers, one for
// the named function being analyzed and one for nested functions inside
// it. Entering a nested scope never erases the function tier; exiting it
// clears only the nested tier.
package scope

import "github.com/whharris917/atlas-sub000/internal/catalog"

type SymbolTable struct {
	function map[string]catalog.TypeDescriptor
	nested   map[string]catalog.TypeDescriptor
	depth    int // nested-function nesting depth; 0 = function tier active
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		function: make(map[string]catalog.TypeDescriptor),
		nested:   make(map[string]catalog.TypeDescriptor),
	}
}

// Bind writes the active tier.
func (s *SymbolTable) Bind(name string, td catalog.TypeDescriptor) {
	if s.depth > 0 {
		s.nested[name] = td
		return
	}
	s.function[name] = td
}

// Lookup checks the nested tier first when inside a nested function, then
// falls back to the function tier. The second return is false when the
// name is bound in no visible tier.
func (s *SymbolTable) Lookup(name string) (catalog.TypeDescriptor, bool) {
	if s.depth > 0 {
		if td, ok := s.nested[name]; ok {
			return td, true
		}
	}
	td, ok := s.function[name]
	return td, ok
}

func (s *SymbolTable) EnterNested() {
	s.depth++
}

// ExitNested must pair with a prior EnterNested. An unpaired exit is a
// traversal bug in the caller, not a property of analyzed code, and
// panics.
func (s *SymbolTable) ExitNested() {
	if s.depth == 0 {
		panic("scope: ExitNested without matching EnterNested")
	}
	s.depth--
	if s.depth == 0 {
		s.nested = make(map[string]catalog.TypeDescriptor)
	}
}

func (s *SymbolTable) InNested() bool { return s.depth > 0 }
