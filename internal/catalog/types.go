// Package catalog builds and holds the immutable whole-program index
// produced by the first analysis pass. Everything downstream (type
// inference, name resolution, the orchestrator) reads it and nothing
// writes it after Build returns.
package catalog

import "strings"

type TypeKind int

const (
	KindUnknown TypeKind = iota
	KindPrimitive
	KindInternal
	KindExternal
)

// TypeDescriptor is the best type information the engine carries for a
// value: an internal FQN, an external-namespace FQN, a primitive tag, or
// nothing. Unvalidated tokens kept from annotations travel as KindInternal;
// resolution simply fails on them later if they name nothing.
type TypeDescriptor struct {
	Kind  TypeKind
	Value string
}

var Unknown = TypeDescriptor{}

func Primitive(tag string) TypeDescriptor { return TypeDescriptor{Kind: KindPrimitive, Value: tag} }
func Internal(fqn string) TypeDescriptor  { return TypeDescriptor{Kind: KindInternal, Value: fqn} }
func External(fqn string) TypeDescriptor  { return TypeDescriptor{Kind: KindExternal, Value: fqn} }

// FQN returns the dotted name a chain walk can continue on, or "" when the
// descriptor carries no resolvable name (primitives and Unknown).
func (t TypeDescriptor) FQN() string {
	if t.Kind == KindInternal || t.Kind == KindExternal {
		return t.Value
	}
	return ""
}

func (t TypeDescriptor) IsUnknown() bool { return t.Kind == KindUnknown }

type ClassEntry struct {
	FQN        string
	Parents    []string // parent FQNs, or unresolved literal names
	Attributes map[string]TypeDescriptor
}

type FunctionEntry struct {
	FQN        string
	ParamTypes map[string]TypeDescriptor
	Return     TypeDescriptor
}

type StateEntry struct {
	FQN               string
	Type              TypeDescriptor
	InferredFromValue bool
}

type ExternalKind int

const (
	ExternalClass ExternalKind = iota
	ExternalFunction
)

type ExternalEntry struct {
	FQN        string
	Module     string
	LocalAlias string
	Kind       ExternalKind
}

type Catalog struct {
	Classes           map[string]*ClassEntry
	Functions         map[string]*FunctionEntry
	State             map[string]*StateEntry
	ExternalClasses   map[string]*ExternalEntry
	ExternalFunctions map[string]*ExternalEntry

	// Module paths are not entries themselves, but attribute chains still
	// walk through them (`pkg.mod.helper`). merge records every dotted
	// prefix of every FQN so the chain walker can tell a module path from
	// a dead end.
	prefixes map[string]bool
}

func New() *Catalog {
	return &Catalog{
		Classes:           make(map[string]*ClassEntry),
		Functions:         make(map[string]*FunctionEntry),
		State:             make(map[string]*StateEntry),
		ExternalClasses:   make(map[string]*ExternalEntry),
		ExternalFunctions: make(map[string]*ExternalEntry),
		prefixes:          make(map[string]bool),
	}
}

// KnownPrefix reports whether path is a strict dotted prefix of at least
// one cataloged FQN.
func (c *Catalog) KnownPrefix(path string) bool {
	return c.prefixes[path]
}

// Reindex recomputes the dotted-prefix index. Build does this itself;
// callers assembling a catalog by hand must call it before resolving.
func (c *Catalog) Reindex() {
	c.prefixes = make(map[string]bool)
	c.indexPrefixes()
}

func (c *Catalog) indexPrefixes() {
	add := func(fqn string) {
		for {
			idx := strings.LastIndex(fqn, ".")
			if idx < 0 {
				return
			}
			fqn = fqn[:idx]
			if c.prefixes[fqn] {
				return
			}
			c.prefixes[fqn] = true
		}
	}
	for fqn := range c.Classes {
		add(fqn)
	}
	for fqn := range c.Functions {
		add(fqn)
	}
	for fqn := range c.State {
		add(fqn)
	}
	for fqn := range c.ExternalClasses {
		add(fqn)
	}
	for fqn := range c.ExternalFunctions {
		add(fqn)
	}
}

func (c *Catalog) Class(fqn string) (*ClassEntry, bool) {
	e, ok := c.Classes[fqn]
	return e, ok
}

func (c *Catalog) Function(fqn string) (*FunctionEntry, bool) {
	e, ok := c.Functions[fqn]
	return e, ok
}

func (c *Catalog) StateVar(fqn string) (*StateEntry, bool) {
	e, ok := c.State[fqn]
	return e, ok
}

func (c *Catalog) ExternalClass(fqn string) (*ExternalEntry, bool) {
	e, ok := c.ExternalClasses[fqn]
	return e, ok
}

// Known reports whether the FQN names anything in any catalog map.
func (c *Catalog) Known(fqn string) bool {
	if _, ok := c.Classes[fqn]; ok {
		return true
	}
	if _, ok := c.Functions[fqn]; ok {
		return true
	}
	if _, ok := c.State[fqn]; ok {
		return true
	}
	if _, ok := c.ExternalClasses[fqn]; ok {
		return true
	}
	_, ok := c.ExternalFunctions[fqn]
	return ok
}

// Allowlist is the configured set of external namespaces whose members may
// be cataloged and resolved without source access, plus the per-namespace
// attribute members accepted on external classes.
type Allowlist struct {
	Namespaces []string
	Members    map[string][]string
}

// Covers reports whether the dotted module path falls under an allow-listed
// namespace prefix.
func (a Allowlist) Covers(module string) bool {
	for _, ns := range a.Namespaces {
		if module == ns || strings.HasPrefix(module, ns+".") {
			return true
		}
	}
	return false
}

// Namespace returns the allow-listed prefix covering the dotted path, or "".
func (a Allowlist) Namespace(path string) string {
	for _, ns := range a.Namespaces {
		if path == ns || strings.HasPrefix(path, ns+".") {
			return ns
		}
	}
	return ""
}

// Member reports whether attr is a known member for the namespace covering
// the given external path. Unknown attributes on external classes are
// rejected, never guessed.
func (a Allowlist) Member(path, attr string) bool {
	ns := a.Namespace(path)
	if ns == "" {
		return false
	}
	for _, m := range a.Members[ns] {
		if m == attr {
			return true
		}
	}
	return false
}

// ClassifyExternal decides whether an imported external name is a class or
// a function. The default is a naming-convention heuristic: capitalized
// with no underscore means class. It is swappable so callers can pin known
// exceptions instead of scattering string checks.
type ClassifyExternal func(name string) ExternalKind

func DefaultClassifyExternal(name string) ExternalKind {
	if name == "" {
		return ExternalFunction
	}
	first := rune(name[0])
	if first >= 'A' && first <= 'Z' && !strings.Contains(name, "_") {
		return ExternalClass
	}
	return ExternalFunction
}
