// Package typeinfer derives best-effort TypeDescriptors from expression
// shapes. It reads the Catalog and whatever bindings the caller exposes
// through Env; it never fails loudly; any input it cannot make sense of
// is Unknown.
package typeinfer

import (
	"strings"

	"github.com/whharris917/atlas-sub000/internal/catalog"
	"github.com/whharris917/atlas-sub000/internal/pyast"
)

// Env exposes the activation-local facts inference may use: current
// bindings, the import alias map, and the module being analyzed.
type Env interface {
	LocalType(name string) (catalog.TypeDescriptor, bool)
	AliasTarget(name string) (string, bool)
	ModuleName() string
}

type Engine struct {
	cat   *catalog.Catalog
	allow catalog.Allowlist
}

func New(cat *catalog.Catalog, allow catalog.Allowlist) *Engine {
	return &Engine{cat: cat, allow: allow}
}

// Infer produces the TypeDescriptor for an assignment right-hand side or
// call expression. Malformed or unmodeled input yields Unknown, never a
// panic.
func (e *Engine) Infer(expr pyast.Expr, env Env) (td catalog.TypeDescriptor) {
	defer func() {
		if recover() != nil {
			td = catalog.Unknown
		}
	}()
	return e.infer(expr, env)
}

func (e *Engine) infer(expr pyast.Expr, env Env) catalog.TypeDescriptor {
	switch v := expr.(type) {
	case *pyast.Constant:
		return constantType(v.Kind)
	case *pyast.Container:
		return containerType(v.Kind)
	case *pyast.Name:
		if td, ok := env.LocalType(v.ID); ok {
			return td
		}
		return catalog.Unknown
	case *pyast.Call:
		return e.inferCall(v, env)
	default:
		return catalog.Unknown
	}
}

// inferCall resolves the callee just far enough to distinguish an
// instantiation (callee is a cataloged class) from a call (callee is a
// cataloged function, whose declared return type propagates).
func (e *Engine) inferCall(call *pyast.Call, env Env) catalog.TypeDescriptor {
	parts := pyast.DottedName(call.Func)
	if len(parts) == 0 {
		return catalog.Unknown
	}

	for _, candidate := range e.calleeCandidates(parts, env) {
		if _, ok := e.cat.Classes[candidate]; ok {
			return catalog.Internal(candidate)
		}
		if _, ok := e.cat.ExternalClasses[candidate]; ok {
			return catalog.External(candidate)
		}
		if fn, ok := e.cat.Functions[candidate]; ok {
			return fn.Return
		}
		if _, ok := e.cat.ExternalFunctions[candidate]; ok {
			return catalog.Unknown
		}
	}
	return catalog.Unknown
}

// calleeCandidates lists the FQNs a dotted callee could name, most
// specific first: the local binding's type, the import alias expansion,
// then the module fallback.
func (e *Engine) calleeCandidates(parts []string, env Env) []string {
	first, rest := parts[0], parts[1:]
	var candidates []string

	if td, ok := env.LocalType(first); ok {
		if base := td.FQN(); base != "" {
			candidates = append(candidates, joinParts(base, rest))
		}
		// A typed local shadows aliases and module names outright.
		return candidates
	}

	if target, ok := env.AliasTarget(first); ok {
		candidates = append(candidates, joinParts(target, rest))
	}
	dotted := strings.Join(parts, ".")
	candidates = append(candidates, env.ModuleName()+"."+dotted, dotted)
	return candidates
}

func joinParts(base string, rest []string) string {
	if len(rest) == 0 {
		return base
	}
	return base + "." + strings.Join(rest, ".")
}

func constantType(kind pyast.ConstKind) catalog.TypeDescriptor {
	switch kind {
	case pyast.ConstString:
		return catalog.Primitive("string")
	case pyast.ConstInt:
		return catalog.Primitive("int")
	case pyast.ConstFloat:
		return catalog.Primitive("float")
	case pyast.ConstBool:
		return catalog.Primitive("bool")
	default:
		return catalog.Unknown
	}
}

func containerType(kind pyast.ContainerKind) catalog.TypeDescriptor {
	switch kind {
	case pyast.ContainerList:
		return catalog.Primitive("list")
	case pyast.ContainerDict:
		return catalog.Primitive("dict")
	case pyast.ContainerSet:
		return catalog.Primitive("set")
	case pyast.ContainerTuple:
		return catalog.Primitive("tuple")
	default:
		return catalog.Unknown
	}
}
