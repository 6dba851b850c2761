// Package resolve turns dotted name references into stable FQNs. It layers
// the per-activation symbol table, the receiver binding, the import alias
// map and the external catalog over an unvalidated module fallback, then
// walks multi-part chains one attribute at a time through the catalog's
// type and inheritance information.
package resolve

import (
	"sort"
	"strings"

	"github.com/whharris917/atlas-sub000/internal/catalog"
	"github.com/whharris917/atlas-sub000/internal/scope"
	"github.com/whharris917/atlas-sub000/internal/typeinfer"
)

// ReceiverName is the implicit first parameter of an instance method.
const ReceiverName = "self"

// Context is the ephemeral state of one function activation. It is created
// at function entry and discarded at exit; the resolution cache inside it
// never outlives the activation.
type Context struct {
	Module      string
	ClassFQN    string // "" outside any class
	FunctionFQN string
	Imports     map[string]string // local name -> FQN or namespace
	Symbols     *scope.SymbolTable

	cache map[string]cacheEntry
}

type cacheEntry struct {
	fqn string
	ok  bool
}

func NewContext(module, classFQN, functionFQN string, imports map[string]string) *Context {
	if imports == nil {
		imports = map[string]string{}
	}
	return &Context{
		Module:      module,
		ClassFQN:    classFQN,
		FunctionFQN: functionFQN,
		Imports:     imports,
		Symbols:     scope.NewSymbolTable(),
		cache:       make(map[string]cacheEntry),
	}
}

// Context doubles as the inference environment for its activation.
var _ typeinfer.Env = (*Context)(nil)

func (c *Context) LocalType(name string) (catalog.TypeDescriptor, bool) {
	return c.Symbols.Lookup(name)
}

func (c *Context) AliasTarget(name string) (string, bool) {
	target, ok := c.Imports[name]
	return target, ok
}

func (c *Context) ModuleName() string { return c.Module }

type Resolver struct {
	cat   *catalog.Catalog
	allow catalog.Allowlist
}

func New(cat *catalog.Catalog, allow catalog.Allowlist) *Resolver {
	return &Resolver{cat: cat, allow: allow}
}

// Resolve maps nameParts to an FQN, or reports failure. Identical
// (nameParts, context) pairs always produce the same answer; repeats
// within one activation short-circuit through the context cache.
func (r *Resolver) Resolve(parts []string, ctx *Context) (string, bool) {
	if len(parts) == 0 || parts[0] == "" {
		return "", false
	}

	key := strings.Join(parts, ".")
	if hit, ok := ctx.cache[key]; ok {
		return hit.fqn, hit.ok
	}

	fqn, ok := r.resolve(parts, ctx)
	ctx.cache[key] = cacheEntry{fqn: fqn, ok: ok}
	return fqn, ok
}

// ResolveFrom walks attrs starting from an already-typed base, skipping
// the name ladder. Chains rooted in an expression rather than a name,
// such as a method called on an instantiation result, enter here.
func (r *Resolver) ResolveFrom(base catalog.TypeDescriptor, attrs []string) (string, bool) {
	cur := base.FQN()
	if cur == "" || len(attrs) == 0 {
		return "", false
	}
	for _, attr := range attrs {
		var ok bool
		cur, ok = r.step(cur, attr)
		if !ok {
			return "", false
		}
	}
	return cur, true
}

func (r *Resolver) resolve(parts []string, ctx *Context) (string, bool) {
	cur, ok := r.resolveSingle(parts[0], ctx)
	if !ok {
		return "", false
	}
	for _, attr := range parts[1:] {
		cur, ok = r.step(cur, attr)
		if !ok {
			// A failed step aborts the whole chain, never a partial FQN.
			return "", false
		}
	}
	return cur, true
}

// resolveSingle tries the fixed priority ladder. The module fallback is
// deliberately unvalidated against the catalog: it preserves tolerance for
// forward references to declarations the catalog never saw, so it must run
// last.
func (r *Resolver) resolveSingle(name string, ctx *Context) (string, bool) {
	// 1. A local binding always wins, including over an import alias of
	// the same name. An untyped local still shadows everything below.
	if td, bound := ctx.Symbols.Lookup(name); bound {
		if fqn := td.FQN(); fqn != "" {
			return fqn, true
		}
		return "", false
	}

	// 2. Receiver reference. Outside a method body the receiver name
	// means nothing; it never reaches the module fallback.
	if name == ReceiverName {
		if ctx.ClassFQN != "" {
			return ctx.ClassFQN, true
		}
		return "", false
	}

	// 3. Import alias, then external-catalog local alias.
	if target, ok := ctx.Imports[name]; ok {
		return target, true
	}
	if fqn, ok := r.externalByAlias(name); ok {
		return fqn, true
	}

	// 4. Module fallback.
	return ctx.Module + "." + name, true
}

func (r *Resolver) externalByAlias(alias string) (string, bool) {
	var matches []string
	for fqn, entry := range r.cat.ExternalClasses {
		if entry.LocalAlias == alias {
			matches = append(matches, fqn)
		}
	}
	for fqn, entry := range r.cat.ExternalFunctions {
		if entry.LocalAlias == alias {
			matches = append(matches, fqn)
		}
	}
	if len(matches) == 0 {
		return "", false
	}
	sort.Strings(matches)
	return matches[0], true
}
