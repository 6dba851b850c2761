package catalog

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/whharris917/atlas-sub000/internal/diag"
	"github.com/whharris917/atlas-sub000/internal/pyast"
)

// Builder runs the reconnaissance pass: one walk over every module
// producing the immutable Catalog. Per-file fragments have no cross-file
// dependency, so they fan out across a worker group and merge by FQN.
type Builder struct {
	allow    Allowlist
	classify ClassifyExternal
	sink     diag.Sink
	log      *slog.Logger
}

func NewBuilder(allow Allowlist, classify ClassifyExternal, sink diag.Sink, log *slog.Logger) *Builder {
	if classify == nil {
		classify = DefaultClassifyExternal
	}
	if sink == nil {
		sink = diag.Nop()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Builder{allow: allow, classify: classify, sink: sink, log: log}
}

// rawType is an unresolved type source recorded during extraction. Exactly
// one field is set; resolution happens after the merge so suffix searches
// and annotation tokens see the whole program.
type rawType struct {
	prim   string // primitive tag from a literal
	callee string // dotted callee text from a call expression
	token  string // annotation token, normalized later
	param  string // __init__ parameter name whose declared type propagates
}

type rawClass struct {
	fqn     string
	module  string
	parents []string
	attrs   []rawAttr
	loc     pyast.Location
}

type rawAttr struct {
	name string
	src  rawType
}

type rawFunc struct {
	fqn     string
	module  string
	params  []rawParam
	returns string // raw return annotation
}

type rawParam struct {
	name  string
	token string
}

type rawState struct {
	fqn      string
	module   string
	src      rawType
	inferred bool
}

type fragment struct {
	module    string
	aliases   map[string]string
	classes   []rawClass
	funcs     []rawFunc
	state     []rawState
	externals []*ExternalEntry
}

// Build produces the whole-program Catalog. A panic while extracting one
// module degrades that module to an empty fragment; it never aborts the
// run.
func (b *Builder) Build(ctx context.Context, modules []*pyast.Module) (*Catalog, error) {
	fragments := make([]*fragment, len(modules))

	g, ctx := errgroup.WithContext(ctx)
	for i, mod := range modules {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fragments[i] = b.extractModule(mod)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return b.merge(fragments), nil
}

func (b *Builder) extractModule(mod *pyast.Module) (frag *fragment) {
	frag = &fragment{module: mod.Name, aliases: ImportAliases(mod)}
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("catalog extraction failed", "module", mod.Name, "panic", r)
			frag = &fragment{module: mod.Name, aliases: map[string]string{}}
		}
	}()

	b.extractExternals(mod, frag)

	for _, stmt := range mod.Body {
		switch s := stmt.(type) {
		case *pyast.ClassDef:
			b.extractClass(mod, s, frag)
		case *pyast.FunctionDef:
			frag.funcs = append(frag.funcs, rawFunction(mod.Name+"."+s.Name, mod.Name, s))
		case *pyast.Assign:
			b.extractState(mod, s, frag)
		}
	}
	return frag
}

func (b *Builder) extractExternals(mod *pyast.Module, frag *fragment) {
	for _, imp := range mod.Imports {
		if imp.Relative || imp.Name == "" || !b.allow.Covers(imp.Module) {
			continue
		}
		alias := imp.Alias
		if alias == "" {
			alias = imp.Name
		}
		entry := &ExternalEntry{
			FQN:        imp.Module + "." + imp.Name,
			Module:     imp.Module,
			LocalAlias: alias,
			Kind:       b.classify(imp.Name),
		}
		frag.externals = append(frag.externals, entry)
	}
}

func (b *Builder) extractClass(mod *pyast.Module, class *pyast.ClassDef, frag *fragment) {
	fqn := mod.Name + "." + class.Name

	rc := rawClass{fqn: fqn, module: mod.Name, loc: class.Location}
	for _, base := range class.Bases {
		if parts := pyast.DottedName(base); parts != nil {
			rc.parents = append(rc.parents, strings.Join(parts, "."))
		}
	}

	var classAttrs, ctorAttrs []rawAttr
	for _, stmt := range class.Body {
		switch s := stmt.(type) {
		case *pyast.FunctionDef:
			frag.funcs = append(frag.funcs, rawFunction(fqn+"."+s.Name, mod.Name, s))
			if s.Name == "__init__" {
				ctorAttrs = constructorAttributes(s)
			}
		case *pyast.Assign:
			// Class-level attribute declarations, annotated or assigned.
			for _, target := range s.Targets {
				name, ok := target.(*pyast.Name)
				if !ok {
					continue
				}
				classAttrs = append(classAttrs, rawAttr{name: name.ID, src: valueSource(s, nil)})
			}
		}
	}

	// A constructor assignment wins over a class-level declaration of the
	// same name, regardless of which appears first in the body.
	seen := make(map[string]bool, len(ctorAttrs))
	for _, a := range ctorAttrs {
		seen[a.name] = true
	}
	rc.attrs = ctorAttrs
	for _, a := range classAttrs {
		if seen[a.name] {
			continue
		}
		seen[a.name] = true
		rc.attrs = append(rc.attrs, a)
	}

	frag.classes = append(frag.classes, rc)
}

func rawFunction(fqn, module string, fn *pyast.FunctionDef) rawFunc {
	rf := rawFunc{fqn: fqn, module: module, returns: fn.Returns}
	for _, p := range fn.Params {
		if p.Name == "self" {
			continue
		}
		rf.params = append(rf.params, rawParam{name: p.Name, token: p.Annotation})
	}
	return rf
}

// constructorAttributes scans an __init__ body for `self.x = ...`
// assignment patterns. Literal constants become primitive tags, call
// expressions become instantiations, and a bare parameter name propagates
// that parameter's declared type.
func constructorAttributes(init *pyast.FunctionDef) []rawAttr {
	paramAnnotations := make(map[string]string, len(init.Params))
	for _, p := range init.Params {
		if p.Annotation != "" {
			paramAnnotations[p.Name] = p.Annotation
		}
	}

	var attrs []rawAttr
	seen := make(map[string]bool)

	var walk func(stmts []pyast.Stmt)
	walk = func(stmts []pyast.Stmt) {
		for _, stmt := range stmts {
			switch s := stmt.(type) {
			case *pyast.Assign:
				for _, target := range s.Targets {
					attr, ok := target.(*pyast.Attribute)
					if !ok {
						continue
					}
					base, ok := attr.Value.(*pyast.Name)
					if !ok || base.ID != "self" || seen[attr.Attr] {
						continue
					}
					seen[attr.Attr] = true
					attrs = append(attrs, rawAttr{name: attr.Attr, src: valueSource(s, paramAnnotations)})
				}
			case *pyast.Block:
				walk(s.Body)
			}
		}
	}
	walk(init.Body)
	return attrs
}

// valueSource derives the unresolved type source for an assignment,
// preferring an explicit annotation over value-shape guessing.
func valueSource(assign *pyast.Assign, paramAnnotations map[string]string) rawType {
	if assign.Annotation != "" {
		return rawType{token: assign.Annotation}
	}
	switch v := assign.Value.(type) {
	case *pyast.Constant:
		return rawType{prim: constantTag(v.Kind)}
	case *pyast.Container:
		return rawType{prim: containerTag(v.Kind)}
	case *pyast.Call:
		if parts := pyast.DottedName(v.Func); parts != nil {
			return rawType{callee: strings.Join(parts, ".")}
		}
	case *pyast.Name:
		if token, ok := paramAnnotations[v.ID]; ok {
			return rawType{token: token}
		}
	}
	return rawType{}
}

func (b *Builder) extractState(mod *pyast.Module, assign *pyast.Assign, frag *fragment) {
	for _, target := range assign.Targets {
		name, ok := target.(*pyast.Name)
		if !ok {
			continue
		}
		src := valueSource(assign, nil)
		frag.state = append(frag.state, rawState{
			fqn:      mod.Name + "." + name.ID,
			module:   mod.Name,
			src:      src,
			inferred: assign.Annotation == "" && (src.prim != "" || src.callee != ""),
		})
	}
}

func constantTag(kind pyast.ConstKind) string {
	switch kind {
	case pyast.ConstString:
		return "string"
	case pyast.ConstInt:
		return "int"
	case pyast.ConstFloat:
		return "float"
	case pyast.ConstBool:
		return "bool"
	default:
		return ""
	}
}

func containerTag(kind pyast.ContainerKind) string {
	switch kind {
	case pyast.ContainerList:
		return "list"
	case pyast.ContainerDict:
		return "dict"
	case pyast.ContainerSet:
		return "set"
	case pyast.ContainerTuple:
		return "tuple"
	default:
		return ""
	}
}

// merge unions the fragments into the final Catalog and then resolves
// parents and type tokens against the whole program. FQNs are unique by
// construction, so map union is order-independent.
func (b *Builder) merge(fragments []*fragment) *Catalog {
	cat := New()
	aliasesByModule := make(map[string]map[string]string, len(fragments))

	var classes []rawClass
	var funcs []rawFunc
	var state []rawState

	for _, frag := range fragments {
		if frag == nil {
			continue
		}
		aliasesByModule[frag.module] = frag.aliases
		classes = append(classes, frag.classes...)
		funcs = append(funcs, frag.funcs...)
		state = append(state, frag.state...)
		for _, ext := range frag.externals {
			switch ext.Kind {
			case ExternalClass:
				cat.ExternalClasses[ext.FQN] = ext
			default:
				cat.ExternalFunctions[ext.FQN] = ext
			}
		}
	}

	// Register shells first so token resolution sees every declaration.
	for _, rc := range classes {
		cat.Classes[rc.fqn] = &ClassEntry{FQN: rc.fqn, Attributes: make(map[string]TypeDescriptor)}
	}
	for _, rf := range funcs {
		cat.Functions[rf.fqn] = &FunctionEntry{FQN: rf.fqn, ParamTypes: make(map[string]TypeDescriptor)}
	}
	for _, rs := range state {
		cat.State[rs.fqn] = &StateEntry{FQN: rs.fqn}
	}

	sortedClassFQNs := make([]string, 0, len(cat.Classes))
	for fqn := range cat.Classes {
		sortedClassFQNs = append(sortedClassFQNs, fqn)
	}
	sort.Strings(sortedClassFQNs)

	for _, rc := range classes {
		entry := cat.Classes[rc.fqn]
		aliases := aliasesByModule[rc.module]
		for _, parent := range rc.parents {
			entry.Parents = append(entry.Parents, b.resolveParent(parent, rc, aliases, cat, sortedClassFQNs))
		}
		for _, attr := range rc.attrs {
			entry.Attributes[attr.name] = b.resolveSource(attr.src, rc.module, aliases, cat)
		}
	}

	for _, rf := range funcs {
		entry := cat.Functions[rf.fqn]
		aliases := aliasesByModule[rf.module]
		for _, p := range rf.params {
			entry.ParamTypes[p.name] = ResolveToken(NormalizeToken(p.token), rf.module, aliases, cat, b.allow)
		}
		entry.Return = ResolveToken(NormalizeToken(rf.returns), rf.module, aliases, cat, b.allow)
	}

	for _, rs := range state {
		entry := cat.State[rs.fqn]
		entry.Type = b.resolveSource(rs.src, rs.module, aliasesByModule[rs.module], cat)
		entry.InferredFromValue = rs.inferred
	}

	cat.indexPrefixes()
	return cat
}

func (b *Builder) resolveSource(src rawType, module string, aliases map[string]string, cat *Catalog) TypeDescriptor {
	switch {
	case src.prim != "":
		return Primitive(src.prim)
	case src.callee != "":
		return resolveCallee(src.callee, module, aliases, cat, b.allow)
	case src.token != "":
		return ResolveToken(NormalizeToken(src.token), module, aliases, cat, b.allow)
	default:
		return Unknown
	}
}

// resolveCallee maps the dotted callee of a constructor-pattern call to the
// instantiated type. Unresolved callees fall back to the current module,
// unvalidated, matching the resolver's forward-reference tolerance.
func resolveCallee(dotted, module string, aliases map[string]string, cat *Catalog, allow Allowlist) TypeDescriptor {
	first, rest, cut := strings.Cut(dotted, ".")
	if target, ok := aliases[first]; ok {
		full := target
		if cut {
			full = target + "." + rest
		}
		if _, found := cat.ExternalClasses[full]; found {
			return External(full)
		}
		if allow.Covers(full) {
			return External(full)
		}
		return Internal(full)
	}
	if local := module + "." + dotted; cat.Known(local) {
		return Internal(local)
	}
	if cat.Known(dotted) {
		return Internal(dotted)
	}
	return Internal(module + "." + dotted)
}

// resolveParent implements the inheritance edge policy: same-module match
// first, then first-match-by-suffix across all modules, else the literal
// name is kept. An unresolvable parent is never an error.
func (b *Builder) resolveParent(parent string, rc rawClass, aliases map[string]string, cat *Catalog, sortedClassFQNs []string) string {
	if first, rest, cut := strings.Cut(parent, "."); cut {
		if target, ok := aliases[first]; ok {
			candidate := target + "." + rest
			if _, found := cat.Classes[candidate]; found {
				return candidate
			}
		}
	} else if target, ok := aliases[first]; ok {
		if _, found := cat.Classes[target]; found {
			return target
		}
	}

	if local := rc.module + "." + parent; cat.Classes[local] != nil {
		return local
	}
	if cat.Classes[parent] != nil {
		return parent
	}

	suffix := "." + parent
	var matches []string
	for _, fqn := range sortedClassFQNs {
		if strings.HasSuffix(fqn, suffix) {
			matches = append(matches, fqn)
		}
	}
	if len(matches) > 1 {
		b.sink.Emit(diag.Event{
			Kind:     diag.AmbiguousInheritance,
			Module:   rc.module,
			Symbol:   rc.fqn,
			Detail:   "parent " + parent + " matches " + strings.Join(matches, ", "),
			Location: rc.loc,
		})
	}
	if len(matches) > 0 {
		return matches[0]
	}
	return parent
}

// ImportAliases builds the local-name import map for one module: plain
// imports bind their path (and its first segment for attribute-style use),
// from-imports bind the imported name, aliases win over defaults. Relative
// imports resolve against the module's parent package, best effort.
func ImportAliases(mod *pyast.Module) map[string]string {
	aliases := make(map[string]string, len(mod.Imports))
	for _, imp := range mod.Imports {
		source := imp.Module
		if imp.Relative {
			parent := parentPackage(mod.Name)
			switch {
			case source == "":
				source = parent
			case parent == "":
				// Relative import at top level; keep the bare path.
			default:
				source = parent + "." + source
			}
		}

		if imp.Name != "" {
			alias := imp.Alias
			if alias == "" {
				alias = imp.Name
			}
			target := imp.Name
			if source != "" {
				target = source + "." + imp.Name
			}
			aliases[alias] = target
			continue
		}

		if imp.Alias != "" {
			aliases[imp.Alias] = source
			continue
		}
		aliases[source] = source
		if first, _, ok := strings.Cut(source, "."); ok {
			if _, exists := aliases[first]; !exists {
				aliases[first] = first
			}
		}
	}
	return aliases
}

func parentPackage(module string) string {
	if idx := strings.LastIndex(module, "."); idx >= 0 {
		return module[:idx]
	}
	return ""
}
