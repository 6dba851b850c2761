// Package analysis drives the second pass: per file, per function, every
// name reference is resolved and classified into exactly one bucket:
// instantiation, call, state access, or rejected.
package analysis

import (
	"context"
	"log/slog"

	"github.com/whharris917/atlas-sub000/internal/catalog"
	"github.com/whharris917/atlas-sub000/internal/diag"
	"github.com/whharris917/atlas-sub000/internal/pyast"
	"github.com/whharris917/atlas-sub000/internal/resolve"
	"github.com/whharris917/atlas-sub000/internal/shared/observability"
	"github.com/whharris917/atlas-sub000/internal/typeinfer"
)

type Orchestrator struct {
	cat         *catalog.Catalog
	allow       catalog.Allowlist
	resolver    *resolve.Resolver
	infer       *typeinfer.Engine
	classifiers []CallClassifier
	sink        diag.Sink
	log         *slog.Logger
}

func NewOrchestrator(cat *catalog.Catalog, allow catalog.Allowlist, classifiers []CallClassifier, sink diag.Sink, log *slog.Logger) *Orchestrator {
	if sink == nil {
		sink = diag.Nop()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		cat:         cat,
		allow:       allow,
		resolver:    resolve.New(cat, allow),
		infer:       typeinfer.New(cat, allow),
		classifiers: classifiers,
		sink:        sink,
		log:         log,
	}
}

// Run analyzes every module against the frozen catalog. A failure inside
// one file degrades that file to an empty report and the run continues.
func (o *Orchestrator) Run(ctx context.Context, modules []*pyast.Module) []*ModuleReport {
	reports := make([]*ModuleReport, 0, len(modules))
	for _, mod := range modules {
		if ctx.Err() != nil {
			break
		}
		reports = append(reports, o.analyzeModule(mod))
	}
	return reports
}

func (o *Orchestrator) analyzeModule(mod *pyast.Module) (report *ModuleReport) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("module analysis failed", "module", mod.Name, "panic", r)
			observability.ParseFailures.Inc()
			report = &ModuleReport{Module: mod.Name, Imports: map[string]string{}}
		}
	}()

	aliases := catalog.ImportAliases(mod)
	report = &ModuleReport{Module: mod.Name, Imports: aliases}

	for _, stmt := range mod.Body {
		switch s := stmt.(type) {
		case *pyast.FunctionDef:
			report.Functions = append(report.Functions, o.analyzeFunction(mod, "", s, aliases))
		case *pyast.ClassDef:
			classFQN := mod.Name + "." + s.Name
			cr := ClassReport{Name: s.Name}
			for _, member := range s.Body {
				if fn, ok := member.(*pyast.FunctionDef); ok {
					cr.Methods = append(cr.Methods, o.analyzeFunction(mod, classFQN, fn, aliases))
				}
			}
			report.Classes = append(report.Classes, cr)
		case *pyast.Assign:
			for _, target := range s.Targets {
				if name, ok := target.(*pyast.Name); ok {
					report.ModuleState = append(report.ModuleState, StateItem{
						Name:  name.ID,
						Value: renderValue(s.Value),
					})
				}
			}
		}
	}
	return report
}

// activation bundles the per-function state: the resolution context (which
// owns the symbol table and cache) and the report recorder. All of it is
// discarded at function exit.
type activation struct {
	rctx *resolve.Context
	rec  *recorder
}

func (o *Orchestrator) analyzeFunction(mod *pyast.Module, classFQN string, fn *pyast.FunctionDef, aliases map[string]string) FunctionReport {
	observability.FunctionsAnalyzed.Inc()

	fnFQN := mod.Name + "." + fn.Name
	if classFQN != "" {
		fnFQN = classFQN + "." + fn.Name
	}

	args := make([]string, 0, len(fn.Params))
	for _, p := range fn.Params {
		args = append(args, p.Name)
	}

	act := &activation{
		rctx: resolve.NewContext(mod.Name, classFQN, fnFQN, aliases),
		rec:  newRecorder(fn.Name, args),
	}
	o.bindParams(act, fnFQN, fn)
	o.walkStmts(act, fn.Body)
	return act.rec.freeze()
}

// bindParams seeds the symbol table with the declared parameter types the
// catalog already resolved. The receiver stays unbound; the resolver's
// receiver rule covers it.
func (o *Orchestrator) bindParams(act *activation, fnFQN string, fn *pyast.FunctionDef) {
	entry, ok := o.cat.Functions[fnFQN]
	for _, p := range fn.Params {
		if p.Name == resolve.ReceiverName {
			continue
		}
		td := catalog.Unknown
		if ok {
			if declared, found := entry.ParamTypes[p.Name]; found {
				td = declared
			}
		}
		act.rctx.Symbols.Bind(p.Name, td)
	}
}

func (o *Orchestrator) walkStmts(act *activation, stmts []pyast.Stmt) {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *pyast.Assign:
			o.walkExpr(act, s.Value)
			td := o.infer.Infer(s.Value, act.rctx)
			if td.IsUnknown() && s.Annotation != "" {
				td = catalog.ResolveToken(catalog.NormalizeToken(s.Annotation), act.rctx.Module, act.rctx.Imports, o.cat, o.allow)
			}
			for _, target := range s.Targets {
				if name, ok := target.(*pyast.Name); ok {
					act.rctx.Symbols.Bind(name.ID, td)
				}
			}
		case *pyast.Return:
			o.walkExpr(act, s.Value)
		case *pyast.ExprStmt:
			o.walkExpr(act, s.Value)
		case *pyast.Block:
			for _, e := range s.Exprs {
				o.walkExpr(act, e)
			}
			o.walkStmts(act, s.Body)
		case *pyast.FunctionDef:
			// Nested functions are traversed but attributed to the
			// enclosing named function; they never get their own report.
			o.walkNested(act, s)
		}
	}
}

func (o *Orchestrator) walkNested(act *activation, fn *pyast.FunctionDef) {
	act.rctx.Symbols.EnterNested()
	defer act.rctx.Symbols.ExitNested()

	for _, p := range fn.Params {
		td := catalog.ResolveToken(catalog.NormalizeToken(p.Annotation), act.rctx.Module, act.rctx.Imports, o.cat, o.allow)
		act.rctx.Symbols.Bind(p.Name, td)
	}
	o.walkStmts(act, fn.Body)
}

func (o *Orchestrator) walkExpr(act *activation, expr pyast.Expr) {
	switch v := expr.(type) {
	case nil:
		return
	case *pyast.Call:
		if parts := pyast.DottedName(v.Func); parts != nil {
			o.classifyCall(act, parts)
		} else if attr, ok := v.Func.(*pyast.Attribute); ok {
			o.classifyExprCall(act, attr)
		} else {
			o.walkExpr(act, v.Func)
		}
		for _, arg := range v.Args {
			o.walkExpr(act, arg)
		}
	case *pyast.Attribute:
		if parts := pyast.DottedName(v); parts != nil {
			o.classifyLoad(act, parts)
		} else {
			o.walkExpr(act, v.Value)
		}
	case *pyast.Name:
		o.classifyLoad(act, []string{v.ID})
	case *pyast.Container:
		for _, e := range v.Elts {
			o.walkExpr(act, e)
		}
	case *pyast.Opaque:
		for _, e := range v.Children {
			o.walkExpr(act, e)
		}
	}
}

// classifyCall resolves a call target and files it into exactly one
// bucket. Plugins get first refusal; the default ladder is instantiation,
// call, then rejected.
func (o *Orchestrator) classifyCall(act *activation, parts []string) {
	fqn, ok := o.resolver.Resolve(parts, act.rctx)
	if !ok {
		fqn = ""
	}

	for _, c := range o.classifiers {
		if c.Classify(parts, fqn, act.rec) {
			observability.ResolutionsTotal.WithLabelValues("plugin").Inc()
			return
		}
	}
	o.fileCall(act, fqn, ok)
}

// classifyExprCall handles a call whose function is an attribute chain
// rooted in an expression rather than a name, such as a method invoked
// directly on an instantiation result. The base expression is walked for
// its own references first, then the trailing attributes are resolved
// against the base's inferred type.
func (o *Orchestrator) classifyExprCall(act *activation, fn *pyast.Attribute) {
	var attrs []string
	base := pyast.Expr(fn)
	for {
		a, ok := base.(*pyast.Attribute)
		if !ok {
			break
		}
		attrs = append([]string{a.Attr}, attrs...)
		base = a.Value
	}
	o.walkExpr(act, base)

	td := o.infer.Infer(base, act.rctx)
	fqn, ok := o.resolver.ResolveFrom(td, attrs)
	o.fileCall(act, fqn, ok)
}

// fileCall places a resolved call target into exactly one bucket:
// instantiation, call, or rejected.
func (o *Orchestrator) fileCall(act *activation, fqn string, ok bool) {
	switch {
	case !ok:
		observability.ResolutionsTotal.WithLabelValues("rejected").Inc()
	case o.isClassTarget(fqn):
		act.rec.AddInstantiation(fqn)
		observability.ResolutionsTotal.WithLabelValues("instantiation").Inc()
	case o.isCallTarget(fqn):
		act.rec.AddCall(fqn)
		observability.ResolutionsTotal.WithLabelValues("call").Inc()
	default:
		// Resolved, but to something in no catalog.
		observability.ResolutionsTotal.WithLabelValues("rejected").Inc()
	}
}

// classifyLoad records a bare read that reaches a module state entry. A
// local binding of the base name shadows module state.
func (o *Orchestrator) classifyLoad(act *activation, parts []string) {
	if _, bound := act.rctx.Symbols.Lookup(parts[0]); bound {
		return
	}
	fqn, ok := o.resolver.Resolve(parts, act.rctx)
	if !ok {
		return
	}
	if _, isState := o.cat.State[fqn]; isState {
		act.rec.AddState(fqn)
		observability.ResolutionsTotal.WithLabelValues("state").Inc()
	}
}

func (o *Orchestrator) isClassTarget(fqn string) bool {
	if _, ok := o.cat.Classes[fqn]; ok {
		return true
	}
	_, ok := o.cat.ExternalClasses[fqn]
	return ok
}

func (o *Orchestrator) isCallTarget(fqn string) bool {
	if _, ok := o.cat.Functions[fqn]; ok {
		return true
	}
	if _, ok := o.cat.ExternalFunctions[fqn]; ok {
		return true
	}
	return o.allow.Covers(fqn)
}

func renderValue(expr pyast.Expr) string {
	switch v := expr.(type) {
	case *pyast.Constant:
		return v.Raw
	case *pyast.Container:
		switch v.Kind {
		case pyast.ContainerList:
			return "[...]"
		case pyast.ContainerDict:
			return "{...}"
		case pyast.ContainerSet:
			return "{...}"
		default:
			return "(...)"
		}
	case *pyast.Call:
		if parts := pyast.DottedName(v.Func); parts != nil {
			return joinDotted(parts) + "(...)"
		}
		return "(...)"
	case *pyast.Name:
		return v.ID
	default:
		return ""
	}
}
