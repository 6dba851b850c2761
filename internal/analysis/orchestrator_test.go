package analysis

import (
	"context"
	"testing"

	"github.com/whharris917/atlas-sub000/internal/catalog"
	"github.com/whharris917/atlas-sub000/internal/pyast"
)

func name(id string) *pyast.Name { return &pyast.Name{ID: id} }

func attr(base pyast.Expr, parts ...string) pyast.Expr {
	out := base
	for _, p := range parts {
		out = &pyast.Attribute{Value: out, Attr: p}
	}
	return out
}

func call(fn pyast.Expr, args ...pyast.Expr) *pyast.Call {
	return &pyast.Call{Func: fn, Args: args}
}

func exprStmt(e pyast.Expr) pyast.Stmt { return &pyast.ExprStmt{Value: e} }

// modelsModule declares app.models: class User {__init__, rename}, state
// count = 0.
func modelsModule() *pyast.Module {
	return &pyast.Module{
		Name: "app.models",
		Body: []pyast.Stmt{
			&pyast.ClassDef{
				Name: "User",
				Body: []pyast.Stmt{
					&pyast.FunctionDef{Name: "__init__", Params: []pyast.Param{{Name: "self"}}},
					&pyast.FunctionDef{
						Name:   "rename",
						Params: []pyast.Param{{Name: "self"}, {Name: "value", Annotation: "str"}},
					},
				},
			},
			&pyast.Assign{
				Targets: []pyast.Expr{name("count")},
				Value:   &pyast.Constant{Kind: pyast.ConstInt, Raw: "0"},
			},
		},
	}
}

func analyze(t *testing.T, modules ...*pyast.Module) map[string]*ModuleReport {
	t.Helper()
	allow := catalog.Allowlist{}
	cat, err := catalog.NewBuilder(allow, nil, nil, nil).Build(context.Background(), modules)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	orch := NewOrchestrator(cat, allow, []CallClassifier{NewEmitDetector(nil)}, nil, nil)

	byModule := make(map[string]*ModuleReport)
	for _, report := range orch.Run(context.Background(), modules) {
		byModule[report.Module] = report
	}
	return byModule
}

func findFunction(t *testing.T, report *ModuleReport, fnName string) FunctionReport {
	t.Helper()
	for _, fn := range report.Functions {
		if fn.Name == fnName {
			return fn
		}
	}
	t.Fatalf("function %s not in report %+v", fnName, report)
	return FunctionReport{}
}

func TestInstantiationThenMethodCall(t *testing.T) {
	main := &pyast.Module{
		Name: "app.main",
		Imports: []*pyast.Import{
			{Module: "app.models", Name: "User"},
		},
		Body: []pyast.Stmt{
			&pyast.FunctionDef{
				Name: "handler",
				Body: []pyast.Stmt{
					&pyast.Assign{Targets: []pyast.Expr{name("u")}, Value: call(name("User"))},
					exprStmt(call(attr(name("u"), "rename"), &pyast.Constant{Kind: pyast.ConstString, Raw: "\"x\""})),
				},
			},
		},
	}

	reports := analyze(t, modelsModule(), main)
	handler := findFunction(t, reports["app.main"], "handler")

	if len(handler.Instantiations) != 1 || handler.Instantiations[0] != "app.models.User" {
		t.Errorf("Instantiations = %v, expected [app.models.User]", handler.Instantiations)
	}
	if len(handler.Calls) != 1 || handler.Calls[0] != "app.models.User.rename" {
		t.Errorf("Calls = %v, expected [app.models.User.rename]", handler.Calls)
	}
}

func TestChainedCallOnInstantiation(t *testing.T) {
	main := &pyast.Module{
		Name: "app.main",
		Imports: []*pyast.Import{
			{Module: "app.models", Name: "User"},
		},
		Body: []pyast.Stmt{
			&pyast.FunctionDef{
				Name: "maker",
				Body: []pyast.Stmt{
					&pyast.Return{Value: call(attr(call(name("User")), "rename"))},
				},
			},
		},
	}

	reports := analyze(t, modelsModule(), main)
	maker := findFunction(t, reports["app.main"], "maker")

	if len(maker.Instantiations) != 1 || maker.Instantiations[0] != "app.models.User" {
		t.Errorf("Instantiations = %v, expected [app.models.User]", maker.Instantiations)
	}
	if len(maker.Calls) != 1 || maker.Calls[0] != "app.models.User.rename" {
		t.Errorf("Calls = %v, expected the method on the fresh instance to classify", maker.Calls)
	}
}

func TestModuleStateAccessAndShadowing(t *testing.T) {
	main := &pyast.Module{
		Name: "app.main",
		Imports: []*pyast.Import{
			{Module: "app.models"},
		},
		Body: []pyast.Stmt{
			&pyast.Assign{
				Targets: []pyast.Expr{name("settings")},
				Value:   &pyast.Container{Kind: pyast.ContainerDict},
			},
			&pyast.FunctionDef{
				Name: "reader",
				Body: []pyast.Stmt{
					exprStmt(name("settings")),
					exprStmt(attr(name("app"), "models", "count")),
				},
			},
			&pyast.FunctionDef{
				Name: "shadower",
				Body: []pyast.Stmt{
					&pyast.Assign{
						Targets: []pyast.Expr{name("settings")},
						Value:   &pyast.Container{Kind: pyast.ContainerList},
					},
					exprStmt(name("settings")),
				},
			},
		},
	}

	reports := analyze(t, modelsModule(), main)

	reader := findFunction(t, reports["app.main"], "reader")
	expected := map[string]bool{"app.main.settings": true, "app.models.count": true}
	if len(reader.AccessedState) != 2 {
		t.Fatalf("AccessedState = %v, expected both state reads", reader.AccessedState)
	}
	for _, fqn := range reader.AccessedState {
		if !expected[fqn] {
			t.Errorf("unexpected state access %q", fqn)
		}
	}

	shadower := findFunction(t, reports["app.main"], "shadower")
	if len(shadower.AccessedState) != 0 {
		t.Errorf("AccessedState = %v, expected the local binding to shadow module state", shadower.AccessedState)
	}
}

func TestRepeatedTargetRecordedOnce(t *testing.T) {
	main := &pyast.Module{
		Name: "app.main",
		Imports: []*pyast.Import{
			{Module: "app.models", Name: "User"},
		},
		Body: []pyast.Stmt{
			&pyast.FunctionDef{
				Name: "loop",
				Body: []pyast.Stmt{
					exprStmt(call(name("User"))),
					exprStmt(call(name("User"))),
					exprStmt(call(name("User"))),
				},
			},
		},
	}

	reports := analyze(t, modelsModule(), main)
	loop := findFunction(t, reports["app.main"], "loop")
	if len(loop.Instantiations) != 1 {
		t.Errorf("Instantiations = %v, expected exactly one entry for repeated target", loop.Instantiations)
	}
}

func TestMethodReportUsesReceiver(t *testing.T) {
	main := &pyast.Module{
		Name: "app.main",
		Imports: []*pyast.Import{
			{Module: "app.models", Name: "User"},
		},
		Body: []pyast.Stmt{
			&pyast.ClassDef{
				Name: "Service",
				Body: []pyast.Stmt{
					&pyast.FunctionDef{
						Name:   "__init__",
						Params: []pyast.Param{{Name: "self"}},
						Body: []pyast.Stmt{
							&pyast.Assign{
								Targets: []pyast.Expr{attr(name("self"), "user")},
								Value:   call(name("User")),
							},
						},
					},
					&pyast.FunctionDef{
						Name:   "run",
						Params: []pyast.Param{{Name: "self"}},
						Body: []pyast.Stmt{
							exprStmt(call(attr(name("self"), "user", "rename"))),
						},
					},
				},
			},
		},
	}

	reports := analyze(t, modelsModule(), main)
	var run FunctionReport
	for _, class := range reports["app.main"].Classes {
		for _, method := range class.Methods {
			if method.Name == "run" {
				run = method
			}
		}
	}
	if len(run.Calls) != 1 || run.Calls[0] != "app.models.User.rename" {
		t.Errorf("run.Calls = %v, expected the chain through the typed attribute", run.Calls)
	}
}

func TestNestedFunctionAttributedToEnclosing(t *testing.T) {
	main := &pyast.Module{
		Name: "app.main",
		Imports: []*pyast.Import{
			{Module: "app.models", Name: "User"},
		},
		Body: []pyast.Stmt{
			&pyast.FunctionDef{
				Name: "outer",
				Body: []pyast.Stmt{
					&pyast.FunctionDef{
						Name:   "inner",
						Params: []pyast.Param{{Name: "u", Annotation: "User"}},
						Body: []pyast.Stmt{
							exprStmt(call(attr(name("u"), "rename"))),
						},
					},
				},
			},
		},
	}

	reports := analyze(t, modelsModule(), main)
	report := reports["app.main"]
	if len(report.Functions) != 1 {
		t.Fatalf("Functions = %d, expected only the enclosing function to report", len(report.Functions))
	}
	outer := report.Functions[0]
	if len(outer.Calls) != 1 || outer.Calls[0] != "app.models.User.rename" {
		t.Errorf("outer.Calls = %v, expected the nested call attributed to outer", outer.Calls)
	}
}

func TestEmitVerbDetection(t *testing.T) {
	main := &pyast.Module{
		Name: "app.main",
		Body: []pyast.Stmt{
			&pyast.FunctionDef{
				Name: "notifier",
				Body: []pyast.Stmt{
					exprStmt(call(attr(name("bus"), "emit"), &pyast.Constant{Kind: pyast.ConstString, Raw: "\"done\""})),
				},
			},
		},
	}

	reports := analyze(t, modelsModule(), main)
	notifier := findFunction(t, reports["app.main"], "notifier")
	if len(notifier.Emits) != 1 || notifier.Emits[0] != "bus.emit" {
		t.Errorf("Emits = %v, expected [bus.emit]", notifier.Emits)
	}
	if len(notifier.Calls) != 0 {
		t.Errorf("Calls = %v, expected the emit not to double-count as a call", notifier.Calls)
	}
}

func TestModuleStateItemsRendered(t *testing.T) {
	main := &pyast.Module{
		Name: "app.main",
		Body: []pyast.Stmt{
			&pyast.Assign{Targets: []pyast.Expr{name("limit")}, Value: &pyast.Constant{Kind: pyast.ConstInt, Raw: "10"}},
			&pyast.Assign{Targets: []pyast.Expr{name("cache")}, Value: &pyast.Container{Kind: pyast.ContainerDict}},
		},
	}

	reports := analyze(t, main)
	items := reports["app.main"].ModuleState
	if len(items) != 2 {
		t.Fatalf("ModuleState = %v, expected two items", items)
	}
	if items[0].Name != "limit" || items[0].Value != "10" {
		t.Errorf("items[0] = %+v, expected limit = 10", items[0])
	}
	if items[1].Name != "cache" || items[1].Value != "{...}" {
		t.Errorf("items[1] = %+v, expected cache = {...}", items[1])
	}
}
