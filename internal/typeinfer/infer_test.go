package typeinfer

import (
	"testing"

	"github.com/whharris917/atlas-sub000/internal/catalog"
	"github.com/whharris917/atlas-sub000/internal/pyast"
)

type fakeEnv struct {
	locals  map[string]catalog.TypeDescriptor
	aliases map[string]string
	module  string
}

func (e fakeEnv) LocalType(name string) (catalog.TypeDescriptor, bool) {
	td, ok := e.locals[name]
	return td, ok
}

func (e fakeEnv) AliasTarget(name string) (string, bool) {
	target, ok := e.aliases[name]
	return target, ok
}

func (e fakeEnv) ModuleName() string { return e.module }

func testCatalog() *catalog.Catalog {
	cat := catalog.New()
	cat.Classes["app.models.User"] = &catalog.ClassEntry{FQN: "app.models.User"}
	cat.Functions["app.models.load_user"] = &catalog.FunctionEntry{
		FQN:    "app.models.load_user",
		Return: catalog.Internal("app.models.User"),
	}
	cat.Functions["app.models.touch"] = &catalog.FunctionEntry{FQN: "app.models.touch"}
	cat.ExternalClasses["pathlib.Path"] = &catalog.ExternalEntry{
		FQN: "pathlib.Path", Module: "pathlib", LocalAlias: "Path", Kind: catalog.ExternalClass,
	}
	return cat
}

func TestInferConstantsAndContainers(t *testing.T) {
	eng := New(testCatalog(), catalog.Allowlist{})
	env := fakeEnv{module: "app.models"}

	tests := []struct {
		expr     pyast.Expr
		expected catalog.TypeDescriptor
	}{
		{&pyast.Constant{Kind: pyast.ConstString}, catalog.Primitive("string")},
		{&pyast.Constant{Kind: pyast.ConstInt}, catalog.Primitive("int")},
		{&pyast.Constant{Kind: pyast.ConstBool}, catalog.Primitive("bool")},
		{&pyast.Container{Kind: pyast.ContainerList}, catalog.Primitive("list")},
		{&pyast.Container{Kind: pyast.ContainerDict}, catalog.Primitive("dict")},
	}
	for _, tt := range tests {
		got := eng.Infer(tt.expr, env)
		if got != tt.expected {
			t.Errorf("Infer(%T) = %v, expected %v", tt.expr, got, tt.expected)
		}
	}
}

func TestInferClassCallIsInstantiation(t *testing.T) {
	eng := New(testCatalog(), catalog.Allowlist{})
	env := fakeEnv{module: "app.models"}

	got := eng.Infer(&pyast.Call{Func: &pyast.Name{ID: "User"}}, env)
	if got != catalog.Internal("app.models.User") {
		t.Errorf("Infer(User()) = %v, expected internal app.models.User", got)
	}
}

func TestInferFunctionCallPropagatesReturnType(t *testing.T) {
	eng := New(testCatalog(), catalog.Allowlist{})
	env := fakeEnv{module: "app.models"}

	got := eng.Infer(&pyast.Call{Func: &pyast.Name{ID: "load_user"}}, env)
	if got != catalog.Internal("app.models.User") {
		t.Errorf("Infer(load_user()) = %v, expected declared return app.models.User", got)
	}

	got = eng.Infer(&pyast.Call{Func: &pyast.Name{ID: "touch"}}, env)
	if !got.IsUnknown() {
		t.Errorf("Infer(touch()) = %v, expected Unknown for undeclared return", got)
	}
}

func TestInferAliasExpansion(t *testing.T) {
	eng := New(testCatalog(), catalog.Allowlist{})
	env := fakeEnv{
		module:  "app.views",
		aliases: map[string]string{"models": "app.models"},
	}

	call := &pyast.Call{Func: &pyast.Attribute{
		Value: &pyast.Name{ID: "models"},
		Attr:  "User",
	}}
	got := eng.Infer(call, env)
	if got != catalog.Internal("app.models.User") {
		t.Errorf("Infer(models.User()) = %v, expected app.models.User", got)
	}
}

func TestInferTypedLocalShadowsAlias(t *testing.T) {
	cat := testCatalog()
	cat.Classes["app.views.Widget"] = &catalog.ClassEntry{FQN: "app.views.Widget"}
	eng := New(cat, catalog.Allowlist{})
	env := fakeEnv{
		module:  "app.views",
		locals:  map[string]catalog.TypeDescriptor{"models": catalog.Internal("app.views.Widget")},
		aliases: map[string]string{"models": "app.models"},
	}

	got := eng.Infer(&pyast.Call{Func: &pyast.Name{ID: "models"}}, env)
	if got != catalog.Internal("app.views.Widget") {
		t.Errorf("Infer(models()) = %v, expected the local binding to win", got)
	}
}

func TestInferExternalClassCall(t *testing.T) {
	eng := New(testCatalog(), catalog.Allowlist{Namespaces: []string{"pathlib"}})
	env := fakeEnv{
		module:  "app.views",
		aliases: map[string]string{"Path": "pathlib.Path"},
	}

	got := eng.Infer(&pyast.Call{Func: &pyast.Name{ID: "Path"}}, env)
	if got != catalog.External("pathlib.Path") {
		t.Errorf("Infer(Path()) = %v, expected external pathlib.Path", got)
	}
}

func TestInferUnknownName(t *testing.T) {
	eng := New(testCatalog(), catalog.Allowlist{})
	env := fakeEnv{module: "app.models"}

	if got := eng.Infer(&pyast.Name{ID: "mystery"}, env); !got.IsUnknown() {
		t.Errorf("Infer(mystery) = %v, expected Unknown", got)
	}
	if got := eng.Infer(&pyast.Opaque{}, env); !got.IsUnknown() {
		t.Errorf("Infer(opaque) = %v, expected Unknown", got)
	}
}
