package scope

import (
	"testing"

	"github.com/whharris917/atlas-sub000/internal/catalog"
)

func TestBindAndLookupFunctionScope(t *testing.T) {
	st := NewSymbolTable()
	st.Bind("conn", catalog.Internal("app.db.Connection"))

	td, ok := st.Lookup("conn")
	if !ok {
		t.Fatal("expected conn to be bound")
	}
	if td.Value != "app.db.Connection" {
		t.Errorf("Lookup(conn) = %q, expected app.db.Connection", td.Value)
	}

	if _, ok := st.Lookup("missing"); ok {
		t.Error("expected missing name to be unbound")
	}
}

func TestNestedScopeShadowsAndUnwinds(t *testing.T) {
	st := NewSymbolTable()
	st.Bind("x", catalog.Primitive("int"))

	st.EnterNested()
	st.Bind("x", catalog.Primitive("string"))
	st.Bind("y", catalog.Internal("app.Thing"))

	if td, _ := st.Lookup("x"); td.Value != "string" {
		t.Errorf("nested Lookup(x) = %q, expected string", td.Value)
	}
	if _, ok := st.Lookup("y"); !ok {
		t.Error("expected y visible inside nested scope")
	}

	st.ExitNested()

	if td, _ := st.Lookup("x"); td.Value != "int" {
		t.Errorf("after exit Lookup(x) = %q, expected int", td.Value)
	}
	if _, ok := st.Lookup("y"); ok {
		t.Error("expected y discarded with its nested scope")
	}
}

func TestOuterBindingVisibleFromNestedScope(t *testing.T) {
	st := NewSymbolTable()
	st.Bind("cfg", catalog.Internal("app.Config"))

	st.EnterNested()
	defer st.ExitNested()

	td, ok := st.Lookup("cfg")
	if !ok || td.Value != "app.Config" {
		t.Errorf("Lookup(cfg) = %q, %v, expected app.Config from function scope", td.Value, ok)
	}
}

func TestExitWithoutEnterPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on unpaired ExitNested")
		}
	}()
	NewSymbolTable().ExitNested()
}
