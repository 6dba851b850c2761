// Package lint checks the cataloged symbols for missing or unresolvable
// type annotations and reports them as diagnostic events. Findings never
// fail a run; they surface the places where resolution will degrade.
package lint

import (
	"sort"
	"strings"

	"github.com/whharris917/atlas-sub000/internal/catalog"
	"github.com/whharris917/atlas-sub000/internal/diag"
)

type Checker struct {
	sink diag.Sink
}

func NewChecker(sink diag.Sink) *Checker {
	if sink == nil {
		sink = diag.Nop()
	}
	return &Checker{sink: sink}
}

// Check scans the catalog and returns the number of findings emitted.
func (c *Checker) Check(cat *catalog.Catalog) int {
	findings := 0

	for _, fqn := range sortedKeys(cat.Functions) {
		entry := cat.Functions[fqn]
		for _, param := range sortedKeys(entry.ParamTypes) {
			if entry.ParamTypes[param].IsUnknown() {
				c.sink.Emit(diag.Event{
					Kind:   diag.UnresolvedAnnotation,
					Module: moduleOf(fqn),
					Symbol: fqn,
					Detail: "parameter " + param + " has no usable annotation",
				})
				findings++
			}
		}
		if entry.Return.IsUnknown() {
			c.sink.Emit(diag.Event{
				Kind:   diag.UnresolvedAnnotation,
				Module: moduleOf(fqn),
				Symbol: fqn,
				Detail: "return type has no usable annotation",
			})
			findings++
		}
	}

	for _, fqn := range sortedKeys(cat.Classes) {
		entry := cat.Classes[fqn]
		for _, attr := range sortedKeys(entry.Attributes) {
			if entry.Attributes[attr].IsUnknown() {
				c.sink.Emit(diag.Event{
					Kind:   diag.MissingField,
					Module: moduleOf(fqn),
					Symbol: fqn,
					Detail: "attribute " + attr + " has no resolvable type",
				})
				findings++
			}
		}
	}

	for _, fqn := range sortedKeys(cat.State) {
		entry := cat.State[fqn]
		if entry.Type.IsUnknown() && !entry.InferredFromValue {
			c.sink.Emit(diag.Event{
				Kind:   diag.UnresolvedAnnotation,
				Module: moduleOf(fqn),
				Symbol: fqn,
				Detail: "module state has neither annotation nor inferable value",
			})
			findings++
		}
	}

	return findings
}

func moduleOf(fqn string) string {
	if i := strings.LastIndex(fqn, "."); i > 0 {
		return fqn[:i]
	}
	return fqn
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
