// Package output serializes the two stable contract structures, the
// Catalog and the per-module analysis reports, to JSON for downstream
// consumers.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/whharris917/atlas-sub000/internal/analysis"
	"github.com/whharris917/atlas-sub000/internal/catalog"
)

type typeJSON struct {
	Type string `json:"type"`
}

type classJSON struct {
	Parents    []string            `json:"parents"`
	Attributes map[string]typeJSON `json:"attributes"`
}

type functionJSON struct {
	ReturnType string            `json:"returnType"`
	ParamTypes map[string]string `json:"paramTypes"`
}

type stateJSON struct {
	Type              string `json:"type"`
	InferredFromValue bool   `json:"inferredFromValue"`
}

type externalJSON struct {
	Module     string `json:"module"`
	LocalAlias string `json:"localAlias"`
}

type catalogJSON struct {
	Classes           map[string]classJSON    `json:"classes"`
	Functions         map[string]functionJSON `json:"functions"`
	State             map[string]stateJSON    `json:"state"`
	ExternalClasses   map[string]externalJSON `json:"externalClasses"`
	ExternalFunctions map[string]externalJSON `json:"externalFunctions"`
}

// TypeString renders a descriptor the way the contract spells types: the
// FQN, the primitive tag, or "Unknown".
func TypeString(td catalog.TypeDescriptor) string {
	if td.IsUnknown() || td.Value == "" {
		return "Unknown"
	}
	return td.Value
}

func catalogDTO(cat *catalog.Catalog) catalogJSON {
	out := catalogJSON{
		Classes:           make(map[string]classJSON, len(cat.Classes)),
		Functions:         make(map[string]functionJSON, len(cat.Functions)),
		State:             make(map[string]stateJSON, len(cat.State)),
		ExternalClasses:   make(map[string]externalJSON, len(cat.ExternalClasses)),
		ExternalFunctions: make(map[string]externalJSON, len(cat.ExternalFunctions)),
	}
	for fqn, entry := range cat.Classes {
		cj := classJSON{
			Parents:    append([]string(nil), entry.Parents...),
			Attributes: make(map[string]typeJSON, len(entry.Attributes)),
		}
		for name, td := range entry.Attributes {
			cj.Attributes[name] = typeJSON{Type: TypeString(td)}
		}
		out.Classes[fqn] = cj
	}
	for fqn, entry := range cat.Functions {
		fj := functionJSON{
			ReturnType: TypeString(entry.Return),
			ParamTypes: make(map[string]string, len(entry.ParamTypes)),
		}
		for name, td := range entry.ParamTypes {
			fj.ParamTypes[name] = TypeString(td)
		}
		out.Functions[fqn] = fj
	}
	for fqn, entry := range cat.State {
		out.State[fqn] = stateJSON{Type: TypeString(entry.Type), InferredFromValue: entry.InferredFromValue}
	}
	for fqn, entry := range cat.ExternalClasses {
		out.ExternalClasses[fqn] = externalJSON{Module: entry.Module, LocalAlias: entry.LocalAlias}
	}
	for fqn, entry := range cat.ExternalFunctions {
		out.ExternalFunctions[fqn] = externalJSON{Module: entry.Module, LocalAlias: entry.LocalAlias}
	}
	return out
}

// WriteCatalog writes the catalog contract structure as indented JSON.
func WriteCatalog(path string, cat *catalog.Catalog) error {
	data, err := json.MarshalIndent(catalogDTO(cat), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal catalog: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write catalog %q: %w", path, err)
	}
	return nil
}

// WriteReports writes the per-module analysis reports, ordered by module
// name so output is stable across runs.
func WriteReports(path string, reports []*analysis.ModuleReport) error {
	sorted := append([]*analysis.ModuleReport(nil), reports...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Module < sorted[j].Module })

	data, err := json.MarshalIndent(sorted, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal reports: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write reports %q: %w", path, err)
	}
	return nil
}
