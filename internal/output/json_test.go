package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/whharris917/atlas-sub000/internal/analysis"
	"github.com/whharris917/atlas-sub000/internal/catalog"
)

func TestTypeString(t *testing.T) {
	tests := []struct {
		td       catalog.TypeDescriptor
		expected string
	}{
		{catalog.Internal("app.models.User"), "app.models.User"},
		{catalog.External("pathlib.Path"), "pathlib.Path"},
		{catalog.Primitive("int"), "int"},
		{catalog.Unknown, "Unknown"},
	}
	for _, tt := range tests {
		if got := TypeString(tt.td); got != tt.expected {
			t.Errorf("TypeString(%v) = %q, expected %q", tt.td, got, tt.expected)
		}
	}
}

func TestWriteCatalogShape(t *testing.T) {
	cat := catalog.New()
	cat.Classes["app.models.User"] = &catalog.ClassEntry{
		FQN:     "app.models.User",
		Parents: []string{"app.models.Base"},
		Attributes: map[string]catalog.TypeDescriptor{
			"name": catalog.Primitive("string"),
		},
	}
	cat.Functions["app.models.load"] = &catalog.FunctionEntry{
		FQN:        "app.models.load",
		ParamTypes: map[string]catalog.TypeDescriptor{"key": catalog.Primitive("string")},
		Return:     catalog.Internal("app.models.User"),
	}
	cat.State["app.main.count"] = &catalog.StateEntry{
		FQN: "app.main.count", Type: catalog.Primitive("int"), InferredFromValue: true,
	}
	cat.ExternalClasses["logging.Logger"] = &catalog.ExternalEntry{
		FQN: "logging.Logger", Module: "logging", LocalAlias: "Logger",
	}

	path := filepath.Join(t.TempDir(), "catalog.json")
	if err := WriteCatalog(path, cat); err != nil {
		t.Fatalf("WriteCatalog failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var decoded struct {
		Classes map[string]struct {
			Parents    []string `json:"parents"`
			Attributes map[string]struct {
				Type string `json:"type"`
			} `json:"attributes"`
		} `json:"classes"`
		Functions map[string]struct {
			ReturnType string            `json:"returnType"`
			ParamTypes map[string]string `json:"paramTypes"`
		} `json:"functions"`
		State map[string]struct {
			Type              string `json:"type"`
			InferredFromValue bool   `json:"inferredFromValue"`
		} `json:"state"`
		ExternalClasses map[string]struct {
			Module     string `json:"module"`
			LocalAlias string `json:"localAlias"`
		} `json:"externalClasses"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}

	user := decoded.Classes["app.models.User"]
	if len(user.Parents) != 1 || user.Parents[0] != "app.models.Base" {
		t.Errorf("User.parents = %v, expected [app.models.Base]", user.Parents)
	}
	if user.Attributes["name"].Type != "string" {
		t.Errorf("User.name type = %q, expected string", user.Attributes["name"].Type)
	}
	load := decoded.Functions["app.models.load"]
	if load.ReturnType != "app.models.User" || load.ParamTypes["key"] != "string" {
		t.Errorf("load = %+v, expected return app.models.User and key string", load)
	}
	count := decoded.State["app.main.count"]
	if count.Type != "int" || !count.InferredFromValue {
		t.Errorf("count = %+v, expected inferred int", count)
	}
	if decoded.ExternalClasses["logging.Logger"].LocalAlias != "Logger" {
		t.Errorf("Logger = %+v, expected alias Logger", decoded.ExternalClasses["logging.Logger"])
	}
}

func TestWriteReportsSorted(t *testing.T) {
	reports := []*analysis.ModuleReport{
		{Module: "zebra"},
		{Module: "alpha"},
	}

	path := filepath.Join(t.TempDir(), "report.json")
	if err := WriteReports(path, reports); err != nil {
		t.Fatalf("WriteReports failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var decoded []struct {
		Module string `json:"module"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(decoded) != 2 || decoded[0].Module != "alpha" || decoded[1].Module != "zebra" {
		t.Errorf("modules = %v, expected sorted [alpha zebra]", decoded)
	}

	// Input order must stay untouched.
	if reports[0].Module != "zebra" {
		t.Error("WriteReports mutated its input slice")
	}
}
