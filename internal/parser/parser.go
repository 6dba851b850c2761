// Package parser is the source front-end: it discovers Python files,
// parses them with tree-sitter, and lowers the concrete syntax tree into
// the pyast input contract the engine consumes.
package parser

import (
	"fmt"
	"os"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"

	"github.com/whharris917/atlas-sub000/internal/pyast"
)

type Parser struct {
	inner *sitter.Parser
}

func NewParser() (*Parser, error) {
	p := sitter.NewParser()
	lang := sitter.NewLanguage(tree_sitter_python.Language())
	if err := p.SetLanguage(lang); err != nil {
		return nil, fmt.Errorf("set python grammar: %w", err)
	}
	return &Parser{inner: p}, nil
}

func (p *Parser) Close() {
	p.inner.Close()
}

// ParseFile reads and parses one source file into a module tree.
func (p *Parser) ParseFile(moduleName, path string) (*pyast.Module, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}
	return p.ParseSource(moduleName, path, source)
}

// ParseSource parses in-memory source. The returned module holds plain Go
// values only; tree-sitter memory is released before returning.
func (p *Parser) ParseSource(moduleName, path string, source []byte) (*pyast.Module, error) {
	tree := p.inner.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("parse %q: no tree produced", path)
	}
	defer tree.Close()

	conv := &converter{source: source, path: path}
	return conv.module(moduleName, tree.RootNode()), nil
}
