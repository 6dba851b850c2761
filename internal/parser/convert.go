package parser

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/whharris917/atlas-sub000/internal/pyast"
)

// converter lowers one tree-sitter parse into pyast. Compound statements
// the engine has no structural model for (if/for/while/try/with/match)
// become pyast.Block nodes so the traversal still reaches every call site
// inside them.
type converter struct {
	source []byte
	path   string
}

func (c *converter) module(name string, root *sitter.Node) *pyast.Module {
	mod := &pyast.Module{Name: name, Path: c.path, Location: c.location(root)}
	for i := uint(0); i < root.ChildCount(); i++ {
		c.topLevel(mod, root.Child(i))
	}
	return mod
}

func (c *converter) topLevel(mod *pyast.Module, node *sitter.Node) {
	switch node.Kind() {
	case "import_statement":
		c.plainImport(mod, node)
	case "import_from_statement":
		c.fromImport(mod, node)
	case "future_import_statement":
		// No cross-reference value.
	default:
		if stmt := c.stmt(node); stmt != nil {
			mod.Body = append(mod.Body, stmt)
		}
	}
}

func (c *converter) plainImport(mod *pyast.Module, node *sitter.Node) {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "dotted_name", "identifier":
			mod.Imports = append(mod.Imports, &pyast.Import{
				Module:   c.text(child),
				Location: c.location(child),
			})
		case "aliased_import":
			var module, alias string
			for j := uint(0); j < child.ChildCount(); j++ {
				sub := child.Child(j)
				if sub.Kind() == "dotted_name" || sub.Kind() == "identifier" {
					if module == "" {
						module = c.text(sub)
					} else {
						alias = c.text(sub)
					}
				}
			}
			mod.Imports = append(mod.Imports, &pyast.Import{
				Module:   module,
				Alias:    alias,
				Location: c.location(child),
			})
		}
	}
}

func (c *converter) fromImport(mod *pyast.Module, node *sitter.Node) {
	var module string
	relative := false
	type item struct{ name, alias string }
	var items []item

	afterImport := false
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "relative_import":
			relative = true
			module = strings.TrimLeft(c.text(child), ".")
		case "import":
			afterImport = true
		case "dotted_name", "identifier":
			if !afterImport {
				if !relative {
					module = c.text(child)
				}
				continue
			}
			items = append(items, item{name: c.text(child)})
		case "aliased_import":
			var name, alias string
			for j := uint(0); j < child.ChildCount(); j++ {
				sub := child.Child(j)
				if sub.Kind() == "dotted_name" || sub.Kind() == "identifier" {
					if name == "" {
						name = c.text(sub)
					} else {
						alias = c.text(sub)
					}
				}
			}
			items = append(items, item{name: name, alias: alias})
		case "wildcard_import":
			// Star imports defeat cataloging; skip.
		}
	}

	for _, it := range items {
		mod.Imports = append(mod.Imports, &pyast.Import{
			Module:   module,
			Name:     it.name,
			Alias:    it.alias,
			Relative: relative,
			Location: c.location(node),
		})
	}
}

func (c *converter) stmts(block *sitter.Node) []pyast.Stmt {
	if block == nil {
		return nil
	}
	var out []pyast.Stmt
	for i := uint(0); i < block.ChildCount(); i++ {
		if stmt := c.stmt(block.Child(i)); stmt != nil {
			out = append(out, stmt)
		}
	}
	return out
}

func (c *converter) stmt(node *sitter.Node) pyast.Stmt {
	switch node.Kind() {
	case "function_definition":
		return c.functionDef(node)
	case "class_definition":
		return c.classDef(node)
	case "decorated_definition":
		if def := node.ChildByFieldName("definition"); def != nil {
			return c.stmt(def)
		}
		return nil
	case "expression_statement":
		return c.expressionStatement(node)
	case "return_statement":
		ret := &pyast.Return{Location: c.location(node)}
		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			if child.Kind() == "return" {
				continue
			}
			if value := c.expr(child); value != nil {
				ret.Value = value
				break
			}
		}
		return ret
	case "if_statement", "elif_clause", "while_statement":
		return c.conditional(node)
	case "for_statement":
		return c.forStatement(node)
	case "with_statement":
		return c.withStatement(node)
	case "try_statement", "match_statement":
		return c.compound(node)
	case "global_statement", "nonlocal_statement", "pass_statement", "break_statement", "continue_statement", "import_statement", "import_from_statement", "comment":
		return nil
	case "raise_statement", "assert_statement", "delete_statement":
		block := &pyast.Block{Location: c.location(node)}
		for i := uint(0); i < node.ChildCount(); i++ {
			if e := c.expr(node.Child(i)); e != nil {
				block.Exprs = append(block.Exprs, e)
			}
		}
		if len(block.Exprs) == 0 {
			return nil
		}
		return block
	default:
		return nil
	}
}

func (c *converter) functionDef(node *sitter.Node) *pyast.FunctionDef {
	fn := &pyast.FunctionDef{Location: c.location(node)}
	if name := node.ChildByFieldName("name"); name != nil {
		fn.Name = c.text(name)
	}
	if ret := node.ChildByFieldName("return_type"); ret != nil {
		fn.Returns = c.text(ret)
	}
	fn.Params = c.parameters(node.ChildByFieldName("parameters"))
	fn.Body = c.stmts(node.ChildByFieldName("body"))
	return fn
}

func (c *converter) parameters(params *sitter.Node) []pyast.Param {
	if params == nil {
		return nil
	}
	var out []pyast.Param
	for i := uint(0); i < params.ChildCount(); i++ {
		child := params.Child(i)
		switch child.Kind() {
		case "identifier":
			out = append(out, pyast.Param{Name: c.text(child)})
		case "typed_parameter":
			p := pyast.Param{}
			for j := uint(0); j < child.ChildCount(); j++ {
				sub := child.Child(j)
				if sub.Kind() == "identifier" && p.Name == "" {
					p.Name = c.text(sub)
				}
			}
			if t := child.ChildByFieldName("type"); t != nil {
				p.Annotation = c.text(t)
			}
			if p.Name != "" {
				out = append(out, p)
			}
		case "default_parameter", "typed_default_parameter":
			p := pyast.Param{}
			if name := child.ChildByFieldName("name"); name != nil {
				p.Name = c.text(name)
			}
			if t := child.ChildByFieldName("type"); t != nil {
				p.Annotation = c.text(t)
			}
			if v := child.ChildByFieldName("value"); v != nil {
				p.Default = c.expr(v)
			}
			if p.Name != "" {
				out = append(out, p)
			}
		case "list_splat_pattern", "dictionary_splat_pattern":
			name := strings.TrimLeft(c.text(child), "*")
			if name != "" {
				out = append(out, pyast.Param{Name: name})
			}
		}
	}
	return out
}

func (c *converter) classDef(node *sitter.Node) *pyast.ClassDef {
	class := &pyast.ClassDef{Location: c.location(node)}
	if name := node.ChildByFieldName("name"); name != nil {
		class.Name = c.text(name)
	}
	if supers := node.ChildByFieldName("superclasses"); supers != nil {
		for i := uint(0); i < supers.ChildCount(); i++ {
			child := supers.Child(i)
			switch child.Kind() {
			case "identifier", "attribute":
				if base := c.expr(child); base != nil {
					class.Bases = append(class.Bases, base)
				}
			case "keyword_argument":
				// metaclass= and friends; not inheritance edges.
			}
		}
	}
	class.Body = c.stmts(node.ChildByFieldName("body"))
	return class
}

func (c *converter) expressionStatement(node *sitter.Node) pyast.Stmt {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "assignment", "augmented_assignment":
			return c.assignment(child)
		default:
			if value := c.expr(child); value != nil {
				return &pyast.ExprStmt{Value: value, Location: c.location(node)}
			}
		}
	}
	return nil
}

func (c *converter) assignment(node *sitter.Node) pyast.Stmt {
	assign := &pyast.Assign{Location: c.location(node)}
	if left := node.ChildByFieldName("left"); left != nil {
		assign.Targets = c.targets(left)
	}
	if t := node.ChildByFieldName("type"); t != nil {
		assign.Annotation = c.text(t)
	}
	if right := node.ChildByFieldName("right"); right != nil {
		// Chained assignment: a = b = value.
		if right.Kind() == "assignment" {
			if inner, ok := c.assignment(right).(*pyast.Assign); ok {
				inner.Targets = append(assign.Targets, inner.Targets...)
				inner.Annotation = assign.Annotation
				return inner
			}
		}
		assign.Value = c.expr(right)
	}
	if len(assign.Targets) == 0 {
		if assign.Value == nil {
			return nil
		}
		return &pyast.ExprStmt{Value: assign.Value, Location: assign.Location}
	}
	return assign
}

// targets flattens an assignment left side into Name/Attribute targets.
// Subscripts and starred patterns are not bindable names for this engine
// and are dropped.
func (c *converter) targets(node *sitter.Node) []pyast.Expr {
	if node == nil {
		return nil
	}
	switch node.Kind() {
	case "identifier":
		return []pyast.Expr{&pyast.Name{ID: c.text(node), Location: c.location(node)}}
	case "attribute":
		if attr := c.expr(node); attr != nil {
			return []pyast.Expr{attr}
		}
		return nil
	case "pattern_list", "tuple_pattern", "list_pattern":
		var out []pyast.Expr
		for i := uint(0); i < node.ChildCount(); i++ {
			out = append(out, c.targets(node.Child(i))...)
		}
		return out
	default:
		return nil
	}
}

// conditional lowers if/elif/while into a Block keeping the condition
// expression and every branch body.
func (c *converter) conditional(node *sitter.Node) pyast.Stmt {
	block := &pyast.Block{Location: c.location(node)}
	if cond := node.ChildByFieldName("condition"); cond != nil {
		if e := c.expr(cond); e != nil {
			block.Exprs = append(block.Exprs, e)
		}
	}
	if body := node.ChildByFieldName("consequence"); body != nil {
		block.Body = append(block.Body, c.stmts(body)...)
	}
	if body := node.ChildByFieldName("body"); body != nil {
		block.Body = append(block.Body, c.stmts(body)...)
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "elif_clause":
			if stmt := c.conditional(child); stmt != nil {
				block.Body = append(block.Body, stmt)
			}
		case "else_clause":
			if body := child.ChildByFieldName("body"); body != nil {
				block.Body = append(block.Body, c.stmts(body)...)
			}
		}
	}
	return block
}

func (c *converter) forStatement(node *sitter.Node) pyast.Stmt {
	block := &pyast.Block{Location: c.location(node)}
	if right := node.ChildByFieldName("right"); right != nil {
		if e := c.expr(right); e != nil {
			block.Exprs = append(block.Exprs, e)
		}
	}
	// The loop target becomes an untyped local binding.
	if left := node.ChildByFieldName("left"); left != nil {
		if targets := c.targets(left); len(targets) > 0 {
			block.Body = append(block.Body, &pyast.Assign{Targets: targets, Location: c.location(left)})
		}
	}
	if body := node.ChildByFieldName("body"); body != nil {
		block.Body = append(block.Body, c.stmts(body)...)
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child.Kind() == "else_clause" {
			if body := child.ChildByFieldName("body"); body != nil {
				block.Body = append(block.Body, c.stmts(body)...)
			}
		}
	}
	return block
}

func (c *converter) withStatement(node *sitter.Node) pyast.Stmt {
	block := &pyast.Block{Location: c.location(node)}
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		for i := uint(0); i < n.ChildCount(); i++ {
			child := n.Child(i)
			switch child.Kind() {
			case "with_clause":
				visit(child)
			case "with_item":
				value := child.ChildByFieldName("value")
				if value == nil {
					continue
				}
				// `with open(f) as fh` binds fh as an untyped local.
				if value.Kind() == "as_pattern" {
					if v := value.ChildByFieldName("value"); v != nil {
						if e := c.expr(v); e != nil {
							block.Exprs = append(block.Exprs, e)
						}
					}
					if alias := value.ChildByFieldName("alias"); alias != nil {
						if targets := c.targets(firstNamedChild(alias)); len(targets) > 0 {
							block.Body = append(block.Body, &pyast.Assign{Targets: targets, Location: c.location(alias)})
						}
					}
					continue
				}
				if e := c.expr(value); e != nil {
					block.Exprs = append(block.Exprs, e)
				}
			}
		}
	}
	visit(node)
	if body := node.ChildByFieldName("body"); body != nil {
		block.Body = append(block.Body, c.stmts(body)...)
	}
	return block
}

// compound generically lowers try/match: every nested block's statements
// are kept, every clause-level expression is kept.
func (c *converter) compound(node *sitter.Node) pyast.Stmt {
	block := &pyast.Block{Location: c.location(node)}
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		for i := uint(0); i < n.ChildCount(); i++ {
			child := n.Child(i)
			switch child.Kind() {
			case "block":
				block.Body = append(block.Body, c.stmts(child)...)
			case "except_clause", "except_group_clause", "finally_clause", "else_clause", "case_clause":
				visit(child)
			default:
				if e := c.expr(child); e != nil {
					block.Exprs = append(block.Exprs, e)
				}
			}
		}
	}
	visit(node)
	return block
}

func firstNamedChild(node *sitter.Node) *sitter.Node {
	if node == nil {
		return nil
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		if node.Child(i).IsNamed() {
			return node.Child(i)
		}
	}
	return nil
}

func (c *converter) text(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	return string(c.source[node.StartByte():node.EndByte()])
}

func (c *converter) location(node *sitter.Node) pyast.Location {
	return pyast.Location{
		File:   c.path,
		Line:   int(node.StartPosition().Row) + 1,
		Column: int(node.StartPosition().Column) + 1,
	}
}
