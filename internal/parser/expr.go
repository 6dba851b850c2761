package parser

import (
	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/whharris917/atlas-sub000/internal/pyast"
)

// expr lowers an expression node. Shapes the engine does not model become
// Opaque wrappers so nested calls stay reachable; nodes that are not
// expressions at all return nil.
func (c *converter) expr(node *sitter.Node) pyast.Expr {
	if node == nil {
		return nil
	}
	loc := c.location(node)

	switch node.Kind() {
	case "identifier":
		return &pyast.Name{ID: c.text(node), Location: loc}

	case "attribute":
		attr := &pyast.Attribute{Location: loc}
		if obj := node.ChildByFieldName("object"); obj != nil {
			attr.Value = c.expr(obj)
		}
		if name := node.ChildByFieldName("attribute"); name != nil {
			attr.Attr = c.text(name)
		}
		if attr.Value == nil || attr.Attr == "" {
			return c.opaque(node, loc)
		}
		return attr

	case "call":
		call := &pyast.Call{Location: loc}
		if fn := node.ChildByFieldName("function"); fn != nil {
			call.Func = c.expr(fn)
		}
		if call.Func == nil {
			return c.opaque(node, loc)
		}
		if args := node.ChildByFieldName("arguments"); args != nil {
			for i := uint(0); i < args.ChildCount(); i++ {
				child := args.Child(i)
				if child.Kind() == "keyword_argument" {
					child = child.ChildByFieldName("value")
				}
				if e := c.expr(child); e != nil {
					call.Args = append(call.Args, e)
				}
			}
		}
		return call

	case "string", "concatenated_string":
		return &pyast.Constant{Kind: pyast.ConstString, Raw: c.text(node), Location: loc}
	case "integer":
		return &pyast.Constant{Kind: pyast.ConstInt, Raw: c.text(node), Location: loc}
	case "float":
		return &pyast.Constant{Kind: pyast.ConstFloat, Raw: c.text(node), Location: loc}
	case "true", "false":
		return &pyast.Constant{Kind: pyast.ConstBool, Raw: c.text(node), Location: loc}
	case "none":
		return &pyast.Constant{Kind: pyast.ConstNone, Raw: "None", Location: loc}

	case "list":
		return c.container(node, pyast.ContainerList, loc)
	case "set":
		return c.container(node, pyast.ContainerSet, loc)
	case "tuple", "expression_list":
		return c.container(node, pyast.ContainerTuple, loc)
	case "dictionary":
		dict := &pyast.Container{Kind: pyast.ContainerDict, Location: loc}
		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			if child.Kind() != "pair" {
				continue
			}
			if k := c.expr(child.ChildByFieldName("key")); k != nil {
				dict.Elts = append(dict.Elts, k)
			}
			if v := c.expr(child.ChildByFieldName("value")); v != nil {
				dict.Elts = append(dict.Elts, v)
			}
		}
		return dict

	case "parenthesized_expression":
		if inner := firstNamedChild(node); inner != nil {
			if e := c.expr(inner); e != nil {
				return e
			}
		}
		return nil

	case "binary_operator", "boolean_operator", "comparison_operator",
		"unary_operator", "not_operator", "conditional_expression",
		"named_expression", "await", "subscript", "slice", "lambda",
		"list_comprehension", "dictionary_comprehension", "set_comprehension",
		"generator_expression", "yield", "as_pattern", "list_splat",
		"dictionary_splat", "format_string", "interpolation":
		return c.opaque(node, loc)

	default:
		return nil
	}
}

func (c *converter) container(node *sitter.Node, kind pyast.ContainerKind, loc pyast.Location) pyast.Expr {
	cont := &pyast.Container{Kind: kind, Location: loc}
	for i := uint(0); i < node.ChildCount(); i++ {
		if e := c.expr(node.Child(i)); e != nil {
			cont.Elts = append(cont.Elts, e)
		}
	}
	return cont
}

// opaque keeps every convertible descendant of an unmodeled expression.
func (c *converter) opaque(node *sitter.Node, loc pyast.Location) pyast.Expr {
	op := &pyast.Opaque{Location: loc}
	for i := uint(0); i < node.ChildCount(); i++ {
		if e := c.expr(node.Child(i)); e != nil {
			op.Children = append(op.Children, e)
		}
	}
	return op
}
