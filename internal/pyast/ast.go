// Package pyast defines the syntax-tree input contract of the analysis
// engine. The front-end in internal/parser lowers tree-sitter output into
// these nodes; nothing downstream ever sees a tree-sitter type.
package pyast

type Location struct {
	File   string
	Line   int
	Column int
}

type Node interface {
	Loc() Location
}

// Module is one parsed source file with its fully qualified dotted name.
type Module struct {
	Name     string
	Path     string
	Imports  []*Import
	Body     []Stmt
	Location Location
}

func (m *Module) Loc() Location { return m.Location }

// Import covers both "import a.b as c" and "from a.b import X as Y".
// For plain imports Name is empty; Alias is "" unless the source spelled
// an "as" clause.
type Import struct {
	Module   string
	Name     string
	Alias    string
	Relative bool
	Location Location
}

func (i *Import) Loc() Location { return i.Location }

type Stmt interface {
	Node
	stmt()
}

type Expr interface {
	Node
	expr()
}

type ClassDef struct {
	Name     string
	Bases    []Expr
	Body     []Stmt
	Location Location
}

type Param struct {
	Name       string
	Annotation string // raw annotation text, "" when absent
	Default    Expr
}

type FunctionDef struct {
	Name     string
	Params   []Param
	Returns  string // raw return annotation text, "" when absent
	Body     []Stmt
	Location Location
}

// Assign covers plain, augmented and annotated assignments. Targets are
// Name or Attribute expressions; anything else is dropped by the front-end.
type Assign struct {
	Targets    []Expr
	Value      Expr
	Annotation string // raw annotation text for "x: T = v" forms
	Location   Location
}

type Return struct {
	Value    Expr // nil for bare return
	Location Location
}

type ExprStmt struct {
	Value    Expr
	Location Location
}

// Block is the lowered form of every compound statement the engine does not
// model structurally (if/for/while/try/with/match). Exprs holds conditions,
// iterables and context managers so call sites inside them are still seen.
type Block struct {
	Exprs    []Expr
	Body     []Stmt
	Location Location
}

func (s *ClassDef) stmt()    {}
func (s *FunctionDef) stmt() {}
func (s *Assign) stmt()      {}
func (s *Return) stmt()      {}
func (s *ExprStmt) stmt()    {}
func (s *Block) stmt()       {}

func (s *ClassDef) Loc() Location    { return s.Location }
func (s *FunctionDef) Loc() Location { return s.Location }
func (s *Assign) Loc() Location      { return s.Location }
func (s *Return) Loc() Location      { return s.Location }
func (s *ExprStmt) Loc() Location    { return s.Location }
func (s *Block) Loc() Location       { return s.Location }

type Name struct {
	ID       string
	Location Location
}

type Attribute struct {
	Value    Expr
	Attr     string
	Location Location
}

type Call struct {
	Func     Expr
	Args     []Expr
	Location Location
}

type ConstKind int

const (
	ConstString ConstKind = iota
	ConstInt
	ConstFloat
	ConstBool
	ConstNone
)

type Constant struct {
	Kind     ConstKind
	Raw      string
	Location Location
}

type ContainerKind int

const (
	ContainerList ContainerKind = iota
	ContainerDict
	ContainerSet
	ContainerTuple
)

type Container struct {
	Kind     ContainerKind
	Elts     []Expr
	Location Location
}

// Opaque wraps expression shapes the engine has no model for (lambdas,
// comprehensions, operators). Children keeps nested calls reachable.
type Opaque struct {
	Children []Expr
	Location Location
}

func (e *Name) expr()      {}
func (e *Attribute) expr() {}
func (e *Call) expr()      {}
func (e *Constant) expr()  {}
func (e *Container) expr() {}
func (e *Opaque) expr()    {}

func (e *Name) Loc() Location      { return e.Location }
func (e *Attribute) Loc() Location { return e.Location }
func (e *Call) Loc() Location      { return e.Location }
func (e *Constant) Loc() Location  { return e.Location }
func (e *Container) Loc() Location { return e.Location }
func (e *Opaque) Loc() Location    { return e.Location }

// DottedName flattens a Name/Attribute chain into its parts, left to right.
// Returns nil when the expression is not a plain dotted reference (for
// example a call result or subscript in the middle of the chain).
func DottedName(e Expr) []string {
	switch v := e.(type) {
	case *Name:
		return []string{v.ID}
	case *Attribute:
		base := DottedName(v.Value)
		if base == nil {
			return nil
		}
		return append(base, v.Attr)
	default:
		return nil
	}
}
