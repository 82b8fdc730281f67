package model

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"strconv"
)

// Family is the direction an annotation is declared in.
type Family int

const (
	// MapTo is declared on a source member and names the target type.
	MapTo Family = iota
	// MapFrom is declared on a target member and names the source type.
	MapFrom
)

// ParseFamily matches an annotation name exactly.
func ParseFamily(name string) (Family, bool) {
	switch name {
	case "MapTo":
		return MapTo, true
	case "MapFrom":
		return MapFrom, true
	}
	return 0, false
}

func (f Family) String() string {
	if f == MapFrom {
		return "MapFrom"
	}
	return "MapTo"
}

// Syntax records which surface form an annotation was written in. It is kept
// for logging only.
type Syntax int

const (
	// SyntaxTypeParameter is MapTo[T](...).
	SyntaxTypeParameter Syntax = iota
	// SyntaxPositional is MapTo(T, ...).
	SyntaxPositional
)

func (s Syntax) String() string {
	if s == SyntaxPositional {
		return "positional"
	}
	return "type-parameter"
}

// Site is the declaration site of an annotation.
type Site struct {
	Pos  token.Position
	Text string
	// Member is the annotated member.
	Member MemberRef
	// Owner is the declaring type of Member.
	Owner *types.TypeName
	// Scope is the file scope names in the annotation are resolved in.
	Scope *types.Scope
}

// Occurrence is one confirmed annotation normalized to a single shape,
// whatever syntax it was written in.
type Occurrence struct {
	Site
	Family Family
	Syntax Syntax
	// Counterpart is the expression naming the other type. It is nil when the
	// annotation did not supply one.
	Counterpart ast.Expr
	// CounterpartMember is empty when the annotated member's name applies.
	CounterpartMember string
	// Transformer is empty when values are copied as is.
	Transformer string
}

// NewTypeParamOccurrence normalizes Family[T](member?, transformer?).
func NewTypeParamOccurrence(site Site, family Family, typeArg ast.Expr, args []ast.Expr) (*Occurrence, error) {
	if len(args) > 2 {
		return nil, fmt.Errorf("%s[T] takes at most 2 arguments, got %d", family, len(args))
	}
	return newOccurrence(site, family, SyntaxTypeParameter, typeArg, args)
}

// NewPositionalOccurrence normalizes Family(T, member?, transformer?).
func NewPositionalOccurrence(site Site, family Family, args []ast.Expr) (*Occurrence, error) {
	if len(args) > 3 {
		return nil, fmt.Errorf("%s takes at most 3 arguments, got %d", family, len(args))
	}
	var typeArg ast.Expr
	if len(args) > 0 {
		typeArg, args = args[0], args[1:]
	}
	return newOccurrence(site, family, SyntaxPositional, typeArg, args)
}

func newOccurrence(site Site, family Family, syntax Syntax, typeArg ast.Expr, args []ast.Expr) (*Occurrence, error) {
	occ := &Occurrence{
		Site:        site,
		Family:      family,
		Syntax:      syntax,
		Counterpart: typeArg,
	}
	for i, arg := range args {
		name, err := nameArg(arg)
		if err != nil {
			return nil, fmt.Errorf("%s argument %d: %w", family, i+1, err)
		}
		if i == 0 {
			occ.CounterpartMember = name
		} else {
			occ.Transformer = name
		}
	}
	return occ, nil
}

// nameArg accepts "Name", Name and T.Name.
func nameArg(expr ast.Expr) (string, error) {
	switch e := expr.(type) {
	case *ast.BasicLit:
		if e.Kind != token.STRING {
			return "", fmt.Errorf("expected a name, got %s literal", e.Kind)
		}
		s, err := strconv.Unquote(e.Value)
		if err != nil {
			return "", fmt.Errorf("invalid string %s: %w", e.Value, err)
		}
		return s, nil
	case *ast.Ident:
		return e.Name, nil
	case *ast.SelectorExpr:
		return e.Sel.Name, nil
	}
	return "", fmt.Errorf("expected a name, got %T", expr)
}

// MemberName returns the counterpart member, defaulting to the annotated one.
func (o *Occurrence) MemberName() string {
	if o.CounterpartMember != "" {
		return o.CounterpartMember
	}
	return o.Member.Name
}
