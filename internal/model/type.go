// Package model defines the simplified records passed between the scanning,
// resolution and emission stages. They hide the go/types representation from
// the code generator.
package model

import (
	"go/types"
)

// TypeKind is the shape of a named type as far as mapping is concerned.
type TypeKind int

const (
	KindOther TypeKind = iota
	KindStruct
	KindInterface
)

func (k TypeKind) String() string {
	switch k {
	case KindStruct:
		return "struct"
	case KindInterface:
		return "interface"
	default:
		return "other"
	}
}

// TypeRef identifies a named type by package and simple name.
type TypeRef struct {
	// PkgPath is the import path of the declaring package (the namespace).
	PkgPath string
	// PkgName is the package clause name used when qualifying the type.
	PkgName string
	// Name is the simple name of the type.
	Name string
	Kind TypeKind
}

// NewTypeRef builds a TypeRef from a type-checked declaration.
func NewTypeRef(obj *types.TypeName) TypeRef {
	ref := TypeRef{Name: obj.Name(), Kind: KindOf(obj.Type())}
	if pkg := obj.Pkg(); pkg != nil {
		ref.PkgPath = pkg.Path()
		ref.PkgName = pkg.Name()
	}
	return ref
}

// KindOf classifies the underlying type of typ.
func KindOf(typ types.Type) TypeKind {
	switch typ.Underlying().(type) {
	case *types.Struct:
		return KindStruct
	case *types.Interface:
		return KindInterface
	default:
		return KindOther
	}
}

// FullName returns the package-qualified name, e.g. "example.com/people.Person".
func (t TypeRef) FullName() string {
	if t.PkgPath == "" {
		return t.Name
	}
	return t.PkgPath + "." + t.Name
}

// Namespace returns the declaring package path.
func (t TypeRef) Namespace() string {
	return t.PkgPath
}

// IsZero reports whether t refers to no type at all.
func (t TypeRef) IsZero() bool {
	return t.Name == ""
}

func (t TypeRef) String() string {
	return t.FullName()
}

// MemberAccess tells the emitter how a member is read.
type MemberAccess int

const (
	// AccessField is a struct field read as "x.Name".
	AccessField MemberAccess = iota
	// AccessGetter is a method without parameters read as "x.Name()".
	AccessGetter
)

func (a MemberAccess) String() string {
	if a == AccessGetter {
		return "getter"
	}
	return "field"
}

// MemberRef is a member of a named type.
type MemberRef struct {
	Owner  TypeRef
	Name   string
	Access MemberAccess
}

// Expr renders the read of the member on the variable recv.
func (m MemberRef) Expr(recv string) string {
	if m.Access == AccessGetter {
		return recv + "." + m.Name + "()"
	}
	return recv + "." + m.Name
}

func (m MemberRef) String() string {
	return m.Owner.FullName() + "." + m.Name
}
