package model

import (
	"go/token"
)

// TransformerKind tells how a transformer is invoked.
type TransformerKind int

const (
	// TransformerFunc is a package level function of the declaring type's
	// package, called without an instance.
	TransformerFunc TransformerKind = iota
	// TransformerMethod is a method of the declaring type, called on the
	// source value.
	TransformerMethod
)

func (k TransformerKind) String() string {
	if k == TransformerMethod {
		return "method"
	}
	return "func"
}

// TransformerRef is a single argument conversion applied to a source value.
type TransformerRef struct {
	Declaring TypeRef
	Name      string
	Kind      TransformerKind
}

// IsZero reports whether no transformer is set.
func (t TransformerRef) IsZero() bool {
	return t.Name == ""
}

// Receiverless reports whether a transformer is set and is called without
// an instance.
func (t TransformerRef) Receiverless() bool {
	return !t.IsZero() && t.Kind == TransformerFunc
}

// Descriptor is one resolved source member to target member correspondence.
type Descriptor struct {
	GroupKey     string
	Source       TypeRef
	SourceMember MemberRef
	Target       TypeRef
	TargetMember string
	Transformer  TransformerRef

	// Family and Pos are kept for diagnostics.
	Family Family
	Pos    token.Position
}

// TargetName is the simple name of the target type.
func (d Descriptor) TargetName() string {
	return d.Target.Name
}

// Group collects the descriptors of one source/target pair in declaration
// order.
type Group struct {
	Key         string
	Source      TypeRef
	Target      TypeRef
	Descriptors []Descriptor
}
