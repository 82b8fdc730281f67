package model

import (
	"context"

	"golang.org/x/tools/go/packages"
)

// Scanner discovers annotations in a loaded package.
type Scanner interface {
	Scan(pkg *packages.Package) []*Occurrence
}

// Resolver turns occurrences into descriptors. Occurrences that cannot be
// resolved are reported and left out.
type Resolver interface {
	ResolveAll(ctx context.Context, occs []*Occurrence) ([]Descriptor, error)
}
