package aliassrc

import "github.com/origadmin/attrimap/internal/core/testdata/aliasdst"

type Source struct {
	When string
}

// Wrap converts back to the source type.
func Wrap(t aliasdst.Target) Source {
	return Source{When: t.At}
}
