//attrimap:package path=github.com/origadmin/attrimap/internal/core/testdata/aliassrc alias=src
package aliasdst

import "strings"

type Target struct {
	//attrimap:MapFrom(src.Source, "When", parse)
	At string
	//attrimap:MapFrom(src.Source, "When")
	Raw string
}

func parse(s string) string {
	return strings.TrimSpace(s)
}
