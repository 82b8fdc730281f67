package cycledst

import (
	"time"

	"github.com/origadmin/attrimap/internal/core/testdata/cyclesrc"
)

type Target struct {
	//attrimap:MapFrom(cyclesrc.Source, "When", parse)
	At time.Time
}

// Origin converts back to the source type.
func Origin(t Target) cyclesrc.Source {
	return cyclesrc.Source{When: t.At.Format(time.DateOnly)}
}

func parse(s string) time.Time {
	t, _ := time.Parse(time.DateOnly, s)
	return t
}
