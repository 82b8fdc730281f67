//attrimap:package path=github.com/origadmin/attrimap/internal/core/testdata/api alias=remote
package people

import "time"

type Source struct {
	//attrimap:MapTo[Target]("TName")
	//attrimap:MapTo(remote.Person, "FullName")
	Name string
	//attrimap:MapTo[Target]("TDateOfBirth", ParseDate)
	DateOfBirth string
	//attrimap:MapTo[Target]
	//attrimap:MapTo[remote.Person]("Age")
	Count int
	//attrimap:MapTo[Target]("Missing")
	Broken string
}

type Target struct {
	TName        string
	TDateOfBirth time.Time
	Count        int
}

func ParseDate(s string) time.Time {
	t, _ := time.Parse(time.DateOnly, s)
	return t
}
