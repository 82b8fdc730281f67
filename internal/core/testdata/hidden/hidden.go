//attrimap:package path=github.com/origadmin/attrimap/internal/core/testdata/api alias=remote
package hidden

type Source struct {
	//attrimap:MapTo[remote.Person]("note")
	//attrimap:MapTo[remote.Person]("FullName")
	Name string
}

type View struct {
	//attrimap:MapFrom(remote.Person, "note")
	Note string
}
