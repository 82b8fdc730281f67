package generator

import (
	"go/token"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/origadmin/attrimap/internal/config"
	"github.com/origadmin/attrimap/internal/diagnostic"
	"github.com/origadmin/attrimap/internal/groupkey"
	"github.com/origadmin/attrimap/internal/model"
)

const peoplePath = "example.com/people"

var (
	testSource  = model.TypeRef{PkgPath: peoplePath, PkgName: "people", Name: "TestSource", Kind: model.KindStruct}
	iTestSource = model.TypeRef{PkgPath: peoplePath, PkgName: "people", Name: "ITestSource", Kind: model.KindInterface}
	testTarget  = model.TypeRef{PkgPath: peoplePath, PkgName: "people", Name: "TestTarget", Kind: model.KindStruct}
	apiPerson   = model.TypeRef{PkgPath: "example.com/api/v1", PkgName: "api", Name: "Person", Kind: model.KindStruct}
)

func desc(source, target model.TypeRef, sourceMember, targetMember string, line int) model.Descriptor {
	return model.Descriptor{
		GroupKey:     groupkey.Hash(source.FullName(), target.FullName()),
		Source:       source,
		SourceMember: model.MemberRef{Owner: source, Name: sourceMember},
		Target:       target,
		TargetMember: targetMember,
		Pos:          token.Position{Filename: "people.go", Line: line, Column: 2},
	}
}

func withTransformer(d model.Descriptor, declaring model.TypeRef, name string, kind model.TransformerKind) model.Descriptor {
	d.Transformer = model.TransformerRef{Declaring: declaring, Name: name, Kind: kind}
	return d
}

func getter(d model.Descriptor) model.Descriptor {
	d.SourceMember.Access = model.AccessGetter
	return d
}

func peoplePackage(opts config.Options) *Package {
	return &Package{Path: peoplePath, Name: "people", Dir: "/src/people", Declared: map[string]bool{"TestSource": true}, Options: opts}
}

func defaultOptions() config.Options {
	return config.NewConfig().Options
}

// normalize collapses whitespace so comparisons ignore gofmt alignment.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func TestGenerator_GroupDescriptors(t *testing.T) {
	collector := diagnostic.NewCollector()
	g := NewGenerator("attrimap", collector, nil)

	descs := []model.Descriptor{
		desc(testSource, testTarget, "SName", "TName", 10),
		desc(iTestSource, testTarget, "SName", "TName", 20),
		desc(testSource, testTarget, "Count", "Count", 11),
		desc(testSource, testTarget, "Other", "TName", 12),
		desc(testSource, apiPerson, "SName", "FullName", 13),
	}
	groups := g.GroupDescriptors(descs)

	require.Len(t, groups, 3)
	assert.Equal(t, testSource, groups[0].Source)
	assert.Equal(t, []model.Descriptor{descs[0], descs[2]}, groups[0].Descriptors)
	assert.Equal(t, iTestSource, groups[1].Source)
	assert.Equal(t, apiPerson, groups[2].Target)

	warnings := collector.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, diagnostic.DuplicatePropertyMapping, warnings[0].Code)
	assert.Equal(t, 12, warnings[0].Pos.Line)
	assert.Equal(t, "Found multiple mapping attributes for 'example.com/people.TestSource.Other' to target 'example.com/people.TestTarget'", warnings[0].Message)
}

func TestGenerator_Generate(t *testing.T) {
	collector := diagnostic.NewCollector()
	g := NewGenerator("attrimap", collector, nil)

	groups := g.GroupDescriptors([]model.Descriptor{
		desc(testSource, testTarget, "SName", "TName", 10),
		withTransformer(desc(testSource, testTarget, "SDateOfBirth", "TDateOfBirth", 11), testSource, "StringToDate", model.TransformerFunc),
		desc(testSource, testTarget, "Count", "Count", 12),
		getter(desc(iTestSource, testTarget, "SName", "TName", 20)),
		withTransformer(getter(desc(iTestSource, testTarget, "Count", "Count", 21)), iTestSource, "Double", model.TransformerMethod),
		desc(testSource, apiPerson, "SName", "FullName", 13),
	})
	files, err := g.Generate(groups, []*Package{peoplePackage(defaultOptions())})
	require.NoError(t, err)
	assert.Empty(t, collector.Diagnostics())
	require.Len(t, files, 1)

	f := files[0]
	assert.Equal(t, peoplePath, f.PkgPath)
	assert.Equal(t, "attrimap.gen.go", f.Name)
	assert.Equal(t, "/src/people", f.Dir)

	structKey := groupkey.Hash(testSource.FullName(), testTarget.FullName())
	ifaceKey := groupkey.Hash(iTestSource.FullName(), testTarget.FullName())
	assert.Equal(t, []string{"ToTestTarget_" + structKey, "ToTestTarget_" + ifaceKey, "ToPerson"}, f.Funcs)

	want := `//go:build !attrimap

// Code generated by attrimap. DO NOT EDIT.
// source: example.com/people

package people

import (
	api "example.com/api/v1"
)

// ToTestTarget_` + structKey + ` maps example.com/people.TestSource to example.com/people.TestTarget.
func ToTestTarget_` + structKey + `(source TestSource) TestTarget {
	return TestTarget{
		TName: source.SName,
		TDateOfBirth: StringToDate(source.SDateOfBirth),
		Count: source.Count,
	}
}

// ToTestTarget_` + ifaceKey + ` maps example.com/people.ITestSource to example.com/people.TestTarget.
func ToTestTarget_` + ifaceKey + `(source ITestSource) TestTarget {
	return TestTarget{
		TName: source.SName(),
		Count: source.Double(source.Count()),
	}
}

// ToPerson maps example.com/people.TestSource to example.com/api/v1.Person.
func ToPerson(source TestSource) api.Person {
	return api.Person{
		FullName: source.SName,
	}
}
`
	assert.Equal(t, normalize(want), normalize(string(f.Content)))
}

func TestGenerator_Generate_Deterministic(t *testing.T) {
	descs := []model.Descriptor{
		desc(testSource, apiPerson, "SName", "FullName", 13),
		desc(testSource, testTarget, "SName", "TName", 10),
		desc(iTestSource, testTarget, "SName", "TName", 20),
	}
	run := func() []byte {
		g := NewGenerator("attrimap", diagnostic.NewCollector(), nil)
		files, err := g.Generate(g.GroupDescriptors(descs), []*Package{peoplePackage(defaultOptions())})
		require.NoError(t, err)
		require.Len(t, files, 1)
		return files[0].Content
	}
	assert.Equal(t, run(), run())
}

func TestGenerator_Generate_Pointers(t *testing.T) {
	opts := defaultOptions()
	opts.Pointers = true
	opts.Prefix = "Map"
	g := NewGenerator("", diagnostic.NewCollector(), nil)

	groups := g.GroupDescriptors([]model.Descriptor{
		desc(testSource, testTarget, "SName", "TName", 10),
		getter(desc(iTestSource, apiPerson, "SName", "FullName", 20)),
	})
	files, err := g.Generate(groups, []*Package{peoplePackage(opts)})
	require.NoError(t, err)
	require.Len(t, files, 1)

	out := normalize(string(files[0].Content))
	assert.NotContains(t, out, "go:build")
	assert.Contains(t, out, normalize(`func MapTestTarget(source *TestSource) *TestTarget {
	if source == nil {
		return nil
	}
	return &TestTarget{`))
	assert.Contains(t, out, normalize(`func MapPerson(source ITestSource) *api.Person {
	if source == nil {
		return nil
	}
	return &api.Person{
		FullName: source.SName(),
	}`))
}

func TestGenerator_Generate_Homes(t *testing.T) {
	collector := diagnostic.NewCollector()
	g := NewGenerator("attrimap", collector, nil)

	apiPkg := &Package{Path: apiPerson.PkgPath, Name: "api", Dir: "/src/api", Options: defaultOptions()}
	external := model.TypeRef{PkgPath: "example.com/vendor", PkgName: "vendor", Name: "Thing", Kind: model.KindStruct}

	fromAPI := desc(external, apiPerson, "Name", "FullName", 30)
	fromAPI.Family = model.MapFrom
	orphan := desc(external, testTarget, "Name", "TName", 40)

	groups := g.GroupDescriptors([]model.Descriptor{
		desc(testSource, apiPerson, "SName", "FullName", 10),
		withTransformer(fromAPI, apiPerson, "Clean", model.TransformerFunc),
		orphan,
	})
	files, err := g.Generate(groups, []*Package{apiPkg, peoplePackage(defaultOptions())})
	require.NoError(t, err)

	require.Len(t, files, 2)
	assert.Equal(t, "example.com/api/v1", files[0].PkgPath)
	assert.Equal(t, []string{"ToPerson"}, files[0].Funcs)
	assert.Contains(t, normalize(string(files[0].Content)), normalize(`import (
	"example.com/vendor"
)`))
	assert.Contains(t, normalize(string(files[0].Content)), "FullName: Clean(source.Name),")
	assert.Equal(t, peoplePath, files[1].PkgPath)

	errs := collector.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, diagnostic.UnsupportedType, errs[0].Code)
	assert.Equal(t, 40, errs[0].Pos.Line)
}

func TestGenerator_Generate_ImportConflicts(t *testing.T) {
	g := NewGenerator("attrimap", diagnostic.NewCollector(), nil)
	otherSource := model.TypeRef{PkgPath: "example.com/source", PkgName: "source", Name: "Row", Kind: model.KindStruct}
	otherPeople := model.TypeRef{PkgPath: "example.com/legacy/people", PkgName: "people", Name: "Person", Kind: model.KindStruct}
	pkg := peoplePackage(defaultOptions())

	groups := g.GroupDescriptors([]model.Descriptor{
		desc(otherSource, testTarget, "Name", "TName", 10),
		desc(testSource, otherPeople, "SName", "Name", 11),
	})
	groups[0].Descriptors[0].Family = model.MapFrom

	files, err := g.Generate(groups, []*Package{pkg})
	require.NoError(t, err)
	require.Len(t, files, 1)
	out := normalize(string(files[0].Content))
	assert.Contains(t, out, `source1 "example.com/source"`)
	assert.Contains(t, out, `"example.com/legacy/people"`)
	assert.Contains(t, out, "func ToTestTarget(source source1.Row) TestTarget {")
	assert.Contains(t, out, "func ToPerson(source TestSource) people.Person {")
}

// importGraph maps a package to its direct imports.
type importGraph map[string][]string

func (g importGraph) Imports(from, to string) bool {
	for _, p := range g[from] {
		if p == to || g.Imports(p, to) {
			return true
		}
	}
	return false
}

var (
	storeRow = model.TypeRef{PkgPath: "example.com/store", PkgName: "store", Name: "Row", Kind: model.KindStruct}
	utilPath = "example.com/util"
)

func storePackage() *Package {
	return &Package{Path: storeRow.PkgPath, Name: "store", Dir: "/src/store", Options: defaultOptions()}
}

func mapFrom(d model.Descriptor) model.Descriptor {
	d.Family = model.MapFrom
	return d
}

func TestGenerator_Generate_HomeImportCycle(t *testing.T) {
	collector := diagnostic.NewCollector()
	g := NewGenerator("attrimap", collector, importGraph{peoplePath: {storeRow.PkgPath}})

	groups := g.GroupDescriptors([]model.Descriptor{
		withTransformer(mapFrom(desc(storeRow, testTarget, "Name", "TName", 10)), testTarget, "parse", model.TransformerFunc),
	})
	files, err := g.Generate(groups, []*Package{storePackage(), peoplePackage(defaultOptions())})
	require.NoError(t, err)
	assert.Empty(t, collector.Diagnostics())

	require.Len(t, files, 1)
	assert.Equal(t, peoplePath, files[0].PkgPath)
	out := normalize(string(files[0].Content))
	assert.Contains(t, out, `"example.com/store"`)
	assert.Contains(t, out, "func ToTestTarget(source store.Row) TestTarget {")
	assert.Contains(t, out, "TName: parse(source.Name),")
}

func TestGenerator_Generate_HomeSeesTransformer(t *testing.T) {
	collector := diagnostic.NewCollector()
	g := NewGenerator("attrimap", collector, nil)

	groups := g.GroupDescriptors([]model.Descriptor{
		withTransformer(mapFrom(desc(storeRow, testTarget, "Name", "TName", 10)), testTarget, "parse", model.TransformerFunc),
	})
	files, err := g.Generate(groups, []*Package{storePackage(), peoplePackage(defaultOptions())})
	require.NoError(t, err)
	assert.Empty(t, collector.Diagnostics())

	require.Len(t, files, 1)
	assert.Equal(t, peoplePath, files[0].PkgPath)
}

func TestGenerator_Generate_NoFeasibleHome(t *testing.T) {
	collector := diagnostic.NewCollector()
	graph := importGraph{
		utilPath:   {peoplePath},
		peoplePath: {storeRow.PkgPath},
	}
	g := NewGenerator("attrimap", collector, graph)
	util := model.TypeRef{PkgPath: utilPath, PkgName: "util", Name: "Strings", Kind: model.KindStruct}

	groups := g.GroupDescriptors([]model.Descriptor{
		withTransformer(mapFrom(desc(storeRow, testTarget, "Name", "TName", 10)), util, "Trim", model.TransformerFunc),
	})
	files, err := g.Generate(groups, []*Package{storePackage(), peoplePackage(defaultOptions())})
	require.NoError(t, err)
	assert.Empty(t, files)

	errs := collector.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, diagnostic.UnsupportedType, errs[0].Code)
	assert.Equal(t, 10, errs[0].Pos.Line)
	assert.Contains(t, errs[0].Message, "import cycle")
}

func TestGenerator_Generate_UnexportedMembers(t *testing.T) {
	collector := diagnostic.NewCollector()
	g := NewGenerator("attrimap", collector, nil)

	groups := g.GroupDescriptors([]model.Descriptor{
		desc(testSource, apiPerson, "SName", "FullName", 10),
		desc(testSource, apiPerson, "SName", "note", 11),
		mapFrom(desc(apiPerson, testTarget, "secret", "TName", 20)),
	})
	files, err := g.Generate(groups, []*Package{peoplePackage(defaultOptions())})
	require.NoError(t, err)

	require.Len(t, files, 1)
	assert.Equal(t, []string{"ToPerson"}, files[0].Funcs)
	out := normalize(string(files[0].Content))
	assert.Contains(t, out, "FullName: source.SName,")
	assert.NotContains(t, out, "note")

	errs := collector.Errors()
	require.Len(t, errs, 2)
	for i, line := range []int{11, 20} {
		assert.Equal(t, diagnostic.UnknownMember, errs[i].Code)
		assert.Equal(t, line, errs[i].Pos.Line)
	}
	assert.Contains(t, errs[0].Message, "cannot be set from "+peoplePath)
	assert.Contains(t, errs[1].Message, "cannot be read from "+peoplePath)
}

func TestGenerator_Generate_UnexportedTransformer(t *testing.T) {
	collector := diagnostic.NewCollector()
	g := NewGenerator("attrimap", collector, nil)

	groups := g.GroupDescriptors([]model.Descriptor{
		withTransformer(mapFrom(desc(storeRow, testTarget, "When", "TDateOfBirth", 10)), testTarget, "parse", model.TransformerFunc),
		mapFrom(desc(storeRow, testTarget, "Name", "TName", 11)),
	})
	files, err := g.Generate(groups, []*Package{storePackage()})
	require.NoError(t, err)

	require.Len(t, files, 1)
	assert.Equal(t, storeRow.PkgPath, files[0].PkgPath)
	out := normalize(string(files[0].Content))
	assert.Contains(t, out, normalize(`func ToTestTarget(source Row) people.TestTarget {
	return people.TestTarget{
		TName: source.Name,
	}
}`))
	assert.NotContains(t, out, "parse")

	errs := collector.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, diagnostic.UnsupportedType, errs[0].Code)
	assert.Equal(t, 10, errs[0].Pos.Line)
	assert.Equal(t, "'example.com/people.parse' cannot be used here: unexported transformer cannot be called from example.com/store", errs[0].Message)
}
