package analyzer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/origadmin/attrimap/internal/testutil"
)

func newUniverse(t *testing.T) *testutil.Universe {
	return testutil.NewUniverse(t).
		Add("example.com/shared/types", map[string]string{"types.go": `package types

type Person struct{ Name string }
`}).
		Add("example.com/app/people", map[string]string{"people.go": `package people

import "example.com/shared/types"

var _ types.Person

type Person struct{ Name string }

func ToPerson() {}
`})
}

func TestPackageWalker_LookupPackage(t *testing.T) {
	u := newUniverse(t)
	people := u.Package("example.com/app/people")

	w := NewPackageWalker(".", "")
	w.AddPackages(people)
	w.RegisterAliases(people.PkgPath, map[string]string{"shared": "example.com/shared/types"})
	w.RegisterAliases(GlobalScope, map[string]string{
		"global":  "example.com/shared/types",
		"shared":  "example.com/app/people",
		"missing": "example.com/nowhere",
	})

	pkg, ok := w.LookupPackage(people.Types, "shared")
	require.True(t, ok)
	assert.Equal(t, "example.com/shared/types", pkg.Path())

	pkg, ok = w.LookupPackage(people.Types, "global")
	require.True(t, ok)
	assert.Equal(t, "example.com/shared/types", pkg.Path())

	pkg, ok = w.LookupPackage(nil, "shared")
	require.True(t, ok)
	assert.Equal(t, "example.com/app/people", pkg.Path())

	_, ok = w.LookupPackage(people.Types, "missing")
	assert.False(t, ok)
	_, ok = w.LookupPackage(people.Types, "unknown")
	assert.False(t, ok)
}

func TestPackageWalker_AddPackages(t *testing.T) {
	pkgs := newUniverse(t).Packages()

	w := NewPackageWalker(".", "attrimap")
	w.AddPackages(pkgs[1], pkgs[0], pkgs[1])

	require.Len(t, w.Packages(), 2)
	assert.Equal(t, "example.com/app/people", w.Packages()[0].PkgPath)
	assert.Equal(t, "example.com/shared/types", w.Packages()[1].PkgPath)
	assert.True(t, w.IsScanned("example.com/shared/types"))
	assert.False(t, w.IsScanned("example.com/other"))
}

func TestPackageWalker_LoadAliases_KnownPackages(t *testing.T) {
	w := NewPackageWalker(".", "")
	w.AddPackages(newUniverse(t).Package("example.com/app/people"))
	w.RegisterAliases(GlobalScope, map[string]string{"shared": "example.com/shared/types"})

	require.NoError(t, w.LoadAliases(context.Background()))
	assert.Zero(t, w.FailedPackagesCount())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, w.LoadAliases(ctx), context.Canceled)
}

func TestDeclaredNames(t *testing.T) {
	pkg := newUniverse(t).Package("example.com/app/people")
	names := DeclaredNames(pkg)
	assert.True(t, names["Person"])
	assert.True(t, names["ToPerson"])
	assert.False(t, names["types"])
	assert.Equal(t, "/src/example.com/app/people", PackageDir(pkg))
}

func TestPackageWalker_Imports(t *testing.T) {
	u := newUniverse(t)

	w := NewPackageWalker(".", "")
	w.AddPackages(u.Package("example.com/app/people"))

	assert.True(t, w.Imports("example.com/app/people", "example.com/shared/types"))
	assert.False(t, w.Imports("example.com/shared/types", "example.com/app/people"))
	assert.False(t, w.Imports("example.com/app/people", "example.com/nowhere"))
}
