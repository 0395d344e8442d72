package registry_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/specialistvlad/gridhost/internal/model"
	"github.com/specialistvlad/gridhost/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func file(name, basePath string, resources ...*model.Resource) *model.File {
	return &model.File{
		Name: name,
		Services: []*model.Service{{
			Name:      "svc",
			BasePath:  basePath,
			Resources: resources,
		}},
	}
}

func fileNames(files []*model.File) []string {
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}
	return names
}

func TestPackage_AddFilesReplacesByName(t *testing.T) {
	p := registry.NewPackage("default")
	v1 := &model.File{Name: "a.hcl"}
	v2 := &model.File{Name: "a.hcl"}
	other := &model.File{Name: "b.hcl"}

	p.AddFiles(v1, other)
	p.AddFiles(v2)
	p.AddFiles(v2)

	files := p.Files()
	require.Len(t, files, 2)
	assert.Same(t, v2, files[0])
	assert.Same(t, other, files[1])

	got, ok := p.File("b.hcl")
	require.True(t, ok)
	assert.Same(t, other, got)

	assert.True(t, p.RemoveFile("a.hcl"))
	assert.False(t, p.RemoveFile("a.hcl"))
	assert.Equal(t, 1, p.Len())
}

func TestApplication_Packages(t *testing.T) {
	app := registry.NewApplication("greeter.hcl")
	assert.Equal(t, "greeter.hcl", app.Name())

	b := app.PackageFor("b")
	a := app.PackageFor("a")
	assert.Same(t, b, app.PackageFor("b"))

	got, ok := app.Package("a")
	require.True(t, ok)
	assert.Same(t, a, got)

	pkgs := app.Packages()
	require.Len(t, pkgs, 2)
	assert.Equal(t, "a", pkgs[0].Name())
	assert.Equal(t, "b", pkgs[1].Name())
}

func TestRegistry_PutFileAndUnregister(t *testing.T) {
	r := registry.New()
	f := &model.File{Name: "greeter.hcl", PackageName: "greetings"}

	pkg := r.PutFile("greeter.hcl", "greetings", f)

	assert.Equal(t, 1, r.Len())
	app, ok := r.Application("greeter.hcl")
	require.True(t, ok)
	got, ok := app.Package("greetings")
	require.True(t, ok)
	assert.Same(t, pkg, got)
	assert.Equal(t, []string{"greeter.hcl"}, fileNames(pkg.Files()))

	indexed, ok := r.Package("greetings")
	require.True(t, ok)
	assert.Same(t, pkg, indexed)

	assert.True(t, r.UnregisterApplication("greeter.hcl"))
	assert.False(t, r.UnregisterApplication("greeter.hcl"))
	assert.Equal(t, 0, r.Len())
	_, ok = r.Package("greetings")
	assert.False(t, ok)
}

func TestRegistry_PutFileMovesFileBetweenPackages(t *testing.T) {
	r := registry.New()
	r.PutFile("greeter.hcl", "a", file("greeter.hcl", "/v1", &model.Resource{Path: "/hello"}))
	r.PutFile("greeter.hcl", "b", file("greeter.hcl", "/v2", &model.Resource{Path: "/hello"}))

	assert.Equal(t, 1, r.Len())
	app, ok := r.Application("greeter.hcl")
	require.True(t, ok)
	pkgs := app.Packages()
	require.Len(t, pkgs, 1)
	assert.Equal(t, "b", pkgs[0].Name())

	_, ok = r.Package("a")
	assert.False(t, ok)
	_, ok = r.Match("GET", "/v1/hello")
	assert.False(t, ok)
	_, ok = r.Match("GET", "/v2/hello")
	assert.True(t, ok)
	assert.Equal(t, []string{"* /v2/hello"}, r.Routes())
}

func TestRegistry_PutFileKeepsPackageWithOtherFiles(t *testing.T) {
	r := registry.New()
	shared := r.PutFile("app.hcl", "a", &model.File{Name: "app.hcl"})
	shared.AddFiles(&model.File{Name: "extra.hcl"})

	r.PutFile("app.hcl", "b", &model.File{Name: "app.hcl"})

	app, _ := r.Application("app.hcl")
	a, ok := app.Package("a")
	require.True(t, ok)
	assert.Equal(t, []string{"extra.hcl"}, fileNames(a.Files()))
	b, ok := app.Package("b")
	require.True(t, ok)
	assert.Equal(t, []string{"app.hcl"}, fileNames(b.Files()))
}

func TestRegistry_UnregisterKeepsOtherOwnersPackage(t *testing.T) {
	r := registry.New()
	r.PutFile("a.hcl", "default", &model.File{Name: "a.hcl"})
	second := r.PutFile("b.hcl", "default", &model.File{Name: "b.hcl"})

	r.UnregisterApplication("a.hcl")

	got, ok := r.Package("default")
	require.True(t, ok)
	assert.Same(t, second, got)
}

func TestRegistry_PutFileConcurrentSameApplication(t *testing.T) {
	r := registry.New()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.PutFile("same.hcl", "default", &model.File{Name: "same.hcl"})
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, r.Len())
	assert.Len(t, mustPackage(t, r, "same.hcl").Files(), 1)
}

func TestRegistry_Match(t *testing.T) {
	r := registry.New()
	anyMethod := &model.Resource{Name: "any", Path: "/items"}
	post := &model.Resource{Name: "post", Method: "POST", Path: "/items"}
	index := &model.Resource{Name: "index"}

	r.PutFile("shop.hcl", "default", file("shop.hcl", "/shop", anyMethod, post, index))

	rt, ok := r.Match("POST", "/shop/items")
	require.True(t, ok)
	assert.Same(t, post, rt.Resource)
	assert.Equal(t, "shop.hcl", rt.Application)
	assert.Equal(t, "default", rt.Package)
	assert.Equal(t, "/shop/items", rt.Path())

	rt, ok = r.Match("GET", "/shop/items")
	require.True(t, ok)
	assert.Same(t, anyMethod, rt.Resource)

	rt, ok = r.Match("GET", "/shop")
	require.True(t, ok)
	assert.Same(t, index, rt.Resource)

	rt, ok = r.Match("GET", "/shop//items/../items")
	require.True(t, ok)
	assert.Same(t, anyMethod, rt.Resource)

	_, ok = r.Match("GET", "/nope")
	assert.False(t, ok)
}

func TestRegistry_Routes(t *testing.T) {
	r := registry.New()
	r.PutFile("a.hcl", "default", file("a.hcl", "/a",
		&model.Resource{Path: "/x", Method: "GET"},
		&model.Resource{Path: "/y"},
	))

	want := []string{"* /a/y", "GET /a/x"}
	if diff := cmp.Diff(want, r.Routes()); diff != "" {
		t.Errorf("Routes() mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistry_ConcurrentDeployAndMatch(t *testing.T) {
	r := registry.New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("app%d.hcl", i)
			r.PutFile(name, "default", file(name, fmt.Sprintf("/app%d", i), &model.Resource{Path: "/r"}))
		}(i)
		go func(i int) {
			defer wg.Done()
			_, _ = r.Match("GET", fmt.Sprintf("/app%d/r", i))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 8, r.Len())
	for i := 0; i < 8; i++ {
		_, ok := r.Match("GET", fmt.Sprintf("/app%d/r", i))
		assert.True(t, ok, i)
	}
	assert.Equal(t, []string{"app0.hcl"}, fileNames(mustPackage(t, r, "app0.hcl").Files()))
}

func mustPackage(t *testing.T, r *registry.Registry, app string) *registry.Package {
	t.Helper()
	a, ok := r.Application(app)
	require.True(t, ok)
	p, ok := a.Package("default")
	require.True(t, ok)
	return p
}
