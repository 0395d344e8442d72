package registry

import (
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/specialistvlad/gridhost/internal/model"
)

// Package is a named group of file models within an Application.
type Package struct {
	name string

	mu    sync.RWMutex
	files []*model.File
}

// NewPackage creates an empty Package.
func NewPackage(name string) *Package {
	return &Package{name: name}
}

// Name returns the package name.
func (p *Package) Name() string { return p.name }

// AddFiles adds file models to the package. A file with the same name as one
// already present replaces it, so adding the same artifact repeatedly never
// accumulates duplicates.
func (p *Package) AddFiles(files ...*model.File) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, f := range files {
		i := slices.IndexFunc(p.files, func(existing *model.File) bool { return existing.Name == f.Name })
		if i >= 0 {
			p.files[i] = f
			continue
		}
		p.files = append(p.files, f)
	}
}

// RemoveFile drops the file model with the given name and reports whether
// it was present.
func (p *Package) RemoveFile(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := slices.IndexFunc(p.files, func(f *model.File) bool { return f.Name == name })
	if i < 0 {
		return false
	}
	p.files = slices.Delete(p.files, i, i+1)
	return true
}

// Len returns the number of file models in the package.
func (p *Package) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.files)
}

// Files returns a snapshot of the package's file models.
func (p *Package) Files() []*model.File {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.files)
}

// File returns the file model with the given name.
func (p *Package) File(name string) (*model.File, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, f := range p.files {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// Application is the deployed unit of one artifact.
type Application struct {
	name string

	mu       sync.RWMutex
	packages map[string]*Package
}

// NewApplication creates an Application without packages.
func NewApplication(name string) *Application {
	return &Application{name: name, packages: make(map[string]*Package)}
}

// Name returns the artifact name the application is keyed by.
func (a *Application) Name() string { return a.name }

// Package returns the named package.
func (a *Application) Package(name string) (*Package, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	p, ok := a.packages[name]
	return p, ok
}

// PackageFor returns the named package, creating it if needed.
func (a *Application) PackageFor(name string) *Package {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.packages[name]
	if !ok {
		p = NewPackage(name)
		a.packages[name] = p
	}
	return p
}

// RemovePackage drops the named package.
func (a *Application) RemovePackage(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.packages, name)
}

// Packages returns the application's packages sorted by name.
func (a *Application) Packages() []*Package {
	a.mu.RLock()
	defer a.mu.RUnlock()
	pkgs := slices.Collect(maps.Values(a.packages))
	slices.SortFunc(pkgs, func(x, y *Package) int { return strings.Compare(x.name, y.name) })
	return pkgs
}
