package registry

import (
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/specialistvlad/gridhost/internal/model"
)

// Registry holds all deployed applications for a single host instance.
type Registry struct {
	mu       sync.RWMutex
	apps     map[string]*Application
	packages map[string]*Package
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{
		apps:     make(map[string]*Application),
		packages: make(map[string]*Package),
	}
}

// Application returns the application registered under name.
func (r *Registry) Application(name string) (*Application, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	app, ok := r.apps[name]
	return app, ok
}

// UnregisterApplication removes the named application and its packages from
// the package index. It reports whether the application existed.
func (r *Registry) UnregisterApplication(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.apps[name]
	if !ok {
		return false
	}
	r.dropPackagesLocked(app)
	delete(r.apps, name)
	return true
}

func (r *Registry) dropPackagesLocked(app *Application) {
	for _, p := range app.Packages() {
		if r.packages[p.Name()] == p {
			delete(r.packages, p.Name())
		}
	}
}

// PutFile stores file in package pkgName of the named application, registering
// both as needed, and indexes the package by name. A file model with the same
// name held by another package of the application is removed first; packages
// left empty are dropped.
func (r *Registry) PutFile(appName, pkgName string, file *model.File) *Package {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.apps[appName]
	if !ok {
		app = NewApplication(appName)
		r.apps[appName] = app
	}
	for _, p := range app.Packages() {
		if p.Name() == pkgName || !p.RemoveFile(file.Name) || p.Len() > 0 {
			continue
		}
		app.RemovePackage(p.Name())
		if r.packages[p.Name()] == p {
			delete(r.packages, p.Name())
		}
	}
	pkg := app.PackageFor(pkgName)
	pkg.AddFiles(file)
	r.packages[pkgName] = pkg
	return pkg
}

// Package returns the most recently upserted package with the given name.
func (r *Registry) Package(name string) (*Package, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.packages[name]
	return p, ok
}

// Applications returns all applications sorted by name.
func (r *Registry) Applications() []*Application {
	r.mu.RLock()
	defer r.mu.RUnlock()
	apps := slices.Collect(maps.Values(r.apps))
	slices.SortFunc(apps, func(x, y *Application) int { return strings.Compare(x.name, y.name) })
	return apps
}

// Len returns the number of registered applications.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.apps)
}

// Route is a resource resolved for an inbound request.
type Route struct {
	Application string
	Package     string
	File        *model.File
	Service     *model.Service
	Resource    *model.Resource
}

// Path returns the absolute path the route is served on.
func (rt *Route) Path() string {
	return rt.Service.Route(rt.Resource)
}

// Match finds the resource serving method and path. A resource declaring the
// method wins over one that accepts any method. Ties are broken by
// application, package and declaration order.
func (r *Registry) Match(method, path string) (*Route, bool) {
	path = model.JoinPath("", path)
	var wildcard *Route
	for _, app := range r.Applications() {
		for _, pkg := range app.Packages() {
			for _, file := range pkg.Files() {
				for _, svc := range file.Services {
					for _, res := range svc.Resources {
						if svc.Route(res) != path || !res.MatchesMethod(method) {
							continue
						}
						rt := &Route{
							Application: app.Name(),
							Package:     pkg.Name(),
							File:        file,
							Service:     svc,
							Resource:    res,
						}
						if res.Method != "" {
							return rt, true
						}
						if wildcard == nil {
							wildcard = rt
						}
					}
				}
			}
		}
	}
	return wildcard, wildcard != nil
}

// Routes lists every served route as "METHOD /path", sorted. Resources that
// accept any method are listed with "*".
func (r *Registry) Routes() []string {
	var routes []string
	for _, app := range r.Applications() {
		for _, pkg := range app.Packages() {
			for _, file := range pkg.Files() {
				for _, svc := range file.Services {
					for _, res := range svc.Resources {
						method := res.Method
						if method == "" {
							method = "*"
						}
						routes = append(routes, method+" "+svc.Route(res))
					}
				}
			}
		}
	}
	slices.Sort(routes)
	return routes
}
