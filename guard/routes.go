package guard

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Route binds a path prefix to its requirements.
type Route struct {
	Path         string `yaml:"path"`
	Requirements `yaml:",inline"`
}

// RouteTable resolves a path to the requirements of its longest matching prefix.
type RouteTable struct {
	routes []Route
}

type routeFile struct {
	Routes []Route `yaml:"routes"`
}

// NewRouteTable validates routes and orders them longest prefix first.
func NewRouteTable(routes []Route) (*RouteTable, error) {
	seen := make(map[string]bool, len(routes))
	out := make([]Route, 0, len(routes))
	for _, r := range routes {
		r.Path = normalizePath(r.Path)
		if !strings.HasPrefix(r.Path, "/") {
			return nil, fmt.Errorf("route %q must be absolute", r.Path)
		}
		if seen[r.Path] {
			return nil, fmt.Errorf("route %q declared twice", r.Path)
		}
		if r.RequiredTenantKind != "" && !r.RequiredTenantKind.Valid() {
			return nil, fmt.Errorf("route %q: unknown tenant kind %q", r.Path, r.RequiredTenantKind)
		}
		seen[r.Path] = true
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i].Path) > len(out[j].Path)
	})
	return &RouteTable{routes: out}, nil
}

// LoadRouteTable reads a YAML document of the form
//
//	routes:
//	  - path: /hmo
//	    required_tenant_kind: hmo
//	  - path: /admin
//	    allowed_roles: [SUPERADMIN]
func LoadRouteTable(r io.Reader) (*RouteTable, error) {
	var f routeFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("yaml decode: %w", err)
	}
	return NewRouteTable(f.Routes)
}

func LoadRouteTableFile(path string) (*RouteTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("os.Open: %w", err)
	}
	defer f.Close()
	return LoadRouteTable(f)
}

// Lookup returns the requirements of the longest route that is path or a
// parent of it. Query strings and fragments are ignored.
func (t *RouteTable) Lookup(path string) (Requirements, bool) {
	path = normalizePath(path)
	for _, r := range t.routes {
		if r.Path == "/" || path == r.Path || strings.HasPrefix(path, r.Path+"/") {
			return r.Requirements, true
		}
	}
	return Requirements{}, false
}

func (t *RouteTable) Routes() []Route {
	return append([]Route(nil), t.routes...)
}

func normalizePath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}
